package wsupgrade

// Option configures an Upgrader at construction time. Grounded on the
// functional-options pattern used throughout eventloop (eventloop/options.go).
type Option func(*Upgrader)

// WithMaxFrameSize overrides the default maximum payload size, in bytes,
// the installed frame decoder accepts per frame. n == 0 is ignored (the
// default is kept); any other value is exact, since uint32's own range is
// already the 2^32-1 ceiling the protocol allows.
func WithMaxFrameSize(n uint32) Option {
	return func(u *Upgrader) {
		if n == 0 {
			return
		}
		u.maxFrameSize = n
	}
}

// WithAutomaticErrorHandling controls whether Upgrade installs a
// ProtocolErrorHandler that logs abnormal closures on the caller's behalf.
// Defaults to true.
func WithAutomaticErrorHandling(enabled bool) Option {
	return func(u *Upgrader) {
		u.automaticErrorHandling = enabled
	}
}

// WithShouldUpgrade installs the asynchronous predicate BuildUpgradeResponse
// consults after header validation passes but before computing the accept
// token; see ShouldUpgradeFunc for its accept/reject/fail semantics.
func WithShouldUpgrade(fn ShouldUpgradeFunc) Option {
	return func(u *Upgrader) {
		u.shouldUpgrade = fn
	}
}

// WithPipelineHandler installs the callback Upgrade invokes once the
// connection's pipeline has been switched to WebSocket framing.
func WithPipelineHandler(fn PipelineHandlerFunc) Option {
	return func(u *Upgrader) {
		u.upgradePipelineHandler = fn
	}
}
