// Package wsupgrade implements the server side of the RFC 6455 WebSocket
// handshake: validating the upgrade headers of an HTTP/1.1 request,
// computing the Sec-WebSocket-Accept token, and rewiring a connection's
// pipeline from HTTP framing to WebSocket framing once the handshake
// succeeds. Grounded on ice-blockchain-subzero's server/ws package, which
// upgrades Nostr relay connections over the same gobwas/ws primitives.
package wsupgrade

import (
	"context"
	"crypto/sha1" //nolint:gosec // part of RFC 6455, not a security-sensitive hash use
	"encoding/base64"

	"github.com/joeycumines/netloop/headers"
	"github.com/joeycumines/netloop/pipeline"
	"github.com/joeycumines/netloop/virtualtime"
)

// magicGUID is the fixed GUID RFC 6455 §1.3 appends to the client's
// Sec-WebSocket-Key before hashing, to prove the handshake response was
// produced by a server that understood the request as a WebSocket upgrade
// and not an ordinary HTTP request replayed by a cache or proxy.
const magicGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const protocolVersion = "13"

// ShouldUpgradeFunc decides whether a well-formed upgrade request should
// actually be accepted, asynchronously. A present (non-nil) *headers.Set
// accepts the upgrade and is merged verbatim into the response, letting the
// predicate contribute headers of its own (e.g. subprotocol selection). An
// absent (nil) result rejects the attempt with ErrUnsupportedWebSocketTarget
// without any headers reaching the wire. If the returned future fails, that
// failure propagates as-is from BuildUpgradeResponse and Upgrade.
type ShouldUpgradeFunc func(ctx context.Context, ch *pipeline.Channel, req headers.Head) *virtualtime.Future[*headers.Set]

// PipelineHandlerFunc is invoked once a connection's pipeline has been
// rewired to WebSocket framing, to install the application-level handlers
// that actually process frames.
type PipelineHandlerFunc func(ctx context.Context, ch *pipeline.Channel) *virtualtime.Future[struct{}]

// Upgrader validates and performs RFC 6455 server handshakes. The zero
// value is not usable; construct one with New.
type Upgrader struct {
	maxFrameSize           uint32
	automaticErrorHandling bool
	shouldUpgrade          ShouldUpgradeFunc
	upgradePipelineHandler PipelineHandlerFunc
}

// defaultMaxFrameSize matches the teacher corpus's conservative default for
// a single in-memory frame buffer.
const defaultMaxFrameSize = 16384

// New builds an Upgrader from the given options. It never fails: invalid
// options (e.g. a zero max frame size) are corrected to the default rather
// than rejected, since no caller-supplied value can exceed uint32's range
// in the first place.
func New(opts ...Option) *Upgrader {
	u := &Upgrader{
		maxFrameSize:           defaultMaxFrameSize,
		automaticErrorHandling: true,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// SupportedProtocol is the value this Upgrader negotiates via the Upgrade
// header: it speaks exactly one protocol.
func (u *Upgrader) SupportedProtocol() string { return "websocket" }

// RequiredUpgradeHeaders lists header names BuildUpgradeResponse validates
// beyond Sec-WebSocket-Key/Version/Connection/Upgrade, which are always
// checked. The base implementation requires none.
func (u *Upgrader) RequiredUpgradeHeaders() []string { return nil }

// BuildUpgradeResponse validates req against RFC 6455 and the configured
// shouldUpgrade predicate, and on success computes the response headers a
// caller should write back to the client — merged onto baseHeaders, which
// is never mutated. It does not touch ch.Conn or ch.Pipeline(); see Upgrade
// for the full handshake including those side effects.
func (u *Upgrader) BuildUpgradeResponse(ctx context.Context, ch *pipeline.Channel, req headers.Head, baseHeaders headers.Set) *virtualtime.Future[headers.Set] {
	version, ok := req.Headers.SingleCanonicalValue("Sec-WebSocket-Version")
	if !ok || version != protocolVersion {
		return virtualtime.Failed[headers.Set](newError(KindInvalidUpgradeHeader, "Sec-WebSocket-Version must be a single value equal to \"13\""))
	}

	key, ok := req.Headers.SingleCanonicalValue("Sec-WebSocket-Key")
	if !ok || key == "" {
		return virtualtime.Failed[headers.Set](newError(KindInvalidUpgradeHeader, "Sec-WebSocket-Key must be present exactly once"))
	}

	if !containsFold(req.Headers.CanonicalValues("Upgrade"), "websocket") {
		return virtualtime.Failed[headers.Set](newError(KindInvalidUpgradeHeader, "Upgrade header does not name websocket"))
	}

	if !containsFold(req.Headers.CanonicalValues("Connection"), "upgrade") {
		return virtualtime.Failed[headers.Set](newError(KindInvalidUpgradeHeader, "Connection header does not include Upgrade"))
	}

	predicate := u.shouldUpgrade
	if predicate == nil {
		predicate = func(context.Context, *pipeline.Channel, headers.Head) *virtualtime.Future[*headers.Set] {
			empty := headers.New()
			return virtualtime.Succeeded(&empty)
		}
	}

	return virtualtime.FlatMap(predicate(ctx, ch, req), func(extra *headers.Set) *virtualtime.Future[headers.Set] {
		if extra == nil {
			return virtualtime.Failed[headers.Set](newError(KindUnsupportedWebSocketTarget, "rejected by configured predicate"))
		}

		resp := headers.New()
		for name, values := range baseHeaders.Header {
			resp.Header[name] = append([]string(nil), values...)
		}
		for name, values := range extra.Header {
			resp.Header[name] = append([]string(nil), values...)
		}
		resp.Set("Upgrade", "websocket")
		resp.Set("Connection", "upgrade")
		resp.Set("Sec-WebSocket-Accept", acceptToken(key))

		return virtualtime.Succeeded(resp)
	})
}

// Upgrade performs the complete handshake: it validates req via
// BuildUpgradeResponse, writes the resulting response headers to ch's
// connection, installs the frame decoder/encoder (and, unless disabled,
// the automatic protocol-error observer) on ch's pipeline, and finally
// invokes the configured upgradePipelineHandler, if any.
func (u *Upgrader) Upgrade(ctx context.Context, ch *pipeline.Channel, req headers.Head) *virtualtime.Future[struct{}] {
	return virtualtime.FlatMap(u.BuildUpgradeResponse(ctx, ch, req, headers.New()), func(resp headers.Set) *virtualtime.Future[struct{}] {
		if err := writeUpgradeResponse(ch, resp); err != nil {
			return virtualtime.Failed[struct{}](err)
		}

		ch.Pipeline().AddHandler(pipeline.NewFrameEncoderHandler())
		ch.Pipeline().AddHandler(pipeline.NewFrameDecoderHandler(u.maxFrameSize))
		if u.automaticErrorHandling {
			ch.Pipeline().AddHandler(pipeline.NewProtocolErrorHandler())
		}

		if u.upgradePipelineHandler == nil {
			return virtualtime.Succeeded(struct{}{})
		}
		return u.upgradePipelineHandler(ctx, ch)
	})
}

// acceptToken computes the RFC 6455 §1.3 Sec-WebSocket-Accept value for a
// client's Sec-WebSocket-Key. The sample vector from the RFC,
// "dGhlIHNhbXBsZSBub25jZQ==", must yield "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=".
func acceptToken(key string) string {
	h := sha1.New() //nolint:gosec // RFC 6455 mandates SHA-1 here
	h.Write([]byte(key))
	h.Write([]byte(magicGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if equalFold(v, want) {
			return true
		}
	}
	return false
}

// equalFold is an ASCII case-insensitive comparison; header tokens this
// package compares are always ASCII per RFC 7230.
func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
