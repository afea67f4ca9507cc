//go:build !netloop_debug

package virtualtime

// registry is a no-op outside netloop_debug builds: tracking every
// promise's creation site costs a lock and a map entry per scheduled task,
// worth paying only when actively hunting a leak.
type registry struct{}

func newRegistry() *registry { return nil }

func (r *registry) track(id uint64)   {}
func (r *registry) untrack(id uint64) {}
func (r *registry) assertEmpty()      {}
