//go:build netloop_debug

package virtualtime

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/joeycumines/netloop/netlog"
)

// registry tracks the creation site of every promise the loop has handed
// out, keyed by task id, so ShutdownGracefully can detect a leaked promise:
// one that was created but never settled. Grounded on the teacher's weak
// pointer + ring buffer promise registry (eventloop/registry.go), cut down
// to the (file, line) bookkeeping a debug build actually needs — there is
// no equivalent of the teacher's scavenging loop because entries here are
// removed explicitly by untrack, not discovered via GC finalizers.
type registry struct {
	mu    sync.Mutex
	sites map[uint64]string
}

func newRegistry() *registry {
	return &registry{sites: make(map[uint64]string)}
}

func (r *registry) track(id uint64) {
	_, file, line, _ := runtime.Caller(2)
	r.mu.Lock()
	r.sites[id] = fmt.Sprintf("%s:%d", file, line)
	r.mu.Unlock()
}

func (r *registry) untrack(id uint64) {
	r.mu.Lock()
	delete(r.sites, id)
	r.mu.Unlock()
}

// assertEmpty panics if any tracked promise never settled. Only compiled
// into netloop_debug builds; a release build's loop never leak-checks.
func (r *registry) assertEmpty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sites) == 0 {
		return
	}
	for id, site := range r.sites {
		netlog.L().Err().Str("site", site).Log(fmt.Sprintf("virtualtime: leaked promise for task %d", id))
	}
	panic(fmt.Sprintf("virtualtime: %d promise(s) leaked past shutdown", len(r.sites)))
}
