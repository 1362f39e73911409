package orbitalvk

import "sync/atomic"

//GPU access kind for resource usage tracking
type Access int32

const (
	AccessRead Access = iota
	AccessWrite
	//None resolves statically unknown access kinds to a documented no-op
	AccessNone
)

const waitIdleSpinCount = 50000

//CoreResource keeps track of whether a GPU visible resource is still being
//consumed by in-flight GPU work. Command recording acquires the resource for
//each access kind, the matching completion releases it. The counters are the
//only cross-thread state here and use lock free atomic arithmetic, callers
//mutating anything else must serialize themselves.
//
//Embed CoreResource into any type that needs usage tracking.
type CoreResource struct {
	use_count_r uint32
	use_count_w uint32
}

//Increments the pending use count for the given access kind
func (r *CoreResource) Acquire(access Access) {
	switch access {
	case AccessRead:
		atomic.AddUint32(&r.use_count_r, 1)
	case AccessWrite:
		atomic.AddUint32(&r.use_count_w, 1)
	}
}

//Decrements the pending use count for the given access kind. Must pair with
//a previous Acquire of the same kind.
func (r *CoreResource) Release(access Access) {
	switch access {
	case AccessRead:
		atomic.AddUint32(&r.use_count_r, ^uint32(0))
	case AccessWrite:
		atomic.AddUint32(&r.use_count_w, ^uint32(0))
	}
}

//Reports pending GPU accesses of the given kind. A pending write also makes
//the resource unsafe to read, so a Read query is true if either counter is
//nonzero.
func (r *CoreResource) IsInUse(access Access) bool {
	in_use := atomic.LoadUint32(&r.use_count_w) != 0
	if access == AccessRead {
		in_use = in_use || atomic.LoadUint32(&r.use_count_r) != 0
	}
	return in_use
}

//Busy polls until the resource is no longer in use for the given access kind.
//The spin budget is bounded, GPU completion is expected to be fast relative
//to one CPU submission call. Callers needing an unbounded wait loop this call
//themselves.
func (r *CoreResource) WaitIdle(access Access) {
	idle := spin(waitIdleSpinCount, func() bool {
		return !r.IsInUse(access)
	})
	if !idle {
		warn_log.Printf("Resource wait spin budget exhausted, resource still in use")
	}
}
