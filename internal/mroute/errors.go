package mroute

import "fmt"

// Kind classifies a routing-core failure: the programmatic error code
// returned at the public surface alongside the human-readable message.
type Kind int

const (
	_ Kind = iota
	// KindUnsupported means the kernel lacks multicast-routing support for
	// the address family.
	KindUnsupported
	// KindBusy means another process already owns the multicast-routing
	// role on this family.
	KindBusy
	// KindTableFull means no free VIF/MIF slot was available.
	KindTableFull
	// KindNotFound means dyn_add found no matching wildcard template.
	KindNotFound
	// KindKernelError wraps a kernel syscall failure; Errno carries the
	// kernel's error code verbatim.
	KindKernelError
	// KindAllocationFailed classifies a failure to allocate a route-list
	// entry. No operation in this package returns it: Router.AddRoute4
	// and Router.DynAdd append to their lists without an allocation
	// check.
	KindAllocationFailed
	// KindInvalidArgument covers caller input the core rejects outright,
	// e.g. prefix length 0.
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindBusy:
		return "busy"
	case KindTableFull:
		return "table full"
	case KindNotFound:
		return "not found"
	case KindKernelError:
		return "kernel error"
	case KindAllocationFailed:
		return "allocation failed"
	case KindInvalidArgument:
		return "invalid argument"
	default:
		return "unspecified"
	}
}

// Error is the error type returned at the public surface of this package.
type Error struct {
	Kind   Kind
	Op     string // operation that failed, e.g. "add_vif"
	Detail string // human-readable context (interface name, address, ...)
	Errno  int    // kernel errno, meaningful only when Kind == KindKernelError
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindKernelError:
		return fmt.Sprintf("%s: %s (errno %d)", e.Op, e.Kind, e.Errno)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Detail)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

// Is lets errors.Is match on Kind alone, so callers can write
// errors.Is(err, mroute.ErrNotFound) regardless of Op/Detail/Errno.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for errors.Is comparisons at call sites.
var (
	ErrUnsupported      = &Error{Kind: KindUnsupported}
	ErrBusy             = &Error{Kind: KindBusy}
	ErrTableFull        = &Error{Kind: KindTableFull}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrAllocationFailed = &Error{Kind: KindAllocationFailed}
	ErrInvalidPrefixLen = &Error{Kind: KindInvalidArgument, Detail: "prefix length must be in 1..32"}
)

func kernelErr(op string, errno int) *Error {
	return &Error{Kind: KindKernelError, Op: op, Errno: errno}
}
