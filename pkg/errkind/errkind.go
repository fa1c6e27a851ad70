// Package errkind defines the sentinel error kinds from spec §7, shared
// across the pipeline so callers can discriminate failure policy with
// errors.Is rather than string matching. Each kind wraps the underlying
// cause, following the alreadyUndoneError shape used throughout the
// teacher's mutator packages (struct + Error() + Unwrap()).
package errkind

import "errors"

// Sentinels usable directly with errors.Is, or as the target of
// fmt.Errorf("...: %w", errkind.ErrToolchainMissing).
var (
	ErrBadInput              = errors.New("bad input")
	ErrToolchainMissing      = errors.New("tunnel toolchain missing")
	ErrToolchainFailed       = errors.New("tunnel toolchain invocation failed")
	ErrModulesMissing        = errors.New("required kernel modules missing")
	ErrPrivilegeDenied       = errors.New("insufficient privilege")
	ErrNoSubnetAvailable     = errors.New("no candidate subnet available")
	ErrCloudRejected         = errors.New("cloud stack rejected")
	ErrNetworkTransient      = errors.New("transient network error")
	ErrStackDisappeared      = errors.New("stack disappeared")
	ErrTunnelActivationFailed = errors.New("tunnel activation failed")
	ErrCancelled             = errors.New("cancelled")
	ErrUnexpectedStackState  = errors.New("unexpected stack state")
)

// Wrapped carries a message alongside one of the sentinels above, so
// %v/Error() stays human-readable while errors.Is(err, errkind.ErrX) still
// works through Unwrap.
type Wrapped struct {
	Kind error
	Msg  string
	Err  error
}

func (w *Wrapped) Error() string {
	if w.Err != nil {
		return w.Msg + ": " + w.Err.Error()
	}
	return w.Msg
}

func (w *Wrapped) Unwrap() error {
	// Returning Kind first means errors.Is(w, Kind) succeeds even when Err
	// is nil; errors.Is walks both via multiple Unwrap calls only for
	// error trees, so we chain manually when both are present.
	if w.Err != nil {
		return &chain{a: w.Kind, b: w.Err}
	}
	return w.Kind
}

// chain lets a single Wrapped error satisfy errors.Is against both its kind
// and its underlying cause.
type chain struct {
	a, b error
}

func (c *chain) Error() string { return c.a.Error() + ": " + c.b.Error() }
func (c *chain) Unwrap() []error {
	return []error{c.a, c.b}
}

// New builds a Wrapped error of the given kind.
func New(kind error, msg string, cause error) error {
	return &Wrapped{Kind: kind, Msg: msg, Err: cause}
}
