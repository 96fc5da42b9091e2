// Package errs normalizes the indexer engine's error control flow to the
// four kinds named in spec.md §7: Configuration, Transient, Decode, and
// Persistence (split into Conflict and Fatal).
package errs

import "fmt"

// Kind classifies an error for the purposes of cycle-level recovery.
type Kind string

const (
	// KindConfiguration is fatal: unknown enum value, missing strategy
	// param, inadmissible strategy, malformed token. The worker exits.
	KindConfiguration Kind = "configuration"
	// KindTransient is a skip: RPC timeouts, node errors, filter-creation
	// failures. The current step is skipped; the watermark does not move.
	KindTransient Kind = "transient"
	// KindDecode means a malformed log was dropped; never propagates past
	// the decoder boundary as anything other than an empty result plus a
	// logged warning, but is still named here for callers that want to
	// report the reason a record was dropped.
	KindDecode Kind = "decode"
	// KindPersistenceConflict is a duplicate tx_hash: a benign, idempotent
	// skip.
	KindPersistenceConflict Kind = "persistence_conflict"
	// KindPersistenceFatal is any other constraint or schema violation.
	// It propagates to the cycle boundary and the watermark is not
	// advanced.
	KindPersistenceFatal Kind = "persistence_fatal"
)

// Error wraps an underlying cause with the Kind used to decide cycle
// recovery policy.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target shares this error's Kind, so callers can match
// against a sentinel built with New and an empty Op, e.g.
// errors.Is(err, errs.New(errs.KindTransient, "", nil)).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind && other.Op == ""
}

// New constructs an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configurationf builds a KindConfiguration error, fatal at startup or
// validation time.
func Configurationf(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: fmt.Errorf(format, args...)}
}

// Transientf builds a KindTransient error.
func Transientf(op, format string, args ...any) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: fmt.Errorf(format, args...)}
}

// IsConfiguration reports whether err (or a wrapped cause) is a fatal
// configuration error.
func IsConfiguration(err error) bool {
	var e *Error
	return asError(err, &e) && e.Kind == KindConfiguration
}

// IsTransient reports whether err (or a wrapped cause) is a transient,
// retry-next-cycle error.
func IsTransient(err error) bool {
	var e *Error
	return asError(err, &e) && e.Kind == KindTransient
}

// IsPersistenceConflict reports a benign duplicate-key skip.
func IsPersistenceConflict(err error) bool {
	var e *Error
	return asError(err, &e) && e.Kind == KindPersistenceConflict
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
