package source

import (
	"errors"
	"fmt"
)

// FetchError classifies an adapter failure. Permanent failures (source
// does not exist, access revoked) count toward subscription deactivation;
// transient failures (timeouts, rate limits, server errors) never do.
type FetchError struct {
	Permanent bool
	Err       error
}

func (e *FetchError) Error() string {
	if e.Permanent {
		return "permanent: " + e.Err.Error()
	}
	return "transient: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

func permanentErr(err error) error { return &FetchError{Permanent: true, Err: err} }
func transientErr(err error) error { return &FetchError{Err: err} }

// Permanentf builds a permanent fetch failure. Used by callers outside the
// package, e.g. when no adapter exists for a platform.
func Permanentf(format string, args ...any) error {
	return permanentErr(fmt.Errorf(format, args...))
}

// IsPermanent reports whether err is a permanent fetch failure.
// Unclassified errors are treated as transient.
func IsPermanent(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Permanent
}
