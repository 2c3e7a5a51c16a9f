// Package apperr holds the error taxonomy shared by the services and the
// HTTP layer. Every constructor returns an error that still satisfies
// errors.Is against its kind after further annotation.
package apperr

import (
	"github.com/juju/errors"
)

const (
	// NotAuthenticated is returned when an operation needs a session and
	// the caller has none.
	NotAuthenticated = errors.ConstError("not authenticated")

	// GatewayError marks failures of the identity, document or blob
	// backends. The backend message is kept verbatim.
	GatewayError = errors.ConstError("gateway error")
)

// Validation reports an empty or malformed required field.
func Validation(format string, args ...interface{}) error {
	return errors.WithType(errors.Errorf(format, args...), errors.NotValid)
}

// Conflict reports a uniqueness violation such as a taken handle.
func Conflict(format string, args ...interface{}) error {
	return errors.WithType(errors.Errorf(format, args...), errors.AlreadyExists)
}

// Auth reports bad credentials or an unusable token.
func Auth(format string, args ...interface{}) error {
	return errors.WithType(errors.Errorf(format, args...), errors.Unauthorized)
}

func NotFound(format string, args ...interface{}) error {
	return errors.WithType(errors.Errorf(format, args...), errors.NotFound)
}

// Unauthenticated is the error for a missing session.
func Unauthenticated() error {
	return errors.WithType(errors.New("user not found, create your account"), NotAuthenticated)
}

// Gateway wraps a backend failure. A nil err yields nil.
func Gateway(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.WithType(errors.Annotatef(err, format, args...), GatewayError)
}

func IsValidation(err error) bool { return errors.Is(err, errors.NotValid) }

func IsConflict(err error) bool { return errors.Is(err, errors.AlreadyExists) }

func IsAuth(err error) bool { return errors.Is(err, errors.Unauthorized) }

func IsNotFound(err error) bool { return errors.Is(err, errors.NotFound) }

func IsNotAuthenticated(err error) bool { return errors.Is(err, NotAuthenticated) }

func IsGateway(err error) bool { return errors.Is(err, GatewayError) }
