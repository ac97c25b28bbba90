package oauthmodel

import (
	"errors"
	"fmt"
)

// FlowError is the error returned by every step of the authorization flow.
//
// It is a closed sum type: the only implementations are *HardError and
// *RedirectError. A hard error must never be sent to the redirect_uri, a
// redirect error may only be produced once the redirect_uri has been proven
// to belong to the client.
type FlowError interface {
	error
	flowError()
}

// HardError is surfaced to a generic error handler (browser endpoints) or
// returned as a JSON error body (token endpoint). It is never redirected.
type HardError struct {
	Code   ErrorCode // OAuth2 error code reported by the token endpoint
	Reason string    // Human readable reason
	Err    error     // Underlying cause, if any
}

func (e *HardError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *HardError) Unwrap() error { return e.Err }

func (*HardError) flowError() {}

// RedirectError is delivered to the client application by redirecting the
// browser to the verified redirect_uri with error and state parameters.
type RedirectError struct {
	Code ErrorCode
}

func (e *RedirectError) Error() string {
	return "redirect error: " + string(e.Code)
}

func (*RedirectError) flowError() {}

// Hard builds a hard error with the invalid_request code.
func Hard(reason string) *HardError {
	return &HardError{Code: ErrCodeInvalidRequest, Reason: reason}
}

// Hardf builds a hard error with the given code and a formatted reason.
func Hardf(code ErrorCode, format string, args ...any) *HardError {
	return &HardError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// HardWrap builds a hard error that keeps err as its cause.
func HardWrap(code ErrorCode, reason string, err error) *HardError {
	return &HardError{Code: code, Reason: reason, Err: err}
}

// Redirect builds a redirect error.
func Redirect(code ErrorCode) *RedirectError {
	return &RedirectError{Code: code}
}

// Classify splits err into exactly one of the two variants. Errors that are
// not flow errors are treated as hard server errors, so an unexpected failure
// can never be redirected.
func Classify(err error) (hard *HardError, redirect *RedirectError) {
	var flowErr FlowError
	if !errors.As(err, &flowErr) {
		return HardWrap(ErrCodeServerError, "internal error", err), nil
	}
	switch e := flowErr.(type) {
	case *HardError:
		return e, nil
	case *RedirectError:
		return nil, e
	default:
		panic(fmt.Sprintf("oauthmodel: unknown flow error variant %T", flowErr))
	}
}
