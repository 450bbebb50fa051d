package submission

import (
	"context"
	"errors"
	"net/http"
)

type Reason string

const (
	ReasonValidation        Reason = "validation"
	ReasonSessionExpired    Reason = "session_expired"
	ReasonSetupRequired     Reason = "setup_required"
	ReasonNetwork           Reason = "network"
	ReasonTimeout           Reason = "timeout"
	ReasonAlreadySubmitting Reason = "already_submitting"
)

// Failure is a submission that did not produce a confirmed record. The
// draft stays intact so it can be retried with the same id.
type Failure struct {
	Reason  Reason
	Message string
	Err     error
}

func (failure *Failure) Error() string {
	return failure.Message
}

func (failure *Failure) Unwrap() error {
	return failure.Err
}

// Retryable reports whether retrying the same draft can succeed without
// the user changing it.
func (failure *Failure) Retryable() bool {
	return failure.Reason == ReasonNetwork || failure.Reason == ReasonTimeout
}

// statusCoder is implemented by gateway errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

func classify(err error) *Failure {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Reason: ReasonTimeout, Message: "the server did not answer in time, please retry", Err: err}
	}

	var coded statusCoder
	if !errors.As(err, &coded) {
		return &Failure{Reason: ReasonNetwork, Message: "network unavailable, please retry", Err: err}
	}

	status := coded.HTTPStatus()
	switch {
	case status == http.StatusUnauthorized:
		return &Failure{Reason: ReasonSessionExpired, Message: "your session has expired, please log in again", Err: err}
	case status == http.StatusConflict:
		return &Failure{Reason: ReasonSetupRequired, Message: "add your medications before logging a dose", Err: err}
	case status >= 500:
		return &Failure{Reason: ReasonNetwork, Message: "the server is unavailable, please retry", Err: err}
	default:
		return &Failure{Reason: ReasonValidation, Message: err.Error(), Err: err}
	}
}
