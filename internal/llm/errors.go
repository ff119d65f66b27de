package llm

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a completion produced no text.
type FailureKind string

const (
	FailureTimeout           FailureKind = "TIMEOUT"
	FailureConnection        FailureKind = "CONNECTION_ERROR"
	FailureNonSuccessStatus  FailureKind = "NON_SUCCESS_STATUS"
	FailureMalformedResponse FailureKind = "MALFORMED_RESPONSE"
	FailureUnknown           FailureKind = "UNKNOWN"
)

// Failure is the only error type returned by a Completer.
type Failure struct {
	Kind       FailureKind
	StatusCode int    // set for FailureNonSuccessStatus
	Body       string // raw response body, capped
	Err        error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case FailureNonSuccessStatus:
		return fmt.Sprintf("llm %s: status %d: %s", f.Kind, f.StatusCode, f.Body)
	default:
		if f.Err != nil {
			return fmt.Sprintf("llm %s: %v", f.Kind, f.Err)
		}
		return "llm " + string(f.Kind)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// UserMessage is the text shown in the status line.
func (f *Failure) UserMessage() string {
	switch f.Kind {
	case FailureTimeout:
		return "request timed out, please try again later"
	case FailureConnection:
		return "could not connect to the model service, check the network and API_URL"
	case FailureNonSuccessStatus:
		return fmt.Sprintf("model service returned status %d: %s", f.StatusCode, f.Body)
	case FailureMalformedResponse:
		return "model service returned an unexpected response"
	default:
		if f.Err != nil {
			return "analysis failed: " + f.Err.Error()
		}
		return "analysis failed"
	}
}

// KindOf returns the failure kind of err, or FailureUnknown for foreign errors.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureUnknown
}
