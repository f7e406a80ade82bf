package splitlib

import (
	"errors"
	"net/http"
)

// Messages returned to clients in the {"error": ...} body.
const (
	MsgInvalidForm = "Invalid FormData"
	MsgSplitFailed = "Failed to split PDF"
	MsgUnknown     = "Unknown error occurred"
)

// Kind classifies a failure so the response can be shaped in one place.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidForm
	KindUpstream
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindInvalidForm:
		return "invalid_form"
	case KindUpstream:
		return "upstream"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is the tagged error produced by every fallible step of a split.
// Status is the HTTP status the failure would carry if it were propagated.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalidForm(cause error) *Error {
	return &Error{Kind: KindInvalidForm, Status: http.StatusBadRequest, Message: MsgInvalidForm, Err: cause}
}

func upstreamFailed(status int) *Error {
	return &Error{Kind: KindUpstream, Status: status, Message: MsgSplitFailed}
}

func transportFailed(cause error) *Error {
	return &Error{Kind: KindTransport, Status: http.StatusBadGateway, Err: cause}
}

// Message returns the client-facing message for err.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		if msg := se.Error(); msg != "" {
			return msg
		}
		return MsgUnknown
	}
	if err == nil || err.Error() == "" {
		return MsgUnknown
	}
	return err.Error()
}

// StatusOf returns the status carried by err, or 500 for untagged errors.
func StatusOf(err error) int {
	var se *Error
	if errors.As(err, &se) && se.Status != 0 {
		return se.Status
	}
	return http.StatusInternalServerError
}

// KindOf returns the kind of err, KindUnknown for untagged errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}
