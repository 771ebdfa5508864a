package telemetry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformed         = errors.New("malformed payload")
	ErrWrongLength       = errors.New("wrong payload length")
	ErrIncompleteMessage = errors.New("incomplete message")
)

type DecodeErrorKind int

const (
	Malformed DecodeErrorKind = iota + 1
	WrongLength
)

func (k DecodeErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case WrongLength:
		return "wrong_length"
	default:
		return "unknown"
	}
}

// DecodeError reports a payload that is present but structurally invalid.
// It matches ErrMalformed or ErrWrongLength with errors.Is.
type DecodeError struct {
	Kind       DecodeErrorKind
	Generation Generation
	Detail     string
	Err        error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s payload: %s", e.Generation, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	switch e.Kind {
	case Malformed:
		return target == ErrMalformed
	case WrongLength:
		return target == ErrWrongLength
	}
	return false
}

// ParseError reports a message whose payload is present but whose transmit
// time or position is missing. It matches ErrIncompleteMessage.
type ParseError struct {
	TransmissionID string
	Station        int
	Missing        []string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("station %d transmission %q: incomplete message: missing %s",
		e.Station, e.TransmissionID, strings.Join(e.Missing, ", "))
}

func (e *ParseError) Is(target error) bool { return target == ErrIncompleteMessage }
