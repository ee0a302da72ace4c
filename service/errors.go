package service

import "errors"

type Kind int

const (
	KindInternal Kind = iota
	// KindValidation is an expected client mistake. The API reports it with HTTP 200.
	KindValidation
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func upstream(msg string, err error) error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// KindOf classifies err; anything that is not a *Error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
