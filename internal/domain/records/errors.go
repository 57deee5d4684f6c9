package records

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means the requested row does not exist or is not visible
	// to the current principal.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable means the Record Store could not be reached.
	ErrUnavailable = errors.New("record store unavailable")
	// ErrUnauthenticated means no principal was supplied or it was rejected.
	ErrUnauthenticated = errors.New("principal not authenticated")
	// ErrInvalid means the payload was rejected by the Record Store.
	ErrInvalid = errors.New("invalid record")
)

// Kind classifies an error for local decision-making.
type Kind int

const (
	KindNone Kind = iota
	KindNotFound
	KindTransport
	KindAuth
	KindInvalid
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

// KindOf reports which taxonomy bucket err falls into.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthenticated):
		return KindAuth
	case errors.Is(err, ErrInvalid):
		return KindInvalid
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTransport
	}
	return KindUnknown
}
