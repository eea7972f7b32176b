package domain

import (
	"net/http"

	"github.com/go-faster/errors"
)

var (
	ErrEmptyID       = errors.New("item id is empty")
	ErrDuplicateID   = errors.New("duplicate item id")
	ErrNegativePrice = errors.New("negative item price")
	ErrItemNotInCart = errors.New("item not in cart")
)

// Kind classifies a failure coming from the cart service.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindNotFound
	KindServer
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server_error"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func NewError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// KindFromStatus maps an HTTP response status of the backend to a Kind.
// Statuses below 400 are not failures and map to KindUnknown.
func KindFromStatus(code int) Kind {
	switch {
	case code == http.StatusNotFound:
		return KindNotFound
	case code >= 500:
		return KindServer
	case code >= 400:
		return KindInvalid
	default:
		return KindUnknown
	}
}
