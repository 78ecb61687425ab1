package identity

import (
	"errors"
	"fmt"
)

// Kind classifies why a resolution failed
type Kind int

// Resolution failure kinds
const (
	InvalidFormat       Kind = iota + 1 // input is neither a name nor an address
	NameNotFound                        // forward lookup found no binding
	ProviderUnavailable                 // name service failed or timed out
)

func (k Kind) String() string {
	switch k {
	case InvalidFormat:
		return "invalid format"
	case NameNotFound:
		return "name not found"
	case ProviderUnavailable:
		return "provider unavailable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is checks against a ResolutionError
var (
	ErrInvalidFormat       = errors.New("invalid address or ENS name")
	ErrNameNotFound        = errors.New("ENS name not found")
	ErrProviderUnavailable = errors.New("name service unavailable")
)

// ResolutionError reports a failed identity resolution
type ResolutionError struct {
	Kind  Kind
	Input string
	Err   error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %q: %s: %v", e.Input, e.Kind, e.Err)
	}
	return fmt.Sprintf("resolve %q: %s", e.Input, e.Kind)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel belonging to the error's kind
func (e *ResolutionError) Is(target error) bool {
	switch target {
	case ErrInvalidFormat:
		return e.Kind == InvalidFormat
	case ErrNameNotFound:
		return e.Kind == NameNotFound
	case ErrProviderUnavailable:
		return e.Kind == ProviderUnavailable
	}
	return false
}

// KindOf returns the kind of a ResolutionError anywhere in err's chain, or zero
func KindOf(err error) Kind {
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return resErr.Kind
	}
	return 0
}
