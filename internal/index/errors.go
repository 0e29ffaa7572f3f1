package index

import "errors"

// Sentinel errors for index operations.
var (
	ErrNotFound      = errors.New("index: not found")
	ErrUnauthorized  = errors.New("index: unauthorized")
	ErrTransport     = errors.New("index: transport failure")
	ErrMalformed     = errors.New("index: malformed request")
	ErrAlreadyExists = errors.New("index: already exists")
)

// Op names carried by Error for diagnostics.
const (
	OpCreateCollection   = "create_collection"
	OpRetrieveCollection = "retrieve_collection"
	OpUpsert             = "upsert"
	OpRetrieve           = "retrieve"
	OpDelete             = "delete"
	OpDeleteByFilter     = "delete_by_filter"
	OpSearch             = "search"
	OpHealth             = "health"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// Kind returns a short label for the taxonomy class of err, used in logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "transport"
	}
}
