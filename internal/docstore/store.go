package docstore

import (
	"context"
	"errors"
	"fmt"
)

// IDField is the key field every document carries.
const IDField = "id"

var (
	ErrNotFound        = errors.New("document not found")
	ErrDuplicate       = errors.New("document already exists")
	ErrMissingID       = errors.New("document has no id")
	ErrInvalidMutation = errors.New("invalid mutation")
	ErrUnavailable     = errors.New("document store unavailable")
)

// UnavailableError marks a connectivity or timeout failure of the backend.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("document store unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Unavailable wraps a backend failure so callers can match ErrUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}

// IsUnavailable reports whether err is a storage availability failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Document is a JSON-shaped record.
type Document map[string]interface{}

// ID returns the document key.
func (d Document) ID() string {
	s, _ := d[IDField].(string)
	return s
}

// Filter maps dotted field paths to expected values.
type Filter map[string]interface{}

// SortKey orders by one field.
type SortKey struct {
	Field string
	Desc  bool
}

// Asc sorts ascending by field.
func Asc(field string) SortKey { return SortKey{Field: field} }

// Desc sorts descending by field.
func Desc(field string) SortKey { return SortKey{Field: field, Desc: true} }

// FindOptions controls Find ordering and size. Results are always tie-broken by id.
type FindOptions struct {
	Sort  []SortKey
	Limit int
}

// UpdateResult reports how many documents matched and changed.
type UpdateResult struct {
	Matched  int
	Modified int
}

// Store hands out collections over one backend.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close() error
}

// Collection is a named set of documents.
type Collection interface {
	Name() string
	FindOne(ctx context.Context, filter Filter) (Document, error)
	Find(ctx context.Context, filter Filter, opts FindOptions) (Cursor, error)
	InsertOne(ctx context.Context, doc Document) error
	UpdateOne(ctx context.Context, filter Filter, m *Mutation) (UpdateResult, error)
	UpdateMany(ctx context.Context, filter Filter, m *Mutation) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter Filter) (int, error)
	Count(ctx context.Context, filter Filter) (int, error)
}

// Cursor is a forward-only sequence of documents. Backends sort in memory,
// so Find materializes the full result before returning and the cursor
// reflects the collection as of that call.
type Cursor interface {
	Next(ctx context.Context) bool
	Document() Document
	Decode(v interface{}) error
	Err() error
	Close() error
}
