package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// json uses the std-compatible sonic configuration so stored bytes match encoding/json.
var json = sonic.ConfigStd

// Encode converts a typed entity into a Document.
func Encode(v interface{}) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return doc, nil
}

// Decode converts a Document into a typed entity.
func Decode[T any](doc Document) (T, error) {
	var out T
	if err := decodeInto(doc, &out); err != nil {
		return out, err
	}
	return out, nil
}

func decodeInto(doc Document, v interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// MarshalDocument serializes a Document for byte-oriented backends.
func MarshalDocument(doc Document) ([]byte, error) {
	return json.Marshal(doc)
}

// UnmarshalDocument parses bytes written by MarshalDocument.
func UnmarshalDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt document: %w", err)
	}
	return doc, nil
}

// normalize turns an arbitrary Go value into its JSON-shaped equivalent.
func normalize(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case nil, string, bool, float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeFilter converts filter values to their JSON-shaped form.
func NormalizeFilter(f Filter) (Filter, error) {
	out := make(Filter, len(f))
	for k, v := range f {
		n, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("invalid filter value for %s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// Get finds one document and decodes it. Absence is (nil, nil).
func Get[T any](ctx context.Context, c Collection, filter Filter) (*T, error) {
	doc, err := c.FindOne(ctx, filter)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out, err := Decode[T](doc)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindAll runs Find and decodes every result.
func FindAll[T any](ctx context.Context, c Collection, filter Filter, opts FindOptions) ([]T, error) {
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return All[T](ctx, cur)
}

// All drains a cursor into typed values and closes it.
func All[T any](ctx context.Context, cur Cursor) ([]T, error) {
	defer cur.Close()

	out := make([]T, 0)
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SliceCursor iterates an already materialized, ordered result set.
type SliceCursor struct {
	docs []Document
	pos  int
	err  error
}

// NewSliceCursor wraps docs in a Cursor.
func NewSliceCursor(docs []Document) *SliceCursor {
	return &SliceCursor{docs: docs, pos: -1}
}

func (c *SliceCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	c.pos++
	return c.pos < len(c.docs)
}

func (c *SliceCursor) Document() Document {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return nil
	}
	return c.docs[c.pos]
}

func (c *SliceCursor) Decode(v interface{}) error {
	doc := c.Document()
	if doc == nil {
		return errors.New("cursor is not positioned on a document")
	}
	return decodeInto(doc, v)
}

func (c *SliceCursor) Err() error   { return c.err }
func (c *SliceCursor) Close() error { c.docs = nil; return nil }
