package docstore

import (
	"context"
	"time"
)

// activeCollection scopes every predicate to documents whose flag is true.
type activeCollection struct {
	inner Collection
	flag  string
	stamp string
	now   func() time.Time
}

// ActiveOption configures a collection returned by Active.
type ActiveOption func(*activeCollection)

// Stamp makes DeleteOne also set field to now() on the soft-deleted document.
func Stamp(field string, now func() time.Time) ActiveOption {
	return func(a *activeCollection) {
		a.stamp = field
		a.now = now
	}
}

// Active wraps c so reads and updates only see documents with flag == true,
// inserts default the flag to true, and DeleteOne clears the flag instead of
// removing the document.
func Active(c Collection, flag string, opts ...ActiveOption) Collection {
	a := &activeCollection{inner: c, flag: flag}
	for _, opt := range opts {
		opt(a)
	}
	if a.stamp != "" && a.now == nil {
		a.now = time.Now
	}
	return a
}

func (a *activeCollection) scope(f Filter) Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[a.flag] = true
	return out
}

func (a *activeCollection) Name() string { return a.inner.Name() }

func (a *activeCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	return a.inner.FindOne(ctx, a.scope(filter))
}

func (a *activeCollection) Find(ctx context.Context, filter Filter, opts FindOptions) (Cursor, error) {
	return a.inner.Find(ctx, a.scope(filter), opts)
}

func (a *activeCollection) InsertOne(ctx context.Context, doc Document) error {
	if _, ok := doc[a.flag]; !ok {
		doc[a.flag] = true
	}
	return a.inner.InsertOne(ctx, doc)
}

func (a *activeCollection) UpdateOne(ctx context.Context, filter Filter, m *Mutation) (UpdateResult, error) {
	return a.inner.UpdateOne(ctx, a.scope(filter), m)
}

func (a *activeCollection) UpdateMany(ctx context.Context, filter Filter, m *Mutation) (UpdateResult, error) {
	return a.inner.UpdateMany(ctx, a.scope(filter), m)
}

// DeleteOne soft-deletes the first active match.
func (a *activeCollection) DeleteOne(ctx context.Context, filter Filter) (int, error) {
	m := NewMutation().Set(a.flag, false)
	if a.stamp != "" {
		m.Set(a.stamp, a.now().UTC())
	}
	res, err := a.inner.UpdateOne(ctx, a.scope(filter), m)
	if err != nil {
		return 0, err
	}
	return res.Matched, nil
}

func (a *activeCollection) Count(ctx context.Context, filter Filter) (int, error) {
	return a.inner.Count(ctx, a.scope(filter))
}
