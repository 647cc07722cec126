package docstore

import (
	"context"
	"errors"
	"time"
)

// Observer receives the outcome of every collection operation.
type Observer interface {
	ObserveStoreOp(collection, op string, err error, duration time.Duration)
}

type observedStore struct {
	Store
	obs Observer
}

// Observed reports every collection call of s to obs.
func Observed(s Store, obs Observer) Store {
	if obs == nil {
		return s
	}
	return &observedStore{Store: s, obs: obs}
}

func (s *observedStore) Collection(name string) Collection {
	return &observedCollection{inner: s.Store.Collection(name), obs: s.obs}
}

type observedCollection struct {
	inner Collection
	obs   Observer
}

func (c *observedCollection) observe(op string, start time.Time, err error) {
	c.obs.ObserveStoreOp(c.inner.Name(), op, err, time.Since(start))
}

func (c *observedCollection) Name() string { return c.inner.Name() }

func (c *observedCollection) FindOne(ctx context.Context, filter Filter) (doc Document, err error) {
	defer func(start time.Time) { c.observe("find_one", start, ignoreNotFound(err)) }(time.Now())
	return c.inner.FindOne(ctx, filter)
}

func (c *observedCollection) Find(ctx context.Context, filter Filter, opts FindOptions) (cur Cursor, err error) {
	defer func(start time.Time) { c.observe("find", start, err) }(time.Now())
	return c.inner.Find(ctx, filter, opts)
}

func (c *observedCollection) InsertOne(ctx context.Context, doc Document) (err error) {
	defer func(start time.Time) { c.observe("insert_one", start, err) }(time.Now())
	return c.inner.InsertOne(ctx, doc)
}

func (c *observedCollection) UpdateOne(ctx context.Context, filter Filter, m *Mutation) (res UpdateResult, err error) {
	defer func(start time.Time) { c.observe("update_one", start, err) }(time.Now())
	return c.inner.UpdateOne(ctx, filter, m)
}

func (c *observedCollection) UpdateMany(ctx context.Context, filter Filter, m *Mutation) (res UpdateResult, err error) {
	defer func(start time.Time) { c.observe("update_many", start, err) }(time.Now())
	return c.inner.UpdateMany(ctx, filter, m)
}

func (c *observedCollection) DeleteOne(ctx context.Context, filter Filter) (n int, err error) {
	defer func(start time.Time) { c.observe("delete_one", start, err) }(time.Now())
	return c.inner.DeleteOne(ctx, filter)
}

func (c *observedCollection) Count(ctx context.Context, filter Filter) (n int, err error) {
	defer func(start time.Time) { c.observe("count", start, err) }(time.Now())
	return c.inner.Count(ctx, filter)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
