// Package memstore is an in-process docstore backend.
//
// Each collection is a map guarded by one RWMutex; every write holds the
// write lock for the whole read-apply-replace cycle.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/GriffinCanCode/Orbit/backend/internal/docstore"
)

// Store holds collections in memory.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
	closed      bool
}

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// Collection returns (creating on first use) the named collection.
func (s *Store) Collection(name string) docstore.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &collection{name: name, store: s, docs: make(map[string]docstore.Document)}
		s.collections[name] = c
	}
	return c
}

// Ping fails once the store is closed.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.Unavailable("ping", errClosed)
	}
	return ctx.Err()
}

// Close marks the store unavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type closedError struct{}

func (closedError) Error() string { return "memstore closed" }

var errClosed = closedError{}

type collection struct {
	name  string
	store *Store

	mu   sync.RWMutex
	docs map[string]docstore.Document
}

func (c *collection) Name() string { return c.name }

func (c *collection) check(ctx context.Context, op string) error {
	if c.store.isClosed() {
		return docstore.Unavailable(op, errClosed)
	}
	if err := ctx.Err(); err != nil {
		return docstore.Unavailable(op, err)
	}
	return nil
}

// sortedIDs returns keys in ascending order; callers hold c.mu.
func (c *collection) sortedIDs() []string {
	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *collection) matching(filter docstore.Filter) ([]string, error) {
	f, err := docstore.NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range c.sortedIDs() {
		if docstore.Match(c.docs[id], f) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (c *collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	if err := c.check(ctx, "find_one"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids, err := c.matching(filter)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, docstore.ErrNotFound
	}
	return docstore.CloneDocument(c.docs[ids[0]]), nil
}

func (c *collection) Find(ctx context.Context, filter docstore.Filter, opts docstore.FindOptions) (docstore.Cursor, error) {
	if err := c.check(ctx, "find"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	ids, err := c.matching(filter)
	if err != nil {
		c.mu.RUnlock()
		return nil, err
	}
	docs := make([]docstore.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, docstore.CloneDocument(c.docs[id]))
	}
	c.mu.RUnlock()

	docstore.SortDocuments(docs, opts.Sort)
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docstore.NewSliceCursor(docs), nil
}

func (c *collection) InsertOne(ctx context.Context, doc docstore.Document) error {
	if err := c.check(ctx, "insert_one"); err != nil {
		return err
	}
	id := doc.ID()
	if id == "" {
		return docstore.ErrMissingID
	}
	stored, err := docstore.Encode(doc)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.docs[id]; exists {
		return docstore.ErrDuplicate
	}
	c.docs[id] = stored
	return nil
}

func (c *collection) update(ctx context.Context, op string, filter docstore.Filter, m *docstore.Mutation, many bool) (docstore.UpdateResult, error) {
	var res docstore.UpdateResult
	if err := c.check(ctx, op); err != nil {
		return res, err
	}
	if err := m.Err(); err != nil {
		return res, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.matching(filter)
	if err != nil {
		return res, err
	}
	if !many && len(ids) > 1 {
		ids = ids[:1]
	}

	for _, id := range ids {
		next := docstore.CloneDocument(c.docs[id])
		changed, err := docstore.Apply(next, m)
		if err != nil {
			return res, err
		}
		res.Matched++
		if changed {
			c.docs[id] = next
			res.Modified++
		}
	}
	return res, nil
}

func (c *collection) UpdateOne(ctx context.Context, filter docstore.Filter, m *docstore.Mutation) (docstore.UpdateResult, error) {
	return c.update(ctx, "update_one", filter, m, false)
}

func (c *collection) UpdateMany(ctx context.Context, filter docstore.Filter, m *docstore.Mutation) (docstore.UpdateResult, error) {
	return c.update(ctx, "update_many", filter, m, true)
}

func (c *collection) DeleteOne(ctx context.Context, filter docstore.Filter) (int, error) {
	if err := c.check(ctx, "delete_one"); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.matching(filter)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	delete(c.docs, ids[0])
	return 1, nil
}

func (c *collection) Count(ctx context.Context, filter docstore.Filter) (int, error) {
	if err := c.check(ctx, "count"); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids, err := c.matching(filter)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
