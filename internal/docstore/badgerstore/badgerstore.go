// Package badgerstore persists documents in an embedded Badger database.
//
// Keys are "<collection>\x00<id>" and values are the JSON-encoded document.
// Writes for one collection are serialized in-process and run inside a single
// Badger transaction, which is retried on conflict.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/docstore"
)

const (
	keySep        = "\x00"
	maxTxnRetries = 16
)

// Options configures the store.
type Options struct {
	Path     string
	InMemory bool
	Logger   *zap.Logger
}

// Store is a Badger-backed docstore.Store.
type Store struct {
	db  *badger.DB
	log *zap.Logger

	mu          sync.Mutex
	collections map[string]*collection
}

// Open opens (or creates) the database described by opts.
func Open(opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	bopts := badger.DefaultOptions(opts.Path).WithLogger(badgerLogger{log.Sugar()})
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{log.Sugar()})
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, docstore.Unavailable("open", fmt.Errorf("failed to open badger at %q: %w", opts.Path, err))
	}

	log.Info("Badger store opened", zap.String("path", opts.Path), zap.Bool("in_memory", opts.InMemory))
	return &Store{db: db, log: log, collections: make(map[string]*collection)}, nil
}

// Collection returns the named collection.
func (s *Store) Collection(name string) docstore.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &collection{name: name, db: s.db, prefix: []byte(name + keySep)}
		s.collections[name] = c
	}
	return c
}

// Ping runs an empty read transaction.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return docstore.Unavailable("ping", err)
	}
	if s.db.IsClosed() {
		return docstore.Unavailable("ping", errors.New("badger closed"))
	}
	return docstore.Unavailable("ping", s.db.View(func(*badger.Txn) error { return nil }))
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

type collection struct {
	name   string
	db     *badger.DB
	prefix []byte

	writeMu sync.Mutex
}

func (c *collection) Name() string { return c.name }

func (c *collection) key(id string) []byte {
	k := make([]byte, 0, len(c.prefix)+len(id))
	k = append(k, c.prefix...)
	return append(k, id...)
}

func (c *collection) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return docstore.Unavailable(op, err)
	}
	if c.db.IsClosed() {
		return docstore.Unavailable(op, errors.New("badger closed"))
	}
	return nil
}

// scan calls fn for every document in the collection matching filter, in id order.
func (c *collection) scan(txn *badger.Txn, filter docstore.Filter, fn func(doc docstore.Document) (bool, error)) error {
	f, err := docstore.NormalizeFilter(filter)
	if err != nil {
		return err
	}

	// Direct lookup when the filter pins the id
	if id, ok := f[docstore.IDField].(string); ok {
		doc, err := c.get(txn, id)
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if docstore.Match(doc, f) {
			_, err = fn(doc)
		}
		return err
	}

	itOpts := badger.DefaultIteratorOptions
	itOpts.Prefix = c.prefix
	it := txn.NewIterator(itOpts)
	defer it.Close()

	for it.Seek(c.prefix); it.ValidForPrefix(c.prefix); it.Next() {
		var doc docstore.Document
		err := it.Item().Value(func(val []byte) error {
			var derr error
			doc, derr = docstore.UnmarshalDocument(val)
			return derr
		})
		if err != nil {
			return err
		}
		if !docstore.Match(doc, f) {
			continue
		}
		more, err := fn(doc)
		if err != nil || !more {
			return err
		}
	}
	return nil
}

func (c *collection) get(txn *badger.Txn, id string) (docstore.Document, error) {
	item, err := txn.Get(c.key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc docstore.Document
	err = item.Value(func(val []byte) error {
		var derr error
		doc, derr = docstore.UnmarshalDocument(val)
		return derr
	})
	return doc, err
}

func (c *collection) put(txn *badger.Txn, doc docstore.Document) error {
	data, err := docstore.MarshalDocument(doc)
	if err != nil {
		return err
	}
	return txn.Set(c.key(doc.ID()), data)
}

func (c *collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	if err := c.check(ctx, "find_one"); err != nil {
		return nil, err
	}
	var found docstore.Document
	err := c.db.View(func(txn *badger.Txn) error {
		return c.scan(txn, filter, func(doc docstore.Document) (bool, error) {
			found = doc
			return false, nil
		})
	})
	if err != nil {
		return nil, wrap("find_one", err)
	}
	if found == nil {
		return nil, docstore.ErrNotFound
	}
	return found, nil
}

func (c *collection) Find(ctx context.Context, filter docstore.Filter, opts docstore.FindOptions) (docstore.Cursor, error) {
	if err := c.check(ctx, "find"); err != nil {
		return nil, err
	}
	docs := make([]docstore.Document, 0)
	err := c.db.View(func(txn *badger.Txn) error {
		return c.scan(txn, filter, func(doc docstore.Document) (bool, error) {
			docs = append(docs, doc)
			return true, nil
		})
	})
	if err != nil {
		return nil, wrap("find", err)
	}

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
	if doc.ID() == "" {
		return docstore.ErrMissingID
	}
	stored, err := docstore.Encode(doc)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wrap("insert_one", c.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(c.key(stored.ID()))
		if err == nil {
			return docstore.ErrDuplicate
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return c.put(txn, stored)
	}))
}

func (c *collection) mutate(ctx context.Context, op string, filter docstore.Filter, m *docstore.Mutation, many bool) (docstore.UpdateResult, error) {
	var res docstore.UpdateResult
	if err := c.check(ctx, op); err != nil {
		return res, err
	}
	if err := m.Err(); err != nil {
		return res, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	err := c.update(ctx, func(txn *badger.Txn) error {
		res = docstore.UpdateResult{}
		var changed []docstore.Document
		err := c.scan(txn, filter, func(doc docstore.Document) (bool, error) {
			ok, err := docstore.Apply(doc, m)
			if err != nil {
				return false, err
			}
			res.Matched++
			if ok {
				res.Modified++
				changed = append(changed, doc)
			}
			return many, nil
		})
		if err != nil {
			return err
		}
		for _, doc := range changed {
			if err := c.put(txn, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return docstore.UpdateResult{}, wrap(op, err)
	}
	return res, nil
}

func (c *collection) UpdateOne(ctx context.Context, filter docstore.Filter, m *docstore.Mutation) (docstore.UpdateResult, error) {
	return c.mutate(ctx, "update_one", filter, m, false)
}

func (c *collection) UpdateMany(ctx context.Context, filter docstore.Filter, m *docstore.Mutation) (docstore.UpdateResult, error) {
	return c.mutate(ctx, "update_many", filter, m, true)
}

func (c *collection) DeleteOne(ctx context.Context, filter docstore.Filter) (int, error) {
	if err := c.check(ctx, "delete_one"); err != nil {
		return 0, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deleted := 0
	err := c.update(ctx, func(txn *badger.Txn) error {
		deleted = 0
		var id string
		err := c.scan(txn, filter, func(doc docstore.Document) (bool, error) {
			id = doc.ID()
			return false, nil
		})
		if err != nil || id == "" {
			return err
		}
		deleted = 1
		return txn.Delete(c.key(id))
	})
	if err != nil {
		return 0, wrap("delete_one", err)
	}
	return deleted, nil
}

func (c *collection) Count(ctx context.Context, filter docstore.Filter) (int, error) {
	if err := c.check(ctx, "count"); err != nil {
		return 0, err
	}
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		return c.scan(txn, filter, func(docstore.Document) (bool, error) {
			n++
			return true, nil
		})
	})
	if err != nil {
		return 0, wrap("count", err)
	}
	return n, nil
}

// update runs fn in a read-write transaction, retrying on conflict.
func (c *collection) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = c.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Millisecond):
		}
	}
	return err
}

// wrap passes domain errors through and marks everything else unavailable.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		docstore.ErrNotFound,
		docstore.ErrDuplicate,
		docstore.ErrMissingID,
		docstore.ErrInvalidMutation,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return docstore.Unavailable(op, err)
}

// badgerLogger routes Badger's internal logging through zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.s.Errorf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.s.Warnf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.s.Debugf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.s.Debugf(f, v...) }
