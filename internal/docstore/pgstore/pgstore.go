// Package pgstore keeps documents as JSONB rows in PostgreSQL through GORM.
//
// Every collection shares one table keyed by (collection, id). Scalar filter
// conditions are pushed down as jsonpath predicates; the final decision is
// always made by docstore.Match so semantics equal the other backends.
// Updates lock matching rows with SELECT ... FOR UPDATE.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/GriffinCanCode/Orbit/backend/internal/docstore"
)

// PostgreSQL error codes the store reacts to
const (
	pgErrUniqueViolation    = "23505"
	pgErrConnectionClass    = "08"
	pgErrInsufficientClass  = "53"
	pgErrOperatorIntervened = "57"
)

// DefaultTable holds documents unless Options.Table says otherwise.
const DefaultTable = "documents"

// Options configures the store.
type Options struct {
	DSN     string
	Table   string
	Retries int
	Logger  *zap.Logger
}

// record is one stored document.
type record struct {
	Collection string    `gorm:"column:collection;primaryKey;type:varchar(64)"`
	ID         string    `gorm:"column:id;primaryKey;type:varchar(128)"`
	Body       []byte    `gorm:"column:body;type:jsonb;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Store is a PostgreSQL-backed docstore.Store.
type Store struct {
	db    *gorm.DB
	table string
	log   *zap.Logger
}

// Open connects, retrying a few times, and migrates the document table.
func Open(ctx context.Context, opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	table := opts.Table
	if table == "" {
		table = DefaultTable
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = 5
	}

	var (
		db  *gorm.DB
		err error
	)
	for attempt := 1; attempt <= retries; attempt++ {
		db, err = gorm.Open(postgres.Open(opts.DSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err == nil {
			break
		}
		log.Warn("Postgres connection attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, docstore.Unavailable("open", ctx.Err())
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	if err != nil {
		return nil, docstore.Unavailable("open", fmt.Errorf("failed to connect to postgres: %w", err))
	}

	s := &Store{db: db, table: table, log: log}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	log.Info("Postgres store opened", zap.String("table", table))
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Table(s.table).AutoMigrate(&record{}); err != nil {
		return docstore.Unavailable("migrate", err)
	}
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (body jsonb_path_ops)`,
		quoteIdent(s.table+"_body_idx"), quoteIdent(s.table))
	if err := s.db.WithContext(ctx).Exec(idx).Error; err != nil {
		return docstore.Unavailable("migrate", err)
	}
	return nil
}

// DropTable removes the document table. Used by tests.
func (s *Store) DropTable(ctx context.Context) error {
	return s.db.WithContext(ctx).Migrator().DropTable(s.table)
}

// Collection returns the named collection.
func (s *Store) Collection(name string) docstore.Collection {
	return &collection{name: name, store: s}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return docstore.Unavailable("ping", err)
	}
	return docstore.Unavailable("ping", sqlDB.PingContext(ctx))
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type collection struct {
	name  string
	store *Store
}

func (c *collection) Name() string { return c.name }

// query builds the base SELECT with pushed-down predicates.
func (c *collection) query(tx *gorm.DB, f docstore.Filter) *gorm.DB {
	q := tx.Table(c.store.table).Where("collection = ?", c.name)
	if id, ok := f[docstore.IDField].(string); ok {
		q = q.Where("id = ?", id)
	}
	for path, want := range f {
		if path == docstore.IDField || !isScalar(want) {
			continue
		}
		vars, err := docstore.MarshalDocument(docstore.Document{"v": want})
		if err != nil {
			continue
		}
		q = q.Where("jsonb_path_exists(body, ?::jsonpath, ?::jsonb)", jsonPath(path), string(vars))
	}
	return q
}

// load runs q and returns the matching documents in id order.
func (c *collection) load(q *gorm.DB, f docstore.Filter) ([]docstore.Document, error) {
	var rows []record
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]docstore.Document, 0, len(rows))
	for _, r := range rows {
		doc, err := docstore.UnmarshalDocument(r.Body)
		if err != nil {
			return nil, err
		}
		if docstore.Match(doc, f) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (c *collection) find(ctx context.Context, op string, filter docstore.Filter) ([]docstore.Document, error) {
	f, err := docstore.NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	docs, err := c.load(c.query(c.store.db.WithContext(ctx), f), f)
	if err != nil {
		return nil, translate(op, err)
	}
	return docs, nil
}

func (c *collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	docs, err := c.find(ctx, "find_one", filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	return docs[0], nil
}

func (c *collection) Find(ctx context.Context, filter docstore.Filter, opts docstore.FindOptions) (docstore.Cursor, error) {
	docs, err := c.find(ctx, "find", filter)
	if err != nil {
		return nil, err
	}
	docstore.SortDocuments(docs, opts.Sort)
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docstore.NewSliceCursor(docs), nil
}

func (c *collection) InsertOne(ctx context.Context, doc docstore.Document) error {
	if doc.ID() == "" {
		return docstore.ErrMissingID
	}
	stored, err := docstore.Encode(doc)
	if err != nil {
		return err
	}
	body, err := docstore.MarshalDocument(stored)
	if err != nil {
		return err
	}

	rec := record{Collection: c.name, ID: stored.ID(), Body: body}
	if err := c.store.db.WithContext(ctx).Table(c.store.table).Create(&rec).Error; err != nil {
		return translate("insert_one", err)
	}
	return nil
}

func (c *collection) mutate(ctx context.Context, op string, filter docstore.Filter, m *docstore.Mutation, many bool) (docstore.UpdateResult, error) {
	var res docstore.UpdateResult
	if err := m.Err(); err != nil {
		return res, err
	}
	f, err := docstore.NormalizeFilter(filter)
	if err != nil {
		return res, err
	}

	err = c.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		docs, err := c.load(c.query(tx, f).Clauses(clause.Locking{Strength: "UPDATE"}), f)
		if err != nil {
			return err
		}
		if !many && len(docs) > 1 {
			docs = docs[:1]
		}
		for _, doc := range docs {
			changed, err := docstore.Apply(doc, m)
			if err != nil {
				return err
			}
			res.Matched++
			if !changed {
				continue
			}
			body, err := docstore.MarshalDocument(doc)
			if err != nil {
				return err
			}
			err = tx.Table(c.store.table).
				Where("collection = ? AND id = ?", c.name, doc.ID()).
				Updates(map[string]interface{}{"body": body, "updated_at": time.Now().UTC()}).Error
			if err != nil {
				return err
			}
			res.Modified++
		}
		return nil
	})
	if err != nil {
		return docstore.UpdateResult{}, translate(op, err)
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
	f, err := docstore.NormalizeFilter(filter)
	if err != nil {
		return 0, err
	}

	deleted := 0
	err = c.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		docs, err := c.load(c.query(tx, f).Clauses(clause.Locking{Strength: "UPDATE"}), f)
		if err != nil || len(docs) == 0 {
			return err
		}
		result := tx.Table(c.store.table).
			Where("collection = ? AND id = ?", c.name, docs[0].ID()).
			Delete(&record{})
		if result.Error != nil {
			return result.Error
		}
		deleted = int(result.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, translate("delete_one", err)
	}
	return deleted, nil
}

func (c *collection) Count(ctx context.Context, filter docstore.Filter) (int, error) {
	docs, err := c.find(ctx, "count", filter)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// translate maps driver errors onto docstore sentinels.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{docstore.ErrNotFound, docstore.ErrDuplicate, docstore.ErrInvalidMutation} {
		if errors.Is(err, known) {
			return err
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgErrUniqueViolation:
			return docstore.ErrDuplicate
		case strings.HasPrefix(pgErr.Code, pgErrConnectionClass),
			strings.HasPrefix(pgErr.Code, pgErrInsufficientClass),
			strings.HasPrefix(pgErr.Code, pgErrOperatorIntervened):
			return docstore.Unavailable(op, err)
		}
		return fmt.Errorf("postgres %s failed: %w", op, err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return docstore.ErrDuplicate
	}
	// Anything without a server error code is a transport or timeout failure
	return docstore.Unavailable(op, err)
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool, float64:
		return true
	}
	return false
}

// jsonPath renders a dotted field path as a lax jsonpath equality test against $v.
// Lax mode unwraps arrays at every step, matching docstore.Match.
func jsonPath(path string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(path, ".") {
		b.WriteString(`."`)
		b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(seg))
		b.WriteString(`"`)
	}
	b.WriteString(" ? (@ == $v)")
	return b.String()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
