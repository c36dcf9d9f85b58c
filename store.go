package encattr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists records of registered models through GORM. Rows are read and
// written as column maps, so models need no Go struct.
type Store struct {
	db       *gorm.DB
	logger   *slog.Logger
	hook     ObservabilityHook
	resolver KeyResolver

	mu     sync.RWMutex
	models map[string]*Model
}

// StoreOption configures a Store
type StoreOption func(*Store) error

// WithStoreLogger sets the logger used for store events and finder deprecations.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfiguration)
		}
		s.logger = logger
		return nil
	}
}

// WithObservabilityHook sets the hook notified around every store operation.
func WithObservabilityHook(hook ObservabilityHook) StoreOption {
	return func(s *Store) error {
		if hook == nil {
			return fmt.Errorf("%w: observability hook cannot be nil", ErrInvalidConfiguration)
		}
		s.hook = hook
		return nil
	}
}

// WithKeyResolver sets the resolver for keys declared with WithKeyRef.
func WithKeyResolver(resolver KeyResolver) StoreOption {
	return func(s *Store) error {
		if resolver == nil {
			return fmt.Errorf("%w: key resolver cannot be nil", ErrInvalidConfiguration)
		}
		s.resolver = resolver
		return nil
	}
}

// NewStore creates a store over db.
func NewStore(db *gorm.DB, options ...StoreOption) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database cannot be nil", ErrInvalidConfiguration)
	}
	s := &Store{
		db:     db,
		logger: slog.Default(),
		hook:   &NoOpObservabilityHook{},
		models: make(map[string]*Model),
	}
	for i, opt := range options {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("invalid option %d: %w", i+1, err)
		}
	}
	return s, nil
}

// DB returns the underlying GORM handle.
func (s *Store) DB() *gorm.DB { return s.db }

// Register connects m to the store. When the table exists its columns are
// introspected, which enables unknown attribute checks and partial-load
// detection. Named keys are resolved once here.
func (s *Store) Register(ctx context.Context, m *Model) error {
	return s.observe(ctx, "register", m, func() error {
		migrator := s.db.WithContext(ctx).Migrator()
		var cols []string
		if migrator.HasTable(m.table) {
			types, err := migrator.ColumnTypes(m.table)
			if err != nil {
				return fmt.Errorf("failed to introspect table %s: %w", m.table, err)
			}
			for _, ct := range types {
				cols = append(cols, ct.Name())
			}
		} else {
			s.logger.WarnContext(ctx, "table does not exist, column checks disabled",
				"model", m.name, "table", m.table)
		}
		m.setColumns(cols)

		for _, a := range m.EncryptedAttributes() {
			if a.keyRef == "" {
				continue
			}
			if s.resolver == nil {
				return fmt.Errorf("%w: attribute '%s' references key %q but the store has no key resolver",
					ErrInvalidConfiguration, a.Name, a.keyRef)
			}
			key, err := s.resolver.ResolveKey(ctx, a.keyRef)
			if err != nil {
				return fmt.Errorf("%w: attribute '%s': %w", ErrKeyUnavailable, a.Name, err)
			}
			s.hook.OnKeyOperation(ctx, "resolve", a.keyRef, map[string]any{"model": m.name, "attribute": a.Name})
			m.setResolvedKey(a.Name, key)
		}

		if missing := m.MissingColumns(); len(missing) > 0 {
			m.logger.WarnContext(ctx, "shadow columns missing from table",
				"model", m.name, "table", m.table, "columns", missing)
		}

		s.mu.Lock()
		s.models[m.name] = m
		s.mu.Unlock()
		return nil
	})
}

// Model returns a registered model by name.
func (s *Store) Model(name string) (*Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[name]
	return m, ok
}

// New returns an unsaved record of m bound to the store.
func (s *Store) New(m *Model) *Record {
	r := m.NewRecord()
	r.store = s
	return r
}

// Save inserts a new record or updates the changed columns of a persisted one.
// New records without a primary key get a random UUID.
func (s *Store) Save(ctx context.Context, r *Record) error {
	if r.frozen {
		return fmt.Errorf("%w: cannot save %s", ErrFrozenRecord, r.model.name)
	}
	if r.store == nil {
		r.store = s
	}
	m := r.model
	return s.observe(ctx, "save", m, func() error {
		if r.IsNew() {
			if isBlank(r.ID()) {
				r.values[m.primaryKey] = uuid.NewString()
			}
			row := make(map[string]any, len(r.values))
			for col, v := range r.values {
				if !m.virtual[col] {
					row[col] = v
				}
			}
			if err := s.db.WithContext(ctx).Table(m.table).Create(row).Error; err != nil {
				return fmt.Errorf("failed to insert into %s: %w", m.table, err)
			}
			r.markSaved()
			return nil
		}

		cols := r.changedColumns()
		if len(cols) == 0 {
			return nil
		}
		updates := make(map[string]any, len(cols))
		for _, col := range cols {
			updates[col] = r.values[col]
		}
		res := s.db.WithContext(ctx).Table(m.table).
			Where(map[string]any{m.primaryKey: r.original[m.primaryKey]}).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update %s: %w", m.table, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s with %s %v", ErrRecordNotFound, m.name, m.primaryKey, r.original[m.primaryKey])
		}
		r.markSaved()
		return nil
	})
}

// Delete removes the record's row and freezes the record.
func (s *Store) Delete(ctx context.Context, r *Record) error {
	if r.IsNew() {
		return fmt.Errorf("%w: cannot delete %s", ErrNotPersisted, r.model.name)
	}
	m := r.model
	return s.observe(ctx, "delete", m, func() error {
		res := s.db.WithContext(ctx).Exec("DELETE FROM ? WHERE ? = ?",
			clause.Table{Name: m.table}, clause.Column{Name: m.primaryKey}, r.original[m.primaryKey])
		if res.Error != nil {
			return fmt.Errorf("failed to delete from %s: %w", m.table, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s with %s %v", ErrRecordNotFound, m.name, m.primaryKey, r.original[m.primaryKey])
		}
		r.Freeze()
		return nil
	})
}

// Find loads the record of m with primary key id.
func (s *Store) Find(ctx context.Context, m *Model, id any) (*Record, error) {
	r, err := s.Query(m).Where(map[string]any{m.primaryKey: id}).First(ctx)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s with %s %v", ErrRecordNotFound, m.name, m.primaryKey, id)
	}
	return r, err
}

// FindBy returns the first record matching conds, or nil when none does.
func (s *Store) FindBy(ctx context.Context, m *Model, conds map[string]any) (*Record, error) {
	r, err := s.Query(m).Where(conds).First(ctx)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	return r, err
}

// FindAllBy returns every record matching conds.
func (s *Store) FindAllBy(ctx context.Context, m *Model, conds map[string]any) ([]*Record, error) {
	return s.Query(m).Where(conds).All(ctx)
}

func (s *Store) reload(ctx context.Context, r *Record) error {
	if r.frozen {
		return fmt.Errorf("%w: cannot reload %s", ErrFrozenRecord, r.model.name)
	}
	m := r.model
	return s.observe(ctx, "reload", m, func() error {
		rows, err := s.fetch(ctx, m, nil, map[string]any{m.primaryKey: r.original[m.primaryKey]}, 1)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("%w: %s with %s %v", ErrRecordNotFound, m.name, m.primaryKey, r.original[m.primaryKey])
		}
		r.reset(rows[0], nil)
		return nil
	})
}

// fetch reads rows of m as column maps ordered by primary key.
func (s *Store) fetch(ctx context.Context, m *Model, selected []string, conds map[string]any, limit int) ([]map[string]any, error) {
	tx := s.db.WithContext(ctx).Table(m.table)
	if len(selected) > 0 {
		tx = tx.Select(selected)
	}
	if len(conds) > 0 {
		tx = tx.Where(conds)
	}
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: m.primaryKey}})
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var rows []map[string]any
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", m.table, err)
	}
	return rows, nil
}

func (s *Store) count(ctx context.Context, m *Model, conds map[string]any) (int64, error) {
	tx := s.db.WithContext(ctx).Table(m.table)
	if len(conds) > 0 {
		tx = tx.Where(conds)
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", m.table, err)
	}
	return n, nil
}

func (s *Store) observe(ctx context.Context, operation string, m *Model, fn func() error) error {
	metadata := map[string]any{"model": m.name, "table": m.table}
	s.hook.OnProcessStart(ctx, operation, metadata)
	start := time.Now()
	err := fn()
	if err != nil {
		s.hook.OnError(ctx, operation, err, metadata)
	}
	s.hook.OnProcessComplete(ctx, operation, time.Since(start), err, metadata)
	return err
}

// sortedKeys returns the keys of a condition map in a stable order.
func sortedKeys(conds map[string]any) []string {
	return slices.Sorted(maps.Keys(conds))
}
