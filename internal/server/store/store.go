// Package store is the generic CRUD layer over one registered entity
// definition. Entities travel as attribute maps; every operation runs against
// the owning tenant's store handle. Mutations pass through an ordered write
// hook pipeline before they are persisted (hash-on-write plugs in there).
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/tenantvault/internal/common"
	"github.com/dmitrijs2005/tenantvault/internal/logging"
	"github.com/dmitrijs2005/tenantvault/internal/server/registry"
	"github.com/dmitrijs2005/tenantvault/internal/validation"
)

// Entity is one persisted record as an attribute map, keyed by column name.
type Entity map[string]any

// Clone returns a shallow copy of the entity.
func (e Entity) Clone() Entity {
	c := make(Entity, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}

// Filter selects entities by column equality. An empty filter matches all.
type Filter map[string]any

// WriteHook runs before a create or update is persisted. prev is nil on
// create; next is the entity about to be written and may be mutated in place.
type WriteHook func(ctx context.Context, prev, next Entity) error

// FindOption extends Find beyond plain equality filtering.
type FindOption func(*findSettings)

type findSettings struct {
	orderBy string
	desc    bool
}

// WithOrderBy requests ordering by the given column. Without it, ordering is
// store-defined and not guaranteed.
func WithOrderBy(column string, desc bool) FindOption {
	return func(s *findSettings) {
		s.orderBy = column
		s.desc = desc
	}
}

// timeNow is a test seam.
var timeNow = time.Now

// Store exposes find/create/update/delete for one entity type scoped to one
// tenant. It performs no internal retries; store errors propagate unchanged.
type Store struct {
	handle *registry.EntityHandle
	hooks  []WriteHook
	logger logging.Logger
}

func New(handle *registry.EntityHandle, logger logging.Logger, hooks ...WriteHook) *Store {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Store{handle: handle, hooks: hooks, logger: logger}
}

// Handle returns the entity definition this store is bound to.
func (s *Store) Handle() *registry.EntityHandle { return s.handle }

// Find returns all entities matching the filter. An empty projection selects
// every column of the definition.
func (s *Store) Find(ctx context.Context, filter Filter, projection []string, opts ...FindOption) ([]Entity, error) {
	cols, err := s.projectionColumns(projection)
	if err != nil {
		return nil, err
	}

	var settings findSettings
	for _, o := range opts {
		o(&settings)
	}

	query, args, err := s.buildSelect(cols, filter, &settings, 0)
	if err != nil {
		return nil, err
	}

	rows, err := s.handle.Store().DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", s.handle.Name(), err)
	}
	defer rows.Close()

	var result []Entity
	for rows.Next() {
		e, err := scanEntity(rows.Scan, cols)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", s.handle.Name(), err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find %s: %w", s.handle.Name(), err)
	}

	return result, nil
}

// FindOne returns the first entity matching the filter, or nil when nothing
// matches. Zero matches is not an error.
func (s *Store) FindOne(ctx context.Context, filter Filter) (Entity, error) {
	cols := s.handle.Columns()

	query, args, err := s.buildSelect(cols, filter, &findSettings{}, 1)
	if err != nil {
		return nil, err
	}

	rows, err := s.handle.Store().DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find one %s: %w", s.handle.Name(), err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("find one %s: %w", s.handle.Name(), err)
		}
		return nil, nil
	}

	e, err := scanEntity(rows.Scan, cols)
	if err != nil {
		return nil, fmt.Errorf("find one %s: %w", s.handle.Name(), err)
	}
	return e, nil
}

// FindByID looks an entity up by primary key; nil when absent.
func (s *Store) FindByID(ctx context.Context, id string) (Entity, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", common.ErrInvalidInput)
	}
	return s.FindOne(ctx, Filter{"id": id})
}

// Create persists a new entity and returns it as written, id and timestamps
// filled in. Store-level constraint violations surface as *validation.Error.
func (s *Store) Create(ctx context.Context, data Entity) (Entity, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: nil entity", common.ErrInvalidInput)
	}

	next := data.Clone()
	for _, hook := range s.hooks {
		if err := hook(ctx, nil, next); err != nil {
			return nil, err
		}
	}

	if err := s.checkColumns(next); err != nil {
		return nil, err
	}

	if _, ok := next["id"]; !ok {
		next["id"] = uuid.NewString()
	}
	if s.handle.Timestamps() {
		now := timeNow().UTC()
		next["created_at"] = now
		next["updated_at"] = now
	}

	cols := make([]string, 0, len(next))
	for _, c := range s.handle.Columns() {
		if _, ok := next[c]; ok {
			cols = append(cols, c)
		}
	}

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = next[c]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.handle.Table(), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if _, err := s.handle.Store().DB().ExecContext(ctx, query, args...); err != nil {
		if verr := asConstraintViolation(err); verr != nil {
			return nil, verr
		}
		return nil, fmt.Errorf("create %s: %w", s.handle.Name(), err)
	}

	return next, nil
}

// UpdateByID loads the entity, merges updates through the hook pipeline and
// saves the changed columns. Returns nil when no entity has that id. The
// load-then-save sequence is not atomic; callers needing isolation must add
// optimistic concurrency on top.
func (s *Store) UpdateByID(ctx context.Context, id string, updates Entity) (Entity, error) {
	prev, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, nil
	}

	next := prev.Clone()
	for k, v := range updates {
		next[k] = v
	}
	for _, hook := range s.hooks {
		if err := hook(ctx, prev, next); err != nil {
			return nil, err
		}
	}

	if err := s.checkColumns(next); err != nil {
		return nil, err
	}

	changed := make([]string, 0, len(next))
	for _, c := range s.handle.Columns() {
		if c == "id" || c == "created_at" {
			continue
		}
		v, ok := next[c]
		if !ok {
			continue
		}
		if pv, had := prev[c]; had && equalValue(pv, v) {
			continue
		}
		changed = append(changed, c)
	}
	if len(changed) == 0 {
		return prev, nil
	}

	if s.handle.Timestamps() {
		next["updated_at"] = timeNow().UTC()
		if !contains(changed, "updated_at") {
			changed = append(changed, "updated_at")
		}
	}

	sets := make([]string, len(changed))
	args := make([]any, 0, len(changed)+1)
	for i, c := range changed {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
		args = append(args, next[c])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		s.handle.Table(), strings.Join(sets, ", "), len(changed)+1)

	if _, err := s.handle.Store().DB().ExecContext(ctx, query, args...); err != nil {
		if verr := asConstraintViolation(err); verr != nil {
			return nil, verr
		}
		return nil, fmt.Errorf("update %s: %w", s.handle.Name(), err)
	}

	return next, nil
}

// DeleteByID removes the entity and returns it, or nil when absent.
func (s *Store) DeleteByID(ctx context.Context, id string) (Entity, error) {
	prev, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, nil
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.handle.Table())
	if _, err := s.handle.Store().DB().ExecContext(ctx, query, id); err != nil {
		return nil, fmt.Errorf("delete %s: %w", s.handle.Name(), err)
	}

	return prev, nil
}

func (s *Store) projectionColumns(projection []string) ([]string, error) {
	if len(projection) == 0 {
		return s.handle.Columns(), nil
	}
	for _, c := range projection {
		if !s.handle.HasColumn(c) {
			return nil, fmt.Errorf("%w: unknown column %q", common.ErrInvalidInput, c)
		}
	}
	return projection, nil
}

func (s *Store) buildSelect(cols []string, filter Filter, settings *findSettings, limit int) (string, []any, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), s.handle.Table())

	args := make([]any, 0, len(filter))
	if len(filter) > 0 {
		conds := make([]string, 0, len(filter))
		for _, c := range s.handle.Columns() {
			v, ok := filter[c]
			if !ok {
				continue
			}
			args = append(args, v)
			conds = append(conds, fmt.Sprintf("%s = $%d", c, len(args)))
		}
		if len(conds) != len(filter) {
			return "", nil, fmt.Errorf("%w: filter references unknown column", common.ErrInvalidInput)
		}
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if settings.orderBy != "" {
		if !s.handle.HasColumn(settings.orderBy) {
			return "", nil, fmt.Errorf("%w: unknown column %q", common.ErrInvalidInput, settings.orderBy)
		}
		b.WriteString(" ORDER BY " + settings.orderBy)
		if settings.desc {
			b.WriteString(" DESC")
		}
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}

	return b.String(), args, nil
}

func (s *Store) checkColumns(e Entity) error {
	for k := range e {
		if !s.handle.HasColumn(k) {
			return fmt.Errorf("%w: unknown column %q", common.ErrInvalidInput, k)
		}
	}
	return nil
}

func scanEntity(scan func(...any) error, cols []string) (Entity, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := scan(ptrs...); err != nil {
		return nil, err
	}

	e := make(Entity, len(cols))
	for i, c := range cols {
		switch v := vals[i].(type) {
		case []byte:
			e[c] = string(v)
		default:
			e[c] = v
		}
	}
	return e, nil
}

// asConstraintViolation maps a postgres constraint violation onto the
// validation error type so callers see one taxonomy for rejected input.
func asConstraintViolation(err error) *validation.Error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	// 23xxx: integrity constraint violations
	if !strings.HasPrefix(pgErr.Code, "23") {
		return nil
	}
	field := pgErr.ColumnName
	if field == "" {
		field = pgErr.ConstraintName
	}
	return &validation.Error{Fields: []validation.FieldError{{
		Field:   field,
		Message: pgErr.Message,
	}}}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func equalValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
		return false
	}
	// integer kinds compare numerically: a scan yields int64 where domain
	// code writes int
	if ia, ok := asInt64(a); ok {
		ib, ok := asInt64(b)
		return ok && ia == ib
	}
	return a == b
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
