// Package registry implements per-tenant entity definition. A definition is
// registered on a tenant's store handle at most once: the first GetOrDefine
// for a (tenant, entity) pair executes the schema DDL and caches the handle,
// every later call returns the cached handle unchanged.
package registry

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/tenantvault/internal/common"
	"github.com/dmitrijs2005/tenantvault/internal/dbx"
	"github.com/dmitrijs2005/tenantvault/internal/logging"
	"github.com/dmitrijs2005/tenantvault/internal/server/tenants"
)

// ColumnType names the storage type of one attribute.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeBoolean   ColumnType = "boolean"
	TypeInteger   ColumnType = "integer"
	TypeTimestamp ColumnType = "timestamp"
	TypeUUID      ColumnType = "uuid"
)

var sqlTypes = map[ColumnType]string{
	TypeText:      "text",
	TypeBoolean:   "boolean",
	TypeInteger:   "bigint",
	TypeTimestamp: "timestamptz",
	TypeUUID:      "uuid",
}

// Column describes one attribute of an entity definition.
type Column struct {
	Type    ColumnType
	NotNull bool
	Unique  bool
	Default string // raw SQL default expression, optional
}

// Attributes is the schema/attribute map of an entity definition,
// keyed by column name.
type Attributes map[string]Column

// Index declares a secondary index on the entity's table.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Options carries the non-attribute parts of a definition.
type Options struct {
	// Table overrides the table name; defaults to the entity name.
	Table string
	// Timestamps adds created_at/updated_at columns maintained on write.
	Timestamps bool
	Indexes    []Index
}

// identRe matches the identifiers we are willing to interpolate into DDL.
var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// EntityHandle is a registered definition bound to one tenant's store.
// Fields are module-private; the store layer reads them through accessors.
type EntityHandle struct {
	name       string
	table      string
	columns    []string
	attrs      Attributes
	timestamps bool
	db         *tenants.Handle
}

func (h *EntityHandle) Name() string  { return h.name }
func (h *EntityHandle) Table() string { return h.table }

// Columns returns all column names in definition order (id first, declared
// attributes sorted, timestamp columns last).
func (h *EntityHandle) Columns() []string { return append([]string(nil), h.columns...) }

// HasColumn reports whether the definition declares the given column.
func (h *EntityHandle) HasColumn(name string) bool {
	for _, c := range h.columns {
		if c == name {
			return true
		}
	}
	return false
}

// Timestamps reports whether the definition maintains created_at/updated_at.
func (h *EntityHandle) Timestamps() bool { return h.timestamps }

// Store returns the owning tenant's store handle.
func (h *EntityHandle) Store() *tenants.Handle { return h.db }

type defKey struct {
	tenant uuid.UUID
	entity string
}

// Registry caches entity definitions per (tenant, entity) pair.
type Registry struct {
	mu     sync.Mutex
	defs   map[defKey]*EntityHandle
	logger logging.Logger
}

func New(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Registry{
		defs:   make(map[defKey]*EntityHandle),
		logger: logger,
	}
}

// GetOrDefine returns the entity handle for (tenant, name), registering the
// definition on first use. The attributes and options of later calls are not
// re-validated against the cached definition. The lock is held across the
// first registration, so concurrent callers never observe two distinct
// definitions for the same logical entity.
func (r *Registry) GetOrDefine(ctx context.Context, store *tenants.Handle, name string, attrs Attributes, opts Options) (*EntityHandle, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store handle", common.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := defKey{tenant: store.Tenant().ID, entity: name}
	if h, ok := r.defs[key]; ok {
		return h, nil
	}

	h, ddl, err := buildDefinition(store, name, attrs, opts)
	if err != nil {
		return nil, err
	}

	// All DDL in one transaction, so a failure mid-definition leaves
	// neither a table without its indexes nor a cached handle.
	err = dbx.WithTx(ctx, store.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, stmt := range ddl {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("define %q: %w", name, err)
	}

	r.defs[key] = h
	r.logger.Info(ctx, "entity defined", "tenant", store.Tenant().Slug, "entity", name)
	return h, nil
}

func buildDefinition(store *tenants.Handle, name string, attrs Attributes, opts Options) (*EntityHandle, []string, error) {
	if !identRe.MatchString(name) {
		return nil, nil, fmt.Errorf("%w: entity name %q", common.ErrSchema, name)
	}
	if len(attrs) == 0 {
		return nil, nil, fmt.Errorf("%w: entity %q has no attributes", common.ErrSchema, name)
	}

	table := opts.Table
	if table == "" {
		table = name
	}
	if !identRe.MatchString(table) {
		return nil, nil, fmt.Errorf("%w: table name %q", common.ErrSchema, table)
	}

	names := make([]string, 0, len(attrs))
	for col, def := range attrs {
		if !identRe.MatchString(col) {
			return nil, nil, fmt.Errorf("%w: column name %q", common.ErrSchema, col)
		}
		if col == "id" || col == "created_at" || col == "updated_at" {
			return nil, nil, fmt.Errorf("%w: column %q is reserved", common.ErrSchema, col)
		}
		if _, ok := sqlTypes[def.Type]; !ok {
			return nil, nil, fmt.Errorf("%w: column %q has unknown type %q", common.ErrSchema, col, def.Type)
		}
		names = append(names, col)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	b.WriteString("\tid uuid PRIMARY KEY")
	for _, col := range names {
		def := attrs[col]
		fmt.Fprintf(&b, ",\n\t%s %s", col, sqlTypes[def.Type])
		if def.NotNull {
			b.WriteString(" NOT NULL")
		}
		if def.Unique {
			b.WriteString(" UNIQUE")
		}
		if def.Default != "" {
			fmt.Fprintf(&b, " DEFAULT %s", def.Default)
		}
	}
	if opts.Timestamps {
		b.WriteString(",\n\tcreated_at timestamptz NOT NULL DEFAULT now()")
		b.WriteString(",\n\tupdated_at timestamptz NOT NULL DEFAULT now()")
	}
	b.WriteString("\n)")

	ddl := []string{b.String()}

	columns := append([]string{"id"}, names...)
	if opts.Timestamps {
		columns = append(columns, "created_at", "updated_at")
	}
	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c] = struct{}{}
	}

	for _, idx := range opts.Indexes {
		if !identRe.MatchString(idx.Name) {
			return nil, nil, fmt.Errorf("%w: index name %q", common.ErrSchema, idx.Name)
		}
		if len(idx.Columns) == 0 {
			return nil, nil, fmt.Errorf("%w: index %q has no columns", common.ErrSchema, idx.Name)
		}
		for _, c := range idx.Columns {
			if _, ok := known[c]; !ok {
				return nil, nil, fmt.Errorf("%w: index %q references unknown column %q", common.ErrSchema, idx.Name, c)
			}
		}
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		ddl = append(ddl, fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
			unique, idx.Name, table, strings.Join(idx.Columns, ", ")))
	}

	h := &EntityHandle{
		name:       name,
		table:      table,
		columns:    columns,
		attrs:      attrs,
		timestamps: opts.Timestamps,
		db:         store,
	}
	return h, ddl, nil
}
