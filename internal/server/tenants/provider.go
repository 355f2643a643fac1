package tenants

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/tenantvault/internal/logging"
)

// Handle is an opaque, connected store handle for one tenant. It is owned by
// the Provider and shared between concurrent operations; the fields are
// module-private with read-only accessors.
type Handle struct {
	tenant Tenant
	db     *sql.DB
}

func (h *Handle) Tenant() Tenant { return h.tenant }
func (h *Handle) DB() *sql.DB    { return h.db }

// NewHandle wraps an already-open connection in a Handle. Used by tools and
// tests that manage the connection themselves; the Provider is the normal
// way to obtain handles.
func NewHandle(t Tenant, db *sql.DB) *Handle {
	return &Handle{tenant: t, db: db}
}

// openDB is a test seam for sql.Open.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// Provider opens and caches one database handle per tenant. A tenant's
// handle is opened on first use and reused for the lifetime of the provider.
type Provider struct {
	mu     sync.Mutex
	open   map[uuid.UUID]*Handle
	logger logging.Logger
}

func NewProvider(logger logging.Logger) *Provider {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Provider{
		open:   make(map[uuid.UUID]*Handle),
		logger: logger,
	}
}

// Open returns the connected handle for the given tenant, opening it on first
// call. Concurrent calls for the same tenant observe the same handle.
func (p *Provider) Open(ctx context.Context, t Tenant) (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.open[t.ID]; ok {
		return h, nil
	}

	db, err := openDB(t.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open tenant store %q: %w", t.Slug, err)
	}

	h := &Handle{tenant: t, db: db}
	p.open[t.ID] = h
	p.logger.Info(ctx, "tenant store opened", "tenant", t.Slug)
	return h, nil
}

// Close closes all cached handles. Failures are logged and do not stop the
// teardown of the remaining handles.
func (p *Provider) Close(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, h := range p.open {
		if err := h.db.Close(); err != nil {
			p.logger.Warn(ctx, "closing tenant store failed", "tenant", h.tenant.Slug, "error", err)
		}
		delete(p.open, id)
	}
}
