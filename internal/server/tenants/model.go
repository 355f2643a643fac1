package tenants

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is one row of the control-plane tenant directory. StoreDSN points at
// the tenant's own database; all entity definitions and data live there.
type Tenant struct {
	ID        uuid.UUID
	Slug      string
	Name      string
	StoreDSN  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
