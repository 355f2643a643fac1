// Package migrations embeds the goose SQL migrations for the control-plane
// database (the tenant directory). Per-tenant entity schemas are managed by
// the registry, not here.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
