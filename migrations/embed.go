package migrations

import "embed"

// MigrationsFS holds the SQL migrations applied at startup.
//
//go:embed *.sql
var MigrationsFS embed.FS
