// Package migrations embeds the SQL migration files into the binary.
package migrations

import "embed"

// FS holds every *.sql migration at its root, for database.Migrate.
//
//go:embed *.sql
var FS embed.FS
