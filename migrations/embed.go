// Package migrations embeds the SQL migration files applied by goose.
// Files are ordered by their timestamp prefix and applied strictly in
// order; each migration runs in its own transaction.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
