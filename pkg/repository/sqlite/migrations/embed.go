package migrations

import "embed"

// FS contains embedded SQLite migrations for the risk register.
//
//go:embed *.sql
var FS embed.FS
