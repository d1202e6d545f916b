// Package migrations embeds the SQL schema. Each driver has its own directory.
package migrations

import "embed"

// FS holds postgres/ and sqlite3/ migration sets.
//
//go:embed postgres/*.sql sqlite3/*.sql
var FS embed.FS
