// Package migrations holds the numbered SQL schema applied at startup
package migrations

import "embed"

// FS contains every NNN_name.sql file in this directory
//
//go:embed *.sql
var FS embed.FS
