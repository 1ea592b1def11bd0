// Package migrations embeds the SQL migrations so binaries can migrate without the
// source tree.
package migrations

import "embed"

// FS holds the *.sql migration files
//
//go:embed *.sql
var FS embed.FS
