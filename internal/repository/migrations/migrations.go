// Package migrations embeds the goose SQL migrations for the reference data
// and assessment archive tables.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
