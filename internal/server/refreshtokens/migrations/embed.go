// Package migrations embeds the PostgreSQL schema for refresh tokens.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
