// Package migrations embeds the engine's SQL schema files so the migrate
// binary carries its schema instead of depending on a checkout layout.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
