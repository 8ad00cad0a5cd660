// Package migrations embeds the ordered SQL schema files.
package migrations

import "embed"

// Files holds every NNNN_*.sql migration; apply them in lexical order.
//
//go:embed *.sql
var Files embed.FS
