// Package migrations holds the SQL schema migrations compiled into the
// binary and applied on startup.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
