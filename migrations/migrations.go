// Package migrations holds the embedded SQL schema migrations, applied at
// startup and by the migrate CLI.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
