// Package migrations embeds the Record Store schema so the binary can
// provision practice schemas without a migrations directory on disk.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
