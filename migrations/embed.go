// Package migrations embeds the SQL schema applied by `vidtube migrate`.
package migrations

import "embed"

// FS holds every *.up.sql file in this directory.
//
//go:embed *.up.sql
var FS embed.FS
