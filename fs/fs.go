package appfs

import "embed"

// FS holds the SQL migrations shipped inside the binaries.
//
//go:embed migrations/*.sql
var FS embed.FS
