// Package appfs embeds the SQL migrations and static assets shipped with the binaries.
package appfs

import "embed"

//go:embed migrations all:assets
var FS embed.FS
