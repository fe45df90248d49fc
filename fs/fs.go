package appfs

import "embed"

// FS embeds runtime assets, database migrations included.
//go:embed migrations
var FS embed.FS
