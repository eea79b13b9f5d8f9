// Package migrations embeds the goose migration scripts for the two local
// databases: the per-account entity cache and the shared account registry.
package migrations

import "embed"

//go:embed cache/*.sql registry/*.sql
var Migrations embed.FS
