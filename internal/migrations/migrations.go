// Package migrations embeds the SQL migrations for the fenceorders schema.
package migrations

import (
	"embed"

	"github.com/marshallshelly/fenceorders/pkg/migration"
)

//go:embed *.sql
var files embed.FS

// All returns the embedded migrations sorted by version.
func All() ([]migration.Migration, error) {
	return migration.Load(files)
}
