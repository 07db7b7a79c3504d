// Package migrations embeds SQL migration files into the binary.
//
// Fleetwake runs migrations without needing the SQL files present on
// the filesystem - they're compiled into the executable.
package migrations

import (
	"embed"

	"github.com/fleetwake/fleetwake/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	// Register embedded migrations with the database package.
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
