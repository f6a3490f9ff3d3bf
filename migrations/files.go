package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sql
var migrationsFS embed.FS

// GetMigrationsFS returns the SQL migration files rooted at the
// directory that holds them.
func GetMigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}
