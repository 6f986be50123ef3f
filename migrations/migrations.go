package migrations

import (
	"embed"
	"io/fs"
)

//go:embed central/*.sql
var centralFS embed.FS

//go:embed tenant/*.sql
var tenantFS embed.FS

// Central returns the golang-migrate source files for the central schema.
func Central() fs.FS {
	return mustSub(centralFS, "central")
}

// Tenant returns the goose migrations applied to every tenant database.
func Tenant() fs.FS {
	return mustSub(tenantFS, "tenant")
}

func mustSub(fsys embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
