// Package migrations embeds the PostgreSQL schema. Each NNNN_name.sql file
// may have a matching NNNN_name_rollback.sql.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// TrackingTable records applied versions.
const TrackingTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    VARCHAR(32) PRIMARY KEY,
	name       VARCHAR(255) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migration is one forward schema step.
type Migration struct {
	Version string
	Name    string
}

// List returns forward migrations in version order.
func List() ([]Migration, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, err
	}

	var out []Migration
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") || strings.HasSuffix(name, "_rollback.sql") {
			continue
		}
		version, _, _ := strings.Cut(name, "_")
		out = append(out, Migration{Version: version, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Up returns the forward SQL of m.
func (m Migration) Up() (string, error) {
	b, err := files.ReadFile(m.Name)
	return string(b), err
}

// Down returns the rollback SQL of m.
func (m Migration) Down() (string, error) {
	b, err := files.ReadFile(strings.TrimSuffix(m.Name, ".sql") + "_rollback.sql")
	return string(b), err
}
