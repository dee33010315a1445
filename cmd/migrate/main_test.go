package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, "0001", "init_schema_migrations"},
		{"001_invalid.sql", false, "", ""},
		{"0001_test", false, "", ""},
		{"0001.sql", false, "", ""},
		{"invalid_0001_test.sql", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m := migrationPattern.FindStringSubmatch(tt.filename)
			if !tt.valid {
				assert.Nil(t, m)
				return
			}
			require.Len(t, m, 3)
			assert.Equal(t, tt.version, m[1])
			assert.Equal(t, tt.name, m[2])
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0002_b.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (id INT64);")
	writeFile(t, dir, "0001_a.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);")
	writeFile(t, dir, "README.md", "notes")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0003_dir.sql"), 0o755))

	tgt := target{project: "p1", dataset: "fop_tax"}
	migrations, err := readMigrations(dir, tgt, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "a", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE `p1.fop_tax.a` (id INT64);", migrations[0].SQL)
	assert.Equal(t, 2, migrations[1].Version)

	other, err := readMigrations(dir, target{project: "p2", dataset: "other"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, migrations[0].Checksum, other[0].Checksum, "checksum ignores placeholders")
	assert.NotEqual(t, migrations[0].Checksum, migrations[1].Checksum)
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0001_a.sql", "SELECT 1;")
	writeFile(t, dir, "0001_b.sql", "SELECT 2;")

	_, err := readMigrations(dir, target{}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration version 0001")
}

func TestPendingAndDrift(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Filename: "0001_a.sql", Checksum: "aaa"},
		{Version: 2, Filename: "0002_b.sql", Checksum: "bbb"},
		{Version: 3, Filename: "0003_c.sql", Checksum: "ccc"},
	}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "aaa"},
		{Version: 2, Checksum: "changed"},
	}

	pending := pendingMigrations(migrations, applied)
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].Version)

	assert.Equal(t, []string{"0002_b.sql"}, checksumDrift(migrations, applied))
}

func TestRepositoryMigrationsAreReadable(t *testing.T) {
	dir, err := resolveDir("migrations/bigquery")
	require.NoError(t, err)

	migrations, err := readMigrations(dir, target{project: "p", dataset: "d"}, zerolog.Nop())
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions are contiguous")
		assert.NotContains(t, m.SQL, "{{")
	}
}
