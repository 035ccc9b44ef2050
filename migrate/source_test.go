package migrate_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	atlas "ariga.io/atlas/sql/migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverstone-i/pg-schemata-sub000/migrate"
)

// execRecorder captures statements handed to a unit's Apply.
type execRecorder struct {
	stmts []string
}

func (r *execRecorder) Exec(_ context.Context, query string, _, _ any) error {
	r.stmts = append(r.stmts, query)
	return nil
}

func (r *execRecorder) Query(context.Context, string, any, any) error { return nil }

// TestDirSource tests unit extraction from a migration directory:
// versions parsed from the leading numeric segment, labels from file
// names, hashes from file contents.
func TestDirSource(t *testing.T) {
	t.Parallel()

	dir := &atlas.MemDir{}
	first := []byte("CREATE TABLE users (id bigint PRIMARY KEY);\n")
	second := []byte("ALTER TABLE users ADD COLUMN email text;\nCREATE INDEX idx_users_email ON users (email);\n")
	require.NoError(t, dir.WriteFile("0001_create_users.sql", first))
	require.NoError(t, dir.WriteFile("0002_add_email.sql", second))
	require.NoError(t, dir.WriteFile("seed_data.sql", []byte("INSERT INTO users VALUES (1);\n")))

	units, err := migrate.NewDirSource(dir).Units(context.Background())
	require.NoError(t, err)
	require.Len(t, units, 2, "files without a numeric version are skipped")

	assert.Equal(t, int64(1), units[0].Version)
	assert.Equal(t, "0001_create_users.sql", units[0].Label)
	sum := sha256.Sum256(first)
	assert.Equal(t, hex.EncodeToString(sum[:]), units[0].Hash)
	require.NotNil(t, units[0].Apply)

	assert.Equal(t, int64(2), units[1].Version)
	assert.Equal(t, "0002_add_email.sql", units[1].Label)
}

// TestDirSourceApply tests that a file-backed unit executes its
// statements in file order.
func TestDirSourceApply(t *testing.T) {
	t.Parallel()

	dir := &atlas.MemDir{}
	require.NoError(t, dir.WriteFile("0001_init.sql", []byte(
		"CREATE TABLE users (id bigint PRIMARY KEY);\nINSERT INTO users VALUES (1);\n")))

	units, err := migrate.NewDirSource(dir).Units(context.Background())
	require.NoError(t, err)
	require.Len(t, units, 1)

	rec := &execRecorder{}
	require.NoError(t, units[0].Apply(context.Background(), rec, "tenant1"))
	require.Len(t, rec.stmts, 2)
	assert.Contains(t, rec.stmts[0], "CREATE TABLE users")
	assert.Contains(t, rec.stmts[1], "INSERT INTO users")
}

// TestNewLocalSource tests the on-disk directory constructor.
func TestNewLocalSource(t *testing.T) {
	t.Parallel()

	t.Run("ReadsSQLFiles", func(t *testing.T) {
		t.Parallel()

		path := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(path, "0001_init.sql"),
			[]byte("CREATE TABLE users (id bigint PRIMARY KEY);\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(path, "README.md"),
			[]byte("migration notes\n"), 0o644))

		src, err := migrate.NewLocalSource(path)
		require.NoError(t, err)
		units, err := src.Units(context.Background())
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, "0001_init.sql", units[0].Label)
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		t.Parallel()

		_, err := migrate.NewLocalSource(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})
}

// TestUnitsSource tests that the in-memory source hands out copies.
func TestUnitsSource(t *testing.T) {
	t.Parallel()

	src := migrate.UnitsSource{{Version: 1, Label: "0001_a", Apply: noop}}
	units, err := src.Units(context.Background())
	require.NoError(t, err)
	units[0].Version = 99

	again, err := src.Units(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), again[0].Version)
}
