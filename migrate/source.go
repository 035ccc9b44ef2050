package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	atlas "ariga.io/atlas/sql/migrate"

	"github.com/silverstone-i/pg-schemata-sub000/dialect"
)

// Unit is one versioned migration step.
type Unit struct {
	// Version orders units; only versions above the ledger's current
	// version run.
	Version int64
	// Label identifies the unit in logs, results, and the ledger.
	Label string
	// Hash fingerprints the unit's source bytes for the ledger row.
	Hash string
	// Apply executes the unit inside the run's transaction.
	Apply func(ctx context.Context, conn dialect.ExecQuerier, schemaName string) error
}

// Source enumerates migration units. Units may come back in any order;
// the migrator sorts by version before applying.
type Source interface {
	Units(ctx context.Context) ([]Unit, error)
}

// UnitsSource is a Source over hand-built Go units.
type UnitsSource []Unit

// Units implements Source.
func (s UnitsSource) Units(context.Context) ([]Unit, error) {
	return append([]Unit(nil), s...), nil
}

// DirSource adapts an atlas migration directory (a LocalDir on disk, a
// MemDir in tests) into a Source. Files without a leading numeric
// version prefix are skipped.
type DirSource struct {
	dir atlas.Dir
}

// NewDirSource returns a Source over dir.
func NewDirSource(dir atlas.Dir) *DirSource {
	return &DirSource{dir: dir}
}

// NewLocalSource returns a Source over the migration files in path.
func NewLocalSource(path string) (*DirSource, error) {
	d, err := atlas.NewLocalDir(path)
	if err != nil {
		return nil, err
	}
	return &DirSource{dir: d}, nil
}

// Units implements Source. Each matching file becomes one unit that
// executes the file's statements in order. The unit hash is the sha256
// of the file bytes, the label its file name.
func (s *DirSource) Units(context.Context) ([]Unit, error) {
	files, err := s.dir.Files()
	if err != nil {
		return nil, err
	}
	units := make([]Unit, 0, len(files))
	for _, f := range files {
		version, err := strconv.ParseInt(f.Version(), 10, 64)
		if err != nil {
			continue
		}
		sum := sha256.Sum256(f.Bytes())
		units = append(units, Unit{
			Version: version,
			Label:   f.Name(),
			Hash:    hex.EncodeToString(sum[:]),
			Apply:   applyFile(f),
		})
	}
	return units, nil
}

func applyFile(f atlas.File) func(context.Context, dialect.ExecQuerier, string) error {
	return func(ctx context.Context, conn dialect.ExecQuerier, _ string) error {
		stmts, err := f.Stmts()
		if err != nil {
			return fmt.Errorf("migrate: parse %s: %w", f.Name(), err)
		}
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt, []any{}, nil); err != nil {
				return err
			}
		}
		return nil
	}
}
