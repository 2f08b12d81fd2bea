package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	sderr "github.com/kartikbazzad/sharddb/internal/errors"
	"github.com/kartikbazzad/sharddb/internal/logger"
)

// Procedure is one compiled catalog entry: the procedure name, its partition
// spec (nil for multi-partition procedures), and the roles allowed to invoke
// it.
type Procedure struct {
	Name  string
	Spec  *PartitionSpec
	Roles []string
}

// Spec shapes as persisted in the artifact.
const (
	kindMulti    = 0
	kindDirected = 1
	kindSingle   = 2
	kindTwoKey   = 3
)

// Artifact is the compiled catalog file consumed at node startup. Procedures
// and their partition specs are written wholesale on every recompile; there
// is no incremental update path.
type Artifact struct {
	path   string
	logger *logger.Logger
}

// NewArtifact points at a catalog artifact file. The file is created on the
// first Save.
func NewArtifact(path string, log *logger.Logger) *Artifact {
	return &Artifact{path: path, logger: log}
}

func (a *Artifact) open() (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", sderr.ErrCatalogLoad, err)
	}

	db, err := sql.Open("sqlite", a.path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sderr.ErrCatalogLoad, err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS procedures (
			name TEXT PRIMARY KEY,
			kind INTEGER NOT NULL,
			tbl TEXT,
			col TEXT,
			param_index INTEGER,
			tbl2 TEXT,
			col2 TEXT,
			param_index2 INTEGER
		);
		CREATE TABLE IF NOT EXISTS roles (
			procedure TEXT NOT NULL,
			role TEXT NOT NULL,
			PRIMARY KEY (procedure, role)
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", sderr.ErrCatalogLoad, err)
	}

	return db, nil
}

// Save replaces the artifact contents with the given procedures.
func (a *Artifact) Save(procs []Procedure) error {
	db, err := a.open()
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", sderr.ErrCatalogWrite, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM procedures`); err != nil {
		return fmt.Errorf("%w: %v", sderr.ErrCatalogWrite, err)
	}
	if _, err := tx.Exec(`DELETE FROM roles`); err != nil {
		return fmt.Errorf("%w: %v", sderr.ErrCatalogWrite, err)
	}

	for _, p := range procs {
		kind, spec := kindMulti, p.Spec
		switch {
		case spec == nil:
		case spec.Directed:
			kind = kindDirected
		case spec.TwoKey():
			kind = kindTwoKey
		default:
			kind = kindSingle
		}

		if spec == nil {
			spec = &PartitionSpec{}
		}
		if _, err := tx.Exec(
			`INSERT INTO procedures (name, kind, tbl, col, param_index, tbl2, col2, param_index2)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Name, kind, spec.Table, spec.Column, spec.ParamIndex,
			spec.Table2, spec.Column2, spec.ParamIndex2,
		); err != nil {
			return fmt.Errorf("%w: %v", sderr.ErrCatalogWrite, err)
		}

		for _, role := range p.Roles {
			if _, err := tx.Exec(
				`INSERT INTO roles (procedure, role) VALUES (?, ?)`, p.Name, role,
			); err != nil {
				return fmt.Errorf("%w: %v", sderr.ErrCatalogWrite, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", sderr.ErrCatalogWrite, err)
	}

	a.logger.Info("Catalog artifact written: %d procedures -> %s", len(procs), a.path)
	return nil
}

// Load reads the artifact back into memory. Procedure rows and role rows are
// read concurrently and joined by name.
func (a *Artifact) Load() ([]Procedure, error) {
	db, err := a.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var (
		procs []Procedure
		roles map[string][]string
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		procs, err = loadProcedures(db)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = loadRoles(db)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range procs {
		procs[i].Roles = roles[procs[i].Name]
	}

	a.logger.Info("Catalog artifact loaded: %d procedures from %s", len(procs), a.path)
	return procs, nil
}

func loadProcedures(db *sql.DB) ([]Procedure, error) {
	rows, err := db.Query(
		`SELECT name, kind, tbl, col, param_index, tbl2, col2, param_index2
		 FROM procedures ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sderr.ErrCatalogLoad, err)
	}
	defer rows.Close()

	var procs []Procedure
	for rows.Next() {
		var (
			p          Procedure
			kind       int
			tbl, col   sql.NullString
			tbl2, col2 sql.NullString
			idx, idx2  sql.NullInt64
		)
		if err := rows.Scan(&p.Name, &kind, &tbl, &col, &idx, &tbl2, &col2, &idx2); err != nil {
			return nil, fmt.Errorf("%w: %v", sderr.ErrCatalogLoad, err)
		}

		switch kind {
		case kindDirected:
			p.Spec = NewDirectedSpec()
		case kindSingle:
			p.Spec = NewSingleKeySpec(tbl.String, col.String, int(idx.Int64))
		case kindTwoKey:
			p.Spec = NewTwoKeySpec(tbl.String, col.String, int(idx.Int64),
				tbl2.String, col2.String, int(idx2.Int64))
		}
		procs = append(procs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", sderr.ErrCatalogLoad, err)
	}
	return procs, nil
}

func loadRoles(db *sql.DB) (map[string][]string, error) {
	rows, err := db.Query(`SELECT procedure, role FROM roles ORDER BY procedure, role`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sderr.ErrCatalogLoad, err)
	}
	defer rows.Close()

	roles := make(map[string][]string)
	for rows.Next() {
		var proc, role string
		if err := rows.Scan(&proc, &role); err != nil {
			return nil, fmt.Errorf("%w: %v", sderr.ErrCatalogLoad, err)
		}
		roles[proc] = append(roles[proc], role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", sderr.ErrCatalogLoad, err)
	}
	return roles, nil
}

// BuildDirectory projects the single-partition entries of a procedure list
// into a fresh directory, ready to be swapped in.
func BuildDirectory(procs []Procedure) *Directory {
	dir := NewDirectory()
	sorted := make([]Procedure, len(procs))
	copy(sorted, procs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, p := range sorted {
		if p.Spec != nil {
			dir.Put(p.Name, p.Spec)
		}
	}
	return dir
}
