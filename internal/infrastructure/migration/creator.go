package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"
	"time"
	"unicode"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

var fileTemplate = template.Must(template.New("migration").Parse(`-- Migration: {{.Name}}{{if .Down}} (Rollback){{end}}
-- Created: {{.Created}}
-- Description: {{if .Down}}Rollback for {{end}}{{.Description}}
{{if .Down}}
-- Drop in reverse creation order.
{{else}}
-- Cash desk tables are tenant scoped: lead composite indexes with tenant_id.
-- Amounts are NUMERIC(15,2); never store money as float.
{{end}}
`))

// MigrationFile describes a freshly scaffolded up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Created     string
	UpPath      string
	DownPath    string
}

// CreateMigration writes an empty up/down pair named <timestamp>_<name> into dir
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create migrations directory: %w", err)
	}

	now := time.Now().UTC()
	mf := &MigrationFile{
		Version:     now.Format("20060102150405"),
		Name:        name,
		Description: description,
		Created:     now.Format(time.RFC3339),
	}
	base := filepath.Join(dir, mf.Version+"_"+sanitizeName(name))
	mf.UpPath = base + upSuffix
	mf.DownPath = base + downSuffix

	if err := writeFile(mf.UpPath, mf, false); err != nil {
		return nil, err
	}
	if err := writeFile(mf.DownPath, mf, true); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

func writeFile(path string, mf *MigrationFile, down bool) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { err = errors.Join(err, f.Close()) }()

	data := struct {
		*MigrationFile
		Down bool
	}{mf, down}
	if err := fileTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return nil
}

// sanitizeName lowercases name and joins its words with underscores.
// Characters other than letters, digits and separators are dropped.
func sanitizeName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return unicode.ToLower(r)
		case r == ' ' || r == '-' || r == '_':
			return ' '
		default:
			return -1
		}
	}, name)
	return strings.Join(strings.Fields(cleaned), "_")
}

// ListMigrations lists the migrations in dir. A missing directory has none.
func ListMigrations(dir string) ([]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	return ListMigrationsFS(os.DirFS(dir))
}

// ListMigrationsFS returns migration base names in version order.
// Every up file needs its down file and the other way round.
func ListMigrationsFS(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	pairs := map[string][2]bool{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(e.Name(), upSuffix); ok {
			p := pairs[base]
			p[0] = true
			pairs[base] = p
		} else if base, ok := strings.CutSuffix(e.Name(), downSuffix); ok {
			p := pairs[base]
			p[1] = true
			pairs[base] = p
		}
	}

	names := make([]string, 0, len(pairs))
	for base, p := range pairs {
		switch {
		case !p[1]:
			return nil, fmt.Errorf("migration %s has no down file", base)
		case !p[0]:
			return nil, fmt.Errorf("migration %s has no up file", base)
		}
		names = append(names, base)
	}
	slices.Sort(names)
	return names, nil
}
