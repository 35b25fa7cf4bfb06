// Package bootstrap turns CLI --db/--mem-db flags into running
// dbengine.Database instances: it resolves each database's YAML config file,
// validates the resulting set (unique names, no backupDir/data-dir
// collisions) and opens every database, tearing down anything already opened
// if a later one fails (spec §6's "all-or-nothing bootstrap").
package bootstrap

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/proofrock/sqliterg/internal/apperr"
	"github.com/proofrock/sqliterg/internal/dbengine"
	"github.com/proofrock/sqliterg/internal/domain"
)

// DBSpec is one --db/--mem-db flag, parsed.
type DBSpec struct {
	Name       string
	Path       string // empty for an in-memory database
	ConfigPath string // empty means "no config file for this database"
}

// ParseFileFlag parses a --db flag value: "path[::yaml-path]". The database
// name is the file's base name without extension; the config path, unless
// given explicitly after "::", defaults to the sibling "<stem>.yaml".
func ParseFileFlag(raw string) (DBSpec, error) {
	path, explicitYAML, _ := strings.Cut(raw, "::")
	if path == "" {
		return DBSpec{}, apperr.New(apperr.KindFatal, "--db requires a file path")
	}
	name := stemName(path)
	cfgPath := explicitYAML
	if cfgPath == "" {
		cfgPath = defaultSiblingYAML(path)
	}
	return DBSpec{Name: name, Path: path, ConfigPath: cfgPath}, nil
}

// ParseMemFlag parses a --mem-db flag value: "name[::yaml-path]".
func ParseMemFlag(raw string) (DBSpec, error) {
	name, explicitYAML, _ := strings.Cut(raw, "::")
	if name == "" {
		return DBSpec{}, apperr.New(apperr.KindFatal, "--mem-db requires a name")
	}
	return DBSpec{Name: name, Path: "", ConfigPath: explicitYAML}, nil
}

func stemName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func defaultSiblingYAML(path string) string {
	dir := filepath.Dir(path)
	return filepath.Join(dir, stemName(path)+".yaml")
}

// LoadConfig decodes a database's YAML config file. An empty path or a
// missing file both yield the zero-value Database config (no auth, no
// macros, read-write, no backup) — the config file is optional per spec §6.
func LoadConfig(path string) (domain.Database, error) {
	if path == "" {
		return domain.Database{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Database{}, nil
		}
		return domain.Database{}, apperr.Wrap(apperr.KindFatal, "reading config "+path, err)
	}
	var cfg domain.Database
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Database{}, apperr.Wrap(apperr.KindFatal, "parsing config "+path, err)
	}
	return cfg, nil
}

// Open validates and opens the full set of database specs, returning them
// keyed by name. Any failure closes every database already opened in this
// call before returning, so the process exits with nothing left running.
func Open(specs []DBSpec) (map[string]*dbengine.Database, error) {
	if err := validateUniqueNames(specs); err != nil {
		return nil, err
	}

	opened := make(map[string]*dbengine.Database, len(specs))
	for _, spec := range specs {
		cfg, err := LoadConfig(spec.ConfigPath)
		if err != nil {
			closeAll(opened)
			return nil, err
		}

		if cfg.Backup != nil {
			conflict, err := dbengine.BackupDirConflictsWithData(spec.Path, cfg.Backup.BackupDir)
			if err != nil {
				closeAll(opened)
				return nil, apperr.Wrap(apperr.KindFatal, "resolving backupDir for "+spec.Name, err)
			}
			if conflict {
				closeAll(opened)
				return nil, apperr.New(apperr.KindFatal, "database "+spec.Name+": backupDir must not equal the database's own directory")
			}
		}

		db, err := dbengine.Open(spec.Name, spec.Path, cfg)
		if err != nil {
			closeAll(opened)
			return nil, err
		}
		opened[spec.Name] = db
	}

	return opened, nil
}

func validateUniqueNames(specs []DBSpec) error {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if seen[s.Name] {
			return apperr.New(apperr.KindFatal, "duplicate database name "+s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

func closeAll(dbs map[string]*dbengine.Database) {
	for _, db := range dbs {
		db.Close()
	}
}
