package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// filenamePattern matches migration files in two formats:
//
//	V{version}_{name}.up.sql   (e.g., V005_add_billing.up.sql)
//	{timestamp}_{name}.up.sql  (e.g., 20240101120000_add_billing.up.sql)
var filenamePattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once, used by LoadDir
	`^(?:V(\d+)|(\d{14}))_(.+)\.(up|down)\.sql$`,
)

// LoadDir scans a directory for migration files and returns them as a
// sorted Catalog. Files that do not match the naming pattern are
// skipped; an orphan .down.sql without its .up.sql is skipped too.
func LoadDir(dir string) (Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Catalog{}, fmt.Errorf("reading migrations directory %s: %w", dir, err)
	}

	type pair struct {
		version, name    string
		upFile, downFile string
	}

	grouped := make(map[string]*pair)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := filenamePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}

		version := matches[1]
		if version == "" {
			version = matches[2]
		}

		key := version + "_" + matches[3]

		p, ok := grouped[key]
		if !ok {
			p = &pair{version: version, name: matches[3]}
			grouped[key] = p
		}

		if matches[4] == "up" {
			p.upFile = entry.Name()
		} else {
			p.downFile = entry.Name()
		}
	}

	var migrations []Migration

	for _, p := range grouped {
		if p.upFile == "" {
			continue
		}

		upPath := filepath.Join(dir, p.upFile)

		upSQL, err := readSQL(upPath)
		if err != nil {
			return Catalog{}, err
		}

		var downSQL string

		if p.downFile != "" {
			downSQL, err = readSQL(filepath.Join(dir, p.downFile))
			if err != nil {
				return Catalog{}, err
			}
		}

		migrations = append(migrations, Migration{
			Version:  p.version,
			Name:     p.name,
			UpSQL:    upSQL,
			DownSQL:  downSQL,
			Checksum: ComputeChecksum(upSQL),
			Source:   upPath,
		})
	}

	return New(migrations...)
}

// Merge combines two catalogs into one ordered set. A version present
// in both is an ordering conflict.
func Merge(a, b Catalog) (Catalog, error) {
	return New(append(a.All(), b.All()...)...)
}

func readSQL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading migration file %s: %w", path, err)
	}

	return strings.TrimSpace(string(data)), nil
}
