package canon

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// sourceDocument is a canon source file. A file holds either a single
// objective or a list of them.
type sourceDocument struct {
	Objective  RawObjective   `yaml:"objective"`
	Objectives []RawObjective `yaml:"objectives"`
}

// LoadFile reads raw objectives from a YAML canon source.
func LoadFile(path string) ([]RawObjective, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read canon source %s: %w", path, err)
	}

	var doc sourceDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse canon source %s: %w", path, err)
	}

	out := append([]RawObjective(nil), doc.Objectives...)
	if doc.Objective != nil {
		out = append(out, doc.Objective)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("canon source %s: no objectives", path)
	}
	return out, nil
}

// LoadDir reads every .yaml/.yml file in dir, in name order, skipping files
// whose name starts with an underscore. The result is the complete batch
// for a single Loader.Load call.
func LoadDir(dir string) ([]RawObjective, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read canon dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []RawObjective
	for _, name := range names {
		objs, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, objs...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("canon dir %s: %w", dir, ErrEmpty)
	}
	return out, nil
}
