package screen

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File reads screen rows from a YAML document:
//
//	rows:
//	  - symbol: T
//	    rank: 9.1
//	    fields: {yield: 0.071}
//
// The file is re-read on every call so it can be refreshed between days.
type File struct {
	path string
}

type fileDoc struct {
	Rows []Row `yaml:"rows"`
}

// NewFile creates a file screen
func NewFile(path string) *File {
	return &File{path: path}
}

// Rows returns every row in the file
func (f *File) Rows(ctx context.Context, day time.Time) ([]Row, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read screen file: %w", err)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse screen file %s: %w", f.path, err)
	}

	for i, row := range doc.Rows {
		if row.Symbol == "" {
			return nil, fmt.Errorf("screen file %s: row %d has no symbol", f.path, i)
		}
	}

	return doc.Rows, nil
}

// Static is a fixed screen, used for static universes
type Static []Row

// Rows returns the static rows
func (s Static) Rows(ctx context.Context, day time.Time) ([]Row, error) {
	out := make([]Row, len(s))
	copy(out, s)
	return out, nil
}
