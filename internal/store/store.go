// Package store persists annotation paths and user preferences under the
// save directory. Each annotation is a two-column tab-separated file of x y
// coordinates with no header; an empty annotation and a missing file mean
// the same thing.
package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cortex-annotate/pkg/geometry"
)

type Store struct {
	Root string
}

func New(root string) *Store {
	return &Store{Root: root}
}

// Path returns the annotation file location for a target and annotation.
func (s *Store) Path(targetPath, annotation string) string {
	return filepath.Join(s.Root, targetPath, annotation+".tsv")
}

// Load reads an annotation's points. A missing file yields an empty path and
// no error; a malformed file is an error.
func (s *Store) Load(targetPath, annotation string) ([]geometry.Point2D, error) {
	path := s.Path(targetPath, annotation)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	defer f.Close()

	var points []geometry.Point2D
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != 2 {
			return nil, fmt.Errorf("store: %s:%d: expected 2 columns, got %d",
				path, line, len(fields))
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("store: %s:%d: %w", path, line, err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("store: %s:%d: %w", path, line, err)
		}
		points = append(points, geometry.Point2D{X: x, Y: y})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("store: %s: %w", path, err)
	}
	return points, nil
}

// Save writes an annotation's points, or deletes the file when the path is
// empty so that saving and loading round-trip the absent state.
func (s *Store) Save(targetPath, annotation string, points []geometry.Point2D) error {
	path := s.Path(targetPath, annotation)
	if len(points) == 0 {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	var b strings.Builder
	for _, p := range points {
		fmt.Fprintf(&b, "%s\t%s\n",
			strconv.FormatFloat(p.X, 'g', -1, 64),
			strconv.FormatFloat(p.Y, 'g', -1, 64))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// Exists reports whether an annotation file is present on disk.
func (s *Store) Exists(targetPath, annotation string) bool {
	_, err := os.Stat(s.Path(targetPath, annotation))
	return err == nil
}
