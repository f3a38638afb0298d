// Package cache persists rendered figure and grid images on disk. Entries
// are keyed by file existence alone and are never invalidated; deleting the
// cache directory is the only way to force a re-render.
package cache

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/tiff"

	"cortex-annotate/pkg/geometry"
)

// Metadata is the sidecar stored next to every cached image. It always
// carries the figure's coordinate limits; renderers may attach extra keys
// which round-trip through the JSON file untouched.
type Metadata struct {
	XLim  geometry.Limits
	YLim  geometry.Limits
	Extra map[string]any
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["xlim"] = [2]float64{m.XLim.Min, m.XLim.Max}
	out["ylim"] = [2]float64{m.YLim.Min, m.YLim.Max}
	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	lim := func(key string) (geometry.Limits, error) {
		var pair [2]float64
		msg, ok := raw[key]
		if !ok {
			return geometry.Limits{}, fmt.Errorf("cache: metadata missing %s", key)
		}
		if err := json.Unmarshal(msg, &pair); err != nil {
			return geometry.Limits{}, fmt.Errorf("cache: metadata %s: %w", key, err)
		}
		return geometry.Limits{Min: pair[0], Max: pair[1]}, nil
	}
	var err error
	if m.XLim, err = lim("xlim"); err != nil {
		return err
	}
	if m.YLim, err = lim("ylim"); err != nil {
		return err
	}
	delete(raw, "xlim")
	delete(raw, "ylim")
	m.Extra = nil
	if len(raw) > 0 {
		m.Extra = make(map[string]any, len(raw))
		for k, msg := range raw {
			var v any
			if err := json.Unmarshal(msg, &v); err != nil {
				return err
			}
			m.Extra[k] = v
		}
	}
	return nil
}

// Indicator is notified while slow cache fills are in progress. Enter and
// Exit calls nest; implementations show progress from the first Enter to the
// matching Exit.
type Indicator interface {
	Enter()
	Exit()
}

// NoopIndicator ignores all progress notifications.
type NoopIndicator struct{}

func (NoopIndicator) Enter() {}
func (NoopIndicator) Exit()  {}

// cached reports whether both the image and its metadata sidecar exist.
func cached(imgPath, metaPath string) bool {
	if _, err := os.Stat(imgPath); err != nil {
		return false
	}
	_, err := os.Stat(metaPath)
	return err == nil
}

func loadEntry(imgPath, metaPath string) (image.Image, Metadata, error) {
	var meta Metadata
	f, err := os.Open(imgPath)
	if err != nil {
		return nil, meta, fmt.Errorf("cache: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, meta, fmt.Errorf("cache: decoding %s: %w", imgPath, err)
	}
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, meta, fmt.Errorf("cache: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, meta, fmt.Errorf("cache: parsing %s: %w", metaPath, err)
	}
	return img, meta, nil
}

func saveEntry(imgPath, metaPath string, img image.Image, meta Metadata) error {
	if err := os.MkdirAll(filepath.Dir(imgPath), 0o755); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	f, err := os.Create(imgPath)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("cache: encoding %s: %w", imgPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}
