package fonts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// DefaultFontID is the identifier of the bundled fallback font.
const DefaultFontID = "default"

// ErrNotFound is returned when looking up a font id that isn't registered
var ErrNotFound = errors.New("font does not exist")

// Font is a parsed font, immutable once loaded.
type Font struct {
	ID   string
	font *truetype.Font
}

// Face creates a new font face for the given point size. Faces cache glyph
// state and are not safe for concurrent use, so each caller creates its own.
func (f *Font) Face(size float64) font.Face {
	return truetype.NewFace(f.font, &truetype.Options{
		Size: size,
		DPI:  72,
	})
}

// Registry maps font ids to parsed fonts. It is built during startup and
// never mutated afterwards, so lookups need no synchronization.
type Registry struct {
	fonts map[string]*Font
}

// New returns a registry containing only the bundled default font.
func New() (*Registry, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing bundled font: %w", err)
	}

	return &Registry{
		fonts: map[string]*Font{
			DefaultFontID: {ID: DefaultFontID, font: f},
		},
	}, nil
}

// Load parses every .ttf and .otf file in dir and registers it under its
// file name without the extension. An unreadable directory or a single
// unparseable font fails the whole load, leaving the registry unchanged, so
// the process never starts serving with a partial font table.
func (r *Registry) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading font directory: %w", err)
	}

	loaded := make(map[string]*Font)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".ttf" && ext != ".otf" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("reading font %s: %w", entry.Name(), err)
		}

		f, err := truetype.Parse(data)
		if err != nil {
			return fmt.Errorf("parsing font %s: %w", entry.Name(), err)
		}

		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		loaded[id] = &Font{ID: id, font: f}
	}

	for id, f := range loaded {
		r.fonts[id] = f
	}

	return nil
}

// Lookup returns the font registered under id.
func (r *Registry) Lookup(id string) (*Font, error) {
	f, ok := r.fonts[id]
	if !ok {
		return nil, ErrNotFound
	}

	return f, nil
}

// IDs returns the registered font ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.fonts))
	for id := range r.fonts {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
