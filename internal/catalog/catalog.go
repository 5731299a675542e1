// Package catalog loads the local ticker catalog: a static list of
// {symbol, name} records read once at process start.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/marketlens/pkg/models"
)

// Catalog is an immutable, ordered set of ticker records.
type Catalog struct {
	entries []models.CatalogEntry
	names   map[string]string // upper-cased symbol → display name
}

// tsRecord matches `{ symbol: "AAPL", name: "Apple Inc." }` object literals
// as found in TypeScript ticker lists.
var tsRecord = regexp.MustCompile(`\{[^}]*symbol:\s*"([^"]*)",[^}]*name:\s*"([^"]*)"[^}]*\}`)

// New builds a catalog from entries. Blank symbols are skipped; the first
// occurrence of a symbol wins the name lookup.
func New(entries []models.CatalogEntry) *Catalog {
	c := &Catalog{
		entries: make([]models.CatalogEntry, 0, len(entries)),
		names:   make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		e.Symbol = strings.TrimSpace(e.Symbol)
		e.Name = strings.TrimSpace(e.Name)
		if e.Symbol == "" {
			continue
		}
		c.entries = append(c.entries, e)
		key := strings.ToUpper(e.Symbol)
		if _, ok := c.names[key]; !ok {
			c.names[key] = e.Name
		}
	}
	return c
}

// Load reads a catalog file. The format is chosen by extension:
// .json (array of records), .yaml/.yml (array of records) or anything else,
// which is scanned for TypeScript-style object literals.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	entries, err := Parse(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return New(entries), nil
}

// Parse decodes catalog records from data according to ext.
func Parse(ext string, data []byte) ([]models.CatalogEntry, error) {
	var entries []models.CatalogEntry
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&entries); err != nil {
			return nil, err
		}
	default:
		for _, m := range tsRecord.FindAllSubmatch(data, -1) {
			entries = append(entries, models.CatalogEntry{Symbol: string(m[1]), Name: string(m[2])})
		}
	}
	return entries, nil
}

// Entries returns the records in file order. The slice must not be modified.
func (c *Catalog) Entries() []models.CatalogEntry {
	if c == nil {
		return nil
	}
	return c.entries
}

// Name returns the display name of symbol (case-insensitive).
func (c *Catalog) Name(symbol string) (string, bool) {
	if c == nil {
		return "", false
	}
	name, ok := c.names[strings.ToUpper(symbol)]
	return name, ok
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}
