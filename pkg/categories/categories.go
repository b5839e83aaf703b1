// Package categories loads and validates the category table that maps
// mask values to class names.
package categories

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/menta2k/cocomask/pkg/types"
)

var (
	ErrDuplicateID   = errors.New("duplicate category id")
	ErrDuplicateName = errors.New("duplicate category name")
	ErrMissingField  = errors.New("category must have an id and a name")
)

// Table is a validated, read-only category table. It is safe for
// concurrent use.
type Table struct {
	cats   []types.Category
	byID   map[int64]string
	byName map[string]int64
}

type rawCategory struct {
	ID            *int64  `json:"id"`
	Name          *string `json:"name"`
	Supercategory string  `json:"supercategory"`
}

// Load reads a JSON list of {"id", "name"} objects from path.
func Load(path string) (*Table, error) {
	if path == "" {
		return nil, fmt.Errorf("a categories file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories file %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid categories file %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a JSON category list.
func Parse(data []byte) (*Table, error) {
	var raw []rawCategory
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	cats := make([]types.Category, 0, len(raw))
	for i, r := range raw {
		if r.ID == nil || r.Name == nil {
			return nil, fmt.Errorf("entry %d: %w", i, ErrMissingField)
		}
		cats = append(cats, types.Category{ID: *r.ID, Name: *r.Name, Supercategory: r.Supercategory})
	}
	return New(cats)
}

// New validates cats and builds a table preserving their order.
func New(cats []types.Category) (*Table, error) {
	t := &Table{
		cats:   make([]types.Category, 0, len(cats)),
		byID:   make(map[int64]string, len(cats)),
		byName: make(map[string]int64, len(cats)),
	}
	for _, c := range cats {
		if _, ok := t.byID[c.ID]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, c.ID)
		}
		if _, ok := t.byName[c.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, c.Name)
		}
		t.byID[c.ID] = c.Name
		t.byName[c.Name] = c.ID
		t.cats = append(t.cats, c)
	}
	return t, nil
}

func (t *Table) Len() int { return len(t.cats) }

// Has reports whether id is a known category.
func (t *Table) Has(id int64) bool {
	_, ok := t.byID[id]
	return ok
}

// Name returns the name of category id.
func (t *Table) Name(id int64) (string, error) {
	name, ok := t.byID[id]
	if !ok {
		return "", fmt.Errorf("category id %d not found", id)
	}
	return name, nil
}

// ID returns the id of the named category.
func (t *Table) ID(name string) (int64, error) {
	id, ok := t.byName[name]
	if !ok {
		return 0, fmt.Errorf("category %q not found", name)
	}
	return id, nil
}

// Categories returns a copy of the table in file order.
func (t *Table) Categories() []types.Category {
	out := make([]types.Category, len(t.cats))
	copy(out, t.cats)
	return out
}
