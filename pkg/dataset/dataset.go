// Package dataset reads, writes, merges and splits COCO dataset files.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/menta2k/cocomask/pkg/types"
)

var (
	// ErrMissingKey is returned when a dataset file lacks images,
	// annotations or categories.
	ErrMissingKey = errors.New("missing required dataset key")
	// ErrCategoryMismatch is returned when two datasets disagree on their
	// category tables.
	ErrCategoryMismatch = errors.New("category tables do not match")
)

// Contributor is written into the info block of converted datasets.
const Contributor = "cocomask"

const timeLayout = "2006-01-02 15:04:05"

var requiredKeys = []string{"images", "annotations", "categories"}

// New returns an empty dataset carrying the given categories and a fresh
// info block stamped with now.
func New(cats []types.Category, now time.Time) *types.Dataset {
	return &types.Dataset{
		Info: &types.Info{
			Description: "Converted Dataset",
			Version:     "1.0",
			Year:        now.Year(),
			Contributor: Contributor,
			DateCreated: now.Format(timeLayout),
		},
		Licenses:    []types.License{},
		Images:      []types.Image{},
		Annotations: []types.Annotation{},
		Categories:  cats,
	}
}

// NewImage builds an image record captured at now.
func NewImage(id int64, fileName string, width, height int, now time.Time) types.Image {
	return types.Image{
		ID:           id,
		FileName:     fileName,
		Width:        width,
		Height:       height,
		DateCaptured: now.Format(timeLayout),
	}
}

// Decode parses a dataset document and checks the required keys.
func Decode(data []byte) (*types.Dataset, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	for _, k := range requiredKeys {
		if _, ok := keys[k]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingKey, k)
		}
	}

	var ds types.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}
	return &ds, nil
}

// Load reads and validates a dataset file.
func Load(path string) (*types.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	ds, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Save writes ds to path atomically: the document is written to a hidden
// temporary file in the same directory and renamed into place.
func Save(ds *types.Dataset, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	tmp := filepath.Join(dir, ".tmp_"+filepath.Base(path))
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save dataset %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save dataset %s: %w", path, err)
	}
	return nil
}
