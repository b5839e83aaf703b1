package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/menta2k/cocomask/pkg/mask"
)

// Segmentation is either a list of flat polygons or a run-length encoded
// mask. RLE is nil for polygon segmentations.
type Segmentation struct {
	Polygons [][]float64
	RLE      *mask.RLE
	// Compressed records whether RLE counts were read from, and are written
	// as, the compressed string form.
	Compressed bool
}

type rleJSON struct {
	Size   [2]int          `json:"size"`
	Counts json.RawMessage `json:"counts"`
}

func (s Segmentation) MarshalJSON() ([]byte, error) {
	if s.RLE != nil {
		var counts any = s.RLE.Counts
		if s.Compressed {
			counts = s.RLE.String()
		} else if s.RLE.Counts == nil {
			counts = []uint32{}
		}
		return json.Marshal(struct {
			Size   [2]int `json:"size"`
			Counts any    `json:"counts"`
		}{s.RLE.Size, counts})
	}
	if s.Polygons == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Polygons)
}

func (s *Segmentation) UnmarshalJSON(data []byte) error {
	*s = Segmentation{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '[':
		return json.Unmarshal(data, &s.Polygons)
	case '{':
		var raw rleJSON
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("invalid RLE segmentation: %w", err)
		}
		r := &mask.RLE{Size: raw.Size}
		counts := bytes.TrimSpace(raw.Counts)
		if len(counts) > 0 && counts[0] == '"' {
			var str string
			if err := json.Unmarshal(counts, &str); err != nil {
				return fmt.Errorf("invalid RLE counts: %w", err)
			}
			c, err := mask.ParseCounts(str)
			if err != nil {
				return err
			}
			r.Counts = c
			s.Compressed = true
		} else if len(counts) > 0 {
			if err := json.Unmarshal(counts, &r.Counts); err != nil {
				return fmt.Errorf("invalid RLE counts: %w", err)
			}
		}
		s.RLE = r
		return nil
	}
	return fmt.Errorf("unsupported segmentation value %.20q", data)
}

// Empty reports whether the segmentation holds no shape.
func (s Segmentation) Empty() bool {
	return s.RLE == nil && len(s.Polygons) == 0
}
