package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ImageVariant records one responsive rendition of a gallery image.
type ImageVariant struct {
	Size int    `json:"size"`
	URL  string `json:"url"`
	Path string `json:"path"`
}

// ImageVariants is stored as a JSONB array.
type ImageVariants []ImageVariant

func (v *ImageVariants) Scan(src any) error {
	if src == nil {
		*v = ImageVariants{}
		return nil
	}

	switch raw := src.(type) {
	case []byte:
		return v.parseFromBytes(raw)
	case string:
		return v.parseFromBytes([]byte(raw))
	default:
		return fmt.Errorf("ImageVariants: unsupported Scan type %T", src)
	}
}

func (v ImageVariants) Value() (driver.Value, error) {
	if len(v) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ImageVariants: marshal: %w", err)
	}
	return string(data), nil
}

// Paths returns the storage paths of all variants, skipping empties.
func (v ImageVariants) Paths() []string {
	paths := make([]string, 0, len(v))
	for _, variant := range v {
		if variant.Path != "" {
			paths = append(paths, variant.Path)
		}
	}
	return paths
}

func (v *ImageVariants) parseFromBytes(data []byte) error {
	if len(data) == 0 {
		*v = ImageVariants{}
		return nil
	}
	var out []ImageVariant
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("ImageVariants: parse: %w", err)
	}
	*v = ImageVariants(out)
	return nil
}
