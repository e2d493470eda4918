package types

import (
	"fmt"
	"strings"
)

// Feature is a product-feature description submitted for classification.
// Immutable for the duration of one classification call.
type Feature struct {
	ID          string   `json:"feature_id"`
	Title       string   `json:"feature_name"`
	Description string   `json:"feature_description"`
	PRD         string   `json:"prd,omitempty"`
	TRD         string   `json:"trd,omitempty"`
	GeoTags     []string `json:"geo_tags,omitempty"`
}

// Validate ensures the feature carries enough text to classify.
func (f *Feature) Validate() error {
	if f.Title == "" && f.Description == "" {
		return fmt.Errorf("feature needs a title or a description")
	}
	return nil
}

// Text assembles all feature artifacts into one analysis document.
func (f *Feature) Text() string {
	var b strings.Builder
	if f.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", f.Title)
	}
	fmt.Fprintf(&b, "Description: %s", f.Description)
	if f.PRD != "" {
		fmt.Fprintf(&b, "\n\nPRD: %s", f.PRD)
	}
	if f.TRD != "" {
		fmt.Fprintf(&b, "\n\nTRD: %s", f.TRD)
	}
	return b.String()
}
