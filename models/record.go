// Package models defines the data types shared across the pipeline
// and the runtime configuration.
package models

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field is a single attribute of a listing, e.g. "Fuel type" -> "diesel".
type Field struct {
	Key   string
	Value string
}

// Fields is an ordered attribute mapping. Order is the order the
// attributes appeared on the source page and is preserved through
// serialization.
type Fields []Field

// Get returns the value for key and whether it was present.
func (f Fields) Get(key string) (string, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

// MarshalYAML serializes Fields as a YAML mapping with stable key order.
func (f Fields) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, field := range f {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: field.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: field.Value},
		)
	}
	return node, nil
}

// UnmarshalYAML reads a YAML mapping back into ordered Fields.
func (f *Fields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("fields: expected mapping, got %v", node.Kind)
	}
	fields := make(Fields, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		fields = append(fields, Field{
			Key:   node.Content[i].Value,
			Value: node.Content[i+1].Value,
		})
	}
	*f = fields
	return nil
}

// Record is the normalized extracted data of one catalog listing.
// It is immutable once stored.
type Record struct {
	URL         string   `yaml:"url"`
	Info        Fields   `yaml:"information"`
	DetailsList []string `yaml:"details_list"`
	DetailsText string   `yaml:"details_text"`
	Language    string   `yaml:"language,omitempty"`
}

// Description renders the record as the flat "key: value | ..." text the
// scoring model consumes. The format must stay in sync with the model's
// training data.
func (r Record) Description() string {
	parts := make([]string, 0, len(r.Info)+2)
	for _, field := range r.Info {
		parts = append(parts, fmt.Sprintf("%s: %s", field.Key, field.Value))
	}
	if len(r.DetailsList) > 0 {
		parts = append(parts, strings.Join(r.DetailsList, " | "))
	}
	if r.DetailsText != "" {
		parts = append(parts, r.DetailsText)
	}
	return strings.Join(parts, " | ")
}

// Query is one saved user interest: free-form text plus an optional
// brand facet that restricts which listings the query applies to.
type Query struct {
	Text  string `json:"query"`
	Brand string `json:"brand,omitempty"`
}

// Hit is a (listing, query) pair whose score met the alert threshold.
type Hit struct {
	URL       string
	QueryText string
}
