package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Bundle is a YAML file of JSON-LD documents grouped by kind.
type Bundle struct {
	ConceptSchemes  []map[string]any `yaml:"concept_schemes"`
	Concepts        []map[string]any `yaml:"concepts"`
	Relationships   []map[string]any `yaml:"relationships"`
	Correspondences []map[string]any `yaml:"correspondences"`
	Associations    []map[string]any `yaml:"associations"`
	MadeOf          []map[string]any `yaml:"made_of"`
}

// LoadBundle reads a bundle file.
func LoadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeBundle(f)
}

// DecodeBundle parses a bundle document.
func DecodeBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := yaml.NewDecoder(r).Decode(&b); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse bundle: %w", err)
	}
	return &b, nil
}

// ImportStep is one group of documents posted to one endpoint.
type ImportStep struct {
	Name string
	Path string
	Docs []map[string]any
	// Batch posts all documents in a single request.
	Batch bool
}

// Steps returns the bundle's documents in dependency order: schemes before the concepts
// that reference them, concepts before relationships, associations before made_of.
func (b *Bundle) Steps() []ImportStep {
	return []ImportStep{
		{Name: "concept_schemes", Path: "/v1/concept_schemes", Docs: b.ConceptSchemes},
		{Name: "concepts", Path: "/v1/concepts", Docs: b.Concepts},
		{Name: "relationships", Path: "/v1/relationships", Docs: b.Relationships, Batch: true},
		{Name: "correspondences", Path: "/v1/correspondences", Docs: b.Correspondences},
		{Name: "associations", Path: "/v1/associations", Docs: b.Associations},
		{Name: "made_of", Path: "/v1/made_of", Docs: b.MadeOf},
	}
}

// ImportResult counts the outcome of an import per step.
type ImportResult struct {
	Step    string `json:"step" yaml:"step"`
	Created int    `json:"created" yaml:"created"`
	Failed  int    `json:"failed" yaml:"failed"`
}

// Importer posts bundle documents to the API.
type Importer struct {
	client          *Client
	continueOnError bool
	log             io.Writer
}

// Import applies every step. Without continueOnError the first failure stops the import.
func (im *Importer) Import(ctx context.Context, b *Bundle) ([]ImportResult, error) {
	var results []ImportResult
	var firstErr error
	for _, step := range b.Steps() {
		if len(step.Docs) == 0 {
			continue
		}
		res := ImportResult{Step: step.Name}
		docs := make([]any, 0, len(step.Docs))
		if step.Batch {
			docs = append(docs, step.Docs)
		} else {
			for _, d := range step.Docs {
				docs = append(docs, d)
			}
		}
		for _, doc := range docs {
			err := im.client.Create(ctx, step.Path, doc)
			if err == nil {
				res.Created += countDocs(doc)
				continue
			}
			res.Failed += countDocs(doc)
			fmt.Fprintf(im.log, "%s: %s: %v\n", step.Name, docID(doc), err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", step.Name, err)
			}
			if !im.continueOnError {
				return append(results, res), firstErr
			}
		}
		results = append(results, res)
	}
	return results, firstErr
}

func countDocs(doc any) int {
	if list, ok := doc.([]map[string]any); ok {
		return len(list)
	}
	return 1
}

func docID(doc any) string {
	if m, ok := doc.(map[string]any); ok {
		if id, ok := m["@id"].(string); ok {
			return id
		}
	}
	return "batch"
}
