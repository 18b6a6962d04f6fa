package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q (table, json, yaml)", format)
	}
}

// renderDocument prints a JSON-LD document as key/value rows.
func renderDocument(w io.Writer, format, kind string, doc map[string]any) error {
	if format != OutputTable {
		return writeStructured(w, format, map[string]any{"kind": kind, "document": doc})
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")
	table.Append("kind", kind)
	for _, k := range keys {
		table.Append(k, formatValue(doc[k]))
	}
	return table.Render()
}

// renderRelationships prints edges as source/predicate/target rows.
func renderRelationships(w io.Writer, format string, rels []map[string]any) error {
	if format != OutputTable {
		return writeStructured(w, format, rels)
	}
	table := tablewriter.NewWriter(w)
	table.Header("Source", "Predicate", "Target")
	for _, rel := range rels {
		source, _ := rel["@id"].(string)
		for k, v := range rel {
			if k == "@id" {
				continue
			}
			table.Append(source, k, formatValue(v))
		}
	}
	return table.Render()
}

func renderImport(w io.Writer, format string, results []ImportResult) error {
	if format != OutputTable {
		return writeStructured(w, format, results)
	}
	table := tablewriter.NewWriter(w)
	table.Header("Step", "Created", "Failed")
	for _, r := range results {
		table.Append(r.Step, fmt.Sprint(r.Created), fmt.Sprint(r.Failed))
	}
	return table.Render()
}

// formatValue flattens JSON-LD values: node lists to their IRIs, literals to "value@lang".
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		out := ""
		for i, item := range val {
			if i > 0 {
				out += "\n"
			}
			out += formatValue(item)
		}
		return out
	case map[string]any:
		if id, ok := val["@id"].(string); ok {
			return id
		}
		if value, ok := val["@value"]; ok {
			s := fmt.Sprint(value)
			if lang, ok := val["@language"].(string); ok && lang != "" {
				s += "@" + lang
			}
			return s
		}
		data, _ := json.Marshal(val)
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
