package main

import (
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func (c *cli) validateOutput() error {
	switch c.output {
	case formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q: use json or yaml", c.output)
	}
}

// print writes v to stdout in the selected format.
func (c *cli) print(v any) error {
	return writeOutput(c.stdout, c.output, v)
}

// writeOutput renders v as indented JSON or as block-style YAML. YAML goes
// through the JSON encoding so custom marshalers and field order carry over.
func writeOutput(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	switch format {
	case formatJSON:
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return fmt.Errorf("convert output to yaml: %w", err)
		}
		blockStyle(&node)

		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// blockStyle clears the flow and quoting styles the JSON input left on n.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}
