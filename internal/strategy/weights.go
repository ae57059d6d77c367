package strategy

import "gopkg.in/yaml.v3"

// Weights maps a symbol to its fraction of portfolio value
type Weights map[string]float64

// UnmarshalYAML replaces the table instead of merging into defaults
func (w *Weights) UnmarshalYAML(node *yaml.Node) error {
	table := make(map[string]float64)
	if err := node.Decode(&table); err != nil {
		return err
	}
	*w = table
	return nil
}
