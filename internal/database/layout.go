package database

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Layout describes the initial table pool.  A layout file looks like:
//
//	tables:
//	  - capacity: 2
//	    count: 4
//	  - capacity: 6
//	    count: 2
type Layout struct {
	Tables []LayoutGroup `yaml:"tables"`
}

// LayoutGroup is a run of identical tables.
type LayoutGroup struct {
	Capacity int `yaml:"capacity"`
	Count    int `yaml:"count"`
}

// Capacities expands the layout into one capacity per table, in file
// order.
func (l Layout) Capacities() []int {
	var out []int
	for _, g := range l.Tables {
		for i := 0; i < g.Count; i++ {
			out = append(out, g.Capacity)
		}
	}
	return out
}

// UniformLayout returns a layout of n tables of the same capacity.
func UniformLayout(n, capacity int) Layout {
	if n <= 0 {
		return Layout{}
	}
	return Layout{Tables: []LayoutGroup{{Capacity: capacity, Count: n}}}
}

// ParseLayout decodes a YAML layout and rejects empty or non-positive
// groups.
func ParseLayout(b []byte) (Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(b, &l); err != nil {
		return Layout{}, fmt.Errorf("parse layout: %w", err)
	}
	for i, g := range l.Tables {
		if g.Capacity < 1 || g.Count < 1 {
			return Layout{}, fmt.Errorf("layout group %d: capacity and count must be positive", i)
		}
	}
	return l, nil
}

// LoadLayout reads a YAML layout file.
func LoadLayout(path string) (Layout, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, err
	}
	return ParseLayout(b)
}
