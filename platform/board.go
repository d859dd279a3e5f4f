package platform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/softi2c/hal"
)

// Node is one device described by the platform.
type Node struct {
	Name       string   `yaml:"name"`
	Compatible Strings  `yaml:"compatible"`
	Bus        int      `yaml:"bus"`
	Address    hal.Addr `yaml:"address"`
}

// String describes the node for logging.
func (n Node) String() string {
	return fmt.Sprintf("%s (bus %d, %s)", n.Name, n.Bus, n.Address)
}

// Matches returns the first of the node's compatible strings for which
// match reports true.
func (n Node) Matches(match func(string) bool) (string, bool) {
	for _, c := range n.Compatible {
		if match(c) {
			return c, true
		}
	}
	return "", false
}

// same reports whether n and o describe the same physical device.
func (n Node) same(o Node) bool {
	return n.Bus == o.Bus && n.Address == o.Address
}

// Strings is a compatible list. In YAML it may be written as a single
// string or a sequence of strings.
type Strings []string

// UnmarshalYAML accepts a scalar or a sequence.
func (s *Strings) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = Strings{value.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: compatible must be a string or list", value.Line)
	}
}

// Board is a static platform description.
type Board struct {
	Name  string `yaml:"board"`
	Nodes []Node `yaml:"devices"`
}

// ParseBoard parses a YAML board description.
func ParseBoard(data []byte) (*Board, error) {
	var b Board
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse board: %w", err)
	}
	for i, n := range b.Nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("board device %d: missing name", i)
		}
		if len(n.Compatible) == 0 {
			return nil, fmt.Errorf("board device %s: missing compatible", n.Name)
		}
		if err := n.Address.Validate(); err != nil {
			return nil, fmt.Errorf("board device %s: %w", n.Name, err)
		}
		if n.Bus < 0 {
			return nil, fmt.Errorf("board device %s: invalid bus %d", n.Name, n.Bus)
		}
	}
	return &b, nil
}

// LoadBoard reads and parses the board description at path.
func LoadBoard(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read board: %w", err)
	}
	return ParseBoard(data)
}
