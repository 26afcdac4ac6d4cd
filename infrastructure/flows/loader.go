// Package flows loads the declarative conversation graphs.
package flows

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Skozial17/supportchat/domain/conversation"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

//go:embed flows.yaml
var embedded []byte

type catalogFile struct {
	Default string                    `yaml:"default"`
	Flows   []conversation.Definition `yaml:"flows"`
}

// Catalog is the set of validated graphs, keyed by name.
type Catalog struct {
	graphs      map[string]*conversation.Graph
	order       []string
	defaultFlow string
}

// LoadEmbedded loads the graphs shipped with the binary.
func LoadEmbedded() (*Catalog, error) {
	return Load(embedded)
}

// LoadFile loads graphs from a YAML file on disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flows file %s: %w", path, err)
	}
	return Load(data)
}

// Load decodes and validates a YAML flow table. Unknown keys are rejected.
func Load(data []byte) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode flows: %w", err)
	}
	if len(file.Flows) == 0 {
		return nil, fmt.Errorf("flows file defines no graphs")
	}

	c := &Catalog{graphs: make(map[string]*conversation.Graph, len(file.Flows))}
	for _, def := range file.Flows {
		if _, dup := c.graphs[def.Name]; dup {
			return nil, fmt.Errorf("flow %q is defined twice", def.Name)
		}
		g, err := conversation.NewGraph(def)
		if err != nil {
			return nil, err
		}
		c.graphs[def.Name] = g
		c.order = append(c.order, def.Name)
	}

	c.defaultFlow = file.Default
	if c.defaultFlow == "" {
		c.defaultFlow = c.order[0]
	}
	if _, ok := c.graphs[c.defaultFlow]; !ok {
		return nil, fmt.Errorf("default flow %q is not defined", c.defaultFlow)
	}
	return c, nil
}

// WithDefaultFlow returns a catalog sharing the same graphs with another default.
func (c *Catalog) WithDefaultFlow(name string) (*Catalog, error) {
	if name == "" {
		return c, nil
	}
	if _, ok := c.graphs[name]; !ok {
		return nil, pkgerrors.NewFlowNotFoundError(name)
	}
	clone := *c
	clone.defaultFlow = name
	return &clone, nil
}

func (c *Catalog) Graph(name string) (*conversation.Graph, error) {
	g, ok := c.graphs[name]
	if !ok {
		return nil, pkgerrors.NewFlowNotFoundError(name)
	}
	return g, nil
}

func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

func (c *Catalog) DefaultFlow() string {
	return c.defaultFlow
}
