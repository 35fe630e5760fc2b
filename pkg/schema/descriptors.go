package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-crudkit/pkg/model"
)

type collectionsFile struct {
	Collections []model.Schema `yaml:"collections"`
}

// DecodeDescriptors reads a YAML or JSON descriptor stream. Each document
// is either one collection or a mapping with a "collections" list.
func DecodeDescriptors(raw []byte) ([]model.Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	var out []model.Schema
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("schema: decode descriptors: %w", err)
		}
		if len(node.Content) == 0 {
			continue
		}
		root := node.Content[0]
		if root.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("schema: line %d: descriptor document must be a mapping", root.Line)
		}
		if mappingValue(root, "collections") != nil {
			var file collectionsFile
			if err := root.Decode(&file); err != nil {
				return nil, fmt.Errorf("schema: decode collections: %w", err)
			}
			out = append(out, file.Collections...)
			continue
		}
		var single model.Schema
		if err := root.Decode(&single); err != nil {
			return nil, fmt.Errorf("schema: decode collection: %w", err)
		}
		out = append(out, single)
	}
	if len(out) == 0 {
		return nil, errors.New("schema: no collections defined")
	}
	for _, s := range out {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// mappingValue returns the value node stored under key.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
