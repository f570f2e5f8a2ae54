package config

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// keySet records which dotted keys a YAML document sets.
type keySet map[string]struct{}

func (k keySet) IsDefined(keys ...string) bool {
	_, ok := k[strings.Join(keys, ".")]
	return ok
}

func decodeYAML(data []byte, out *fileConfig) (keySet, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	keys := keySet{}
	if len(doc.Content) == 0 {
		return keys, nil
	}
	if err := doc.Decode(out); err != nil {
		return nil, err
	}
	collectKeys(doc.Content[0], "", keys)
	return keys, nil
}

func collectKeys(n *yaml.Node, prefix string, keys keySet) {
	if n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		if prefix != "" {
			name = prefix + "." + name
		}
		keys[name] = struct{}{}
		collectKeys(n.Content[i+1], name, keys)
	}
}
