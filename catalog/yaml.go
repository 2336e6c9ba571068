package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type yamlField struct {
	Name       string `yaml:"name"`
	Rule       string `yaml:"rule"`
	RetrievalK int    `yaml:"retrieval_k"`
	Kind       string `yaml:"kind"`
}

// LoadFile reads a catalog definition from a YAML file. The file holds a list
// of fields; kind is one of "identifier", "cpv", "contracting_entity" or
// empty for generic fields.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var fields []yamlField
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	cat := make(Catalog, 0, len(fields))
	for _, f := range fields {
		kind, err := parseKind(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		cat = append(cat, FieldSpec{
			Name:       f.Name,
			Rule:       f.Rule,
			RetrievalK: f.RetrievalK,
			Kind:       kind,
		})
	}

	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	return cat, nil
}

func parseKind(name string) (Kind, error) {
	switch name {
	case "", "generic":
		return KindGeneric, nil
	case "identifier":
		return KindIdentifier, nil
	case "cpv":
		return KindCPV, nil
	case "contracting_entity":
		return KindContractingEntity, nil
	default:
		return KindGeneric, fmt.Errorf("unknown field kind: %s", name)
	}
}
