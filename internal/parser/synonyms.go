package parser

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadSynonyms reads a YAML file extending the header synonym lists, keyed by
// semantic field name:
//
//	tripNumber:
//	  - "manifest id"
//	driver:
//	  - "route driver"
//
// Unknown field keys are rejected so typos surface instead of silently doing
// nothing.
func LoadSynonyms(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "parser: read synonyms file")
	}

	var extra map[string][]string
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, eris.Wrap(err, "parser: parse synonyms file")
	}

	for field := range extra {
		if _, ok := defaultSynonyms[field]; !ok {
			return nil, eris.Errorf("parser: unknown semantic field %q in synonyms file", field)
		}
	}
	return extra, nil
}
