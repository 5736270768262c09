package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SectionRule maps a section label to the heading keywords that select it.
type SectionRule struct {
	Section  string   `yaml:"section"`
	Keywords []string `yaml:"keywords"`
}

// Rules is the optional YAML rules file. Empty lists mean "use the built-in
// defaults" for that table.
//
//	sections:
//	  - section: cbc
//	    keywords: [blood count, cbc]
//	noise_patterns:
//	  - 'Page [0-9]+'
type Rules struct {
	Sections      []SectionRule `yaml:"sections"`
	NoisePatterns []string      `yaml:"noise_patterns"`
}

// LoadRules reads a rules file. An empty path returns an empty Rules.
func LoadRules(path string) (*Rules, error) {
	rules := &Rules{}
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	for i, r := range rules.Sections {
		if strings.TrimSpace(r.Section) == "" {
			return nil, fmt.Errorf("rules file %s: section %d has no name", path, i)
		}
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("rules file %s: section %q has no keywords", path, r.Section)
		}
		for j, kw := range r.Keywords {
			rules.Sections[i].Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
	return rules, nil
}
