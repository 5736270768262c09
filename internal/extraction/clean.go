package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultNoisePatterns are the report headers and footers stripped from every page.
// Matching is case-insensitive.
var DefaultNoisePatterns = []string{
	`CLINICTECH LABS - COMPREHENSIVE REPORT`,
	`123 Innovation Drive`,
	`123 Innovation Dove`, // OCR misread
	`--- PAGE [0-9]+ ---`,
	`Page [0-9]+`,
}

var yearPattern = regexp.MustCompile(`(?:19|20)\d{2}`)

// Cleaner removes boilerplate noise from extracted markdown.
type Cleaner struct {
	patterns []*regexp.Regexp
}

// NewCleaner compiles the noise patterns. An empty list uses DefaultNoisePatterns.
func NewCleaner(patterns []string) (*Cleaner, error) {
	if len(patterns) == 0 {
		patterns = DefaultNoisePatterns
	}

	c := &Cleaner{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid noise pattern %q: %w", p, err)
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

// Clean strips every noise match and trims surrounding whitespace.
func (c *Cleaner) Clean(text string) string {
	for _, re := range c.patterns {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// ParseYear returns the first four-digit year (1900-2099) in a filename, or nil.
func ParseYear(filename string) *int {
	m := yearPattern.FindString(filename)
	if m == "" {
		return nil
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &year
}
