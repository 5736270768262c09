package indexer

import (
	"regexp"
	"strings"
)

// SectionRule tags a segment with Section when its heading contains any of Keywords.
type SectionRule struct {
	Section  string
	Keywords []string // lower case
}

// DefaultSectionRules is evaluated in order; the first match wins.
var DefaultSectionRules = []SectionRule{
	{Section: SectionCBC, Keywords: []string{"blood count", "cbc", "hematology", "hemogram"}},
	{Section: SectionLipidProfile, Keywords: []string{"lipid", "cholesterol"}},
	{Section: SectionGlucoseDiabetes, Keywords: []string{"diabetes", "glucose", "hba1c", "sugar"}},
	{Section: SectionKidneyFunction, Keywords: []string{"kidney", "renal", "creatinine"}},
	{Section: SectionLiverFunction, Keywords: []string{"liver", "hepatic", "sgpt", "sgot"}},
	{Section: SectionElectrolytes, Keywords: []string{"electrolyte"}},
	{Section: SectionClinicalInterpretation, Keywords: []string{"interpretation", "diagnosis", "impression"}},
}

// contextPattern pulls one labelled value out of a report header.
type contextPattern struct {
	re       *regexp.Regexp
	fallback string
}

var (
	patientPattern = contextPattern{
		re:       regexp.MustCompile(`(?i)PATIENT:[ \t]*([^\n]*)`),
		fallback: "Unknown Patient",
	}
	collDatePattern = contextPattern{
		re:       regexp.MustCompile(`(?i)COLL(?:ECTION)?\.? DATE:[ \t]*([^\n]*)`),
		fallback: "Unknown Date",
	}
)

// find returns the first non-empty value for the pattern, trimmed of
// markdown table and emphasis characters.
func (p contextPattern) find(content string) string {
	for _, m := range p.re.FindAllStringSubmatch(content, -1) {
		v := strings.Trim(m[1], " \t\r*|")
		if v != "" {
			return v
		}
	}
	return p.fallback
}

// classify returns the section for a segment based on its first line.
func classify(rules []SectionRule, segment string) string {
	heading := segment
	if i := strings.IndexByte(heading, '\n'); i >= 0 {
		heading = heading[:i]
	}
	heading = strings.ToLower(heading)

	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(heading, kw) {
				return rule.Section
			}
		}
	}
	return SectionOther
}

// segmentByHeadings splits content at every line whose first non-blank rune is '#'.
// Concatenating the result reproduces content exactly.
func segmentByHeadings(content string) []string {
	var segments []string
	var current strings.Builder

	for _, line := range strings.SplitAfter(content, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "#") && current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}
