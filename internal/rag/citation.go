package rag

import (
	"regexp"
	"strconv"
)

var (
	bracketPattern   = regexp.MustCompile(`\[([^\[\]]*)\]`)
	sourceNumPattern = regexp.MustCompile(`(?i)sources?\s*(\d+(?:\s*(?:,|and|&)\s*\d+)*)`)
	numberPattern    = regexp.MustCompile(`\d+`)
)

// CitedSources returns the 1-based source numbers referenced as [Source n]
// in an answer. "[Source 1, 3]" and "[Sources 2 and 4]" are understood too.
func CitedSources(answer string) map[int]bool {
	cited := make(map[int]bool)
	for _, bracket := range bracketPattern.FindAllStringSubmatch(answer, -1) {
		for _, ref := range sourceNumPattern.FindAllStringSubmatch(bracket[1], -1) {
			for _, num := range numberPattern.FindAllString(ref[1], -1) {
				n, err := strconv.Atoi(num)
				if err == nil && n > 0 {
					cited[n] = true
				}
			}
		}
	}
	return cited
}
