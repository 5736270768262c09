package rag

import (
	"sort"
	"strings"
)

// rerankLiteral moves results whose content contains the query string as given
// (case-insensitive) ahead of the rest. Order within each group is preserved.
func rerankLiteral(query string, results []RetrievalResult) []RetrievalResult {
	needle := strings.ToLower(query)
	if needle == "" {
		return results
	}

	for i := range results {
		results[i].LiteralMatch = strings.Contains(strings.ToLower(results[i].Content), needle)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].LiteralMatch && !results[j].LiteralMatch
	})
	return results
}
