package rag

import "testing"

func TestRerankLiteral(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		content []string
		want    []int
	}{
		{
			name:    "no matches keeps order",
			query:   "ferritin",
			content: []string{"a", "b", "c"},
			want:    []int{0, 1, 2},
		},
		{
			name:    "matches move ahead stably",
			query:   "HbA1c",
			content: []string{"glucose", "hba1c 5.4%", "lipids", "HBA1C trend"},
			want:    []int{1, 3, 0, 2},
		},
		{
			name:    "empty query is a no-op",
			query:   "",
			content: []string{"x", "y"},
			want:    []int{0, 1},
		},
		{
			name:    "query matched as given",
			query:   "HbA1c ",
			content: []string{"hba1c", "HbA1c 5.4 %"},
			want:    []int{1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make([]RetrievalResult, len(tt.content))
			for i, c := range tt.content {
				results[i] = RetrievalResult{ChunkID: string(rune('0' + i)), Content: c}
			}

			got := rerankLiteral(tt.query, results)
			for i, idx := range tt.want {
				if got[i].ChunkID != string(rune('0'+idx)) {
					t.Fatalf("position %d = %s, want %d", i, got[i].ChunkID, idx)
				}
			}
		})
	}
}
