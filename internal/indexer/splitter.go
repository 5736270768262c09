package indexer

import "strings"

// splitSeparators are tried in priority order when looking for a split point.
var splitSeparators = []string{"\n\n", "\n", ". ", " "}

// span is a half-open rune range [start, end).
type span struct {
	start, end int
}

// SplitText cuts text into pieces of at most size runes, preferring paragraph,
// line, sentence and word boundaries in that order. Consecutive pieces share up
// to overlap runes. The result is deterministic and never contains an empty piece.
func SplitText(text string, size, overlap int) []string {
	runes := []rune(text)
	spans := splitSpans(runes, size, overlap)
	pieces := make([]string, len(spans))
	for i, s := range spans {
		pieces[i] = string(runes[s.start:s.end])
	}
	return pieces
}

func splitSpans(runes []rune, size, overlap int) []span {
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 {
		return []span{{0, len(runes)}}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	var spans []span
	cursor := 0
	for cursor < len(runes) {
		if len(runes)-cursor <= size {
			spans = append(spans, span{cursor, len(runes)})
			break
		}

		boundary := cursor + size
		p, sepLen := lastSeparator(runes, cursor, boundary)

		var next, end int
		if p > cursor {
			spans = append(spans, span{cursor, p})
			next, end = p+sepLen-overlap, p+sepLen
		} else {
			spans = append(spans, span{cursor, boundary})
			next, end = boundary-overlap, boundary
		}

		// A piece shorter than the overlap resumes after its own end, so the
		// same separator is never picked twice.
		if next <= cursor {
			next = end
		}
		if next <= cursor {
			next = cursor + 1
		}
		cursor = next
	}
	return spans
}

// lastSeparator finds the rightmost occurrence of the highest-priority
// separator inside runes[from:to] that leaves a non-empty piece before it.
// It returns -1 when none qualifies.
func lastSeparator(runes []rune, from, to int) (int, int) {
	window := string(runes[from:to])
	for _, sep := range splitSeparators {
		idx := strings.LastIndex(window, sep)
		if idx <= 0 {
			continue
		}
		// idx is a byte offset into window; convert back to runes.
		return from + len([]rune(window[:idx])), len([]rune(sep))
	}
	return -1, 0
}
