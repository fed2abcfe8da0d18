package memory

import "strings"

// importanceKeywords are content markers that raise a record's importance.
var importanceKeywords = []string{
	"remember", "important", "preference", "like", "dislike",
	"always", "never", "favorite", "hate", "love",
}

// estimateImportance scores content in [0,1]: 0.5 base, +0.1 per keyword
// present, +0.1 for long content, +0.1 when tools were used.
func estimateImportance(content string, toolsUsed bool) float64 {
	score := 0.5
	lower := strings.ToLower(content)
	for _, kw := range importanceKeywords {
		if strings.Contains(lower, kw) {
			score += 0.1
		}
	}
	if len(content) > 100 {
		score += 0.1
	}
	if toolsUsed {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
