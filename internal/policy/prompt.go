package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// blockedArtists are third-party artist names that must not appear in
// prompts. Matched case-insensitively on word boundaries.
var blockedArtists = []string{
	"drake",
	"taylor swift",
	"dua lipa",
	"beyonce",
	"the weeknd",
	"billie eilish",
	"ed sheeran",
}

// authorshipPattern catches "by <Name>" attributions, e.g. "song by Dua
// Lipa". Requires a capitalized word after "by" so ordinary phrases like
// "by the sea" pass.
var authorshipPattern = regexp.MustCompile(`\bby\s+\p{Lu}[\p{L}'-]*`)

// PromptError describes why a prompt was rejected.
type PromptError struct {
	Reason string
}

func (e *PromptError) Error() string {
	return "prompt blocked: " + e.Reason
}

// CheckPrompt inspects raw prompt text against the content policy. It
// returns nil when the prompt is allowed, or a *PromptError naming the
// blocked term otherwise.
func CheckPrompt(prompt string) error {
	lower := strings.ToLower(prompt)

	for _, artist := range blockedArtists {
		if containsWord(lower, artist) {
			return &PromptError{Reason: fmt.Sprintf("prompts must not reference the artist %q", artist)}
		}
	}
	if containsWord(lower, "lyrics") {
		return &PromptError{Reason: "prompts must not request lyrics"}
	}
	if match := authorshipPattern.FindString(prompt); match != "" {
		return &PromptError{Reason: fmt.Sprintf("prompts must not attribute authorship (%q)", match)}
	}
	return nil
}

// AugmentPrompt appends engine hints for requested features.
func AugmentPrompt(prompt string, vocals bool) string {
	if vocals {
		return prompt + " +with vocals"
	}
	return prompt
}

func containsWord(haystack, word string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], word)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(haystack[start-1])
		afterOK := end == len(haystack) || !isWordByte(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
