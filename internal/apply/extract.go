package apply

import (
	"regexp"
	"strings"
)

// reANSI matches ANSI escape codes (CSI sequences) that AI CLIs may embed in
// their output. We strip these before looking for code.
var reANSI = regexp.MustCompile(`\x1b\[[0-9;]*[mGKHF]`)

// reCodeFence matches a markdown code fence block that optionally carries a
// "python" (or "py", or no) language tag. The content between the opening and
// closing fences is captured in subgroup 1. The (?s) flag enables dot-all mode
// so that .*? matches newlines; the non-greedy quantifier stops at the first
// closing fence.
var reCodeFence = regexp.MustCompile("(?s)```(?:python|py)?[ \\t]*\n(.*?)\n?```")

// ExtractCode returns the source code carried by an LLM reply. Model output
// often wraps the file content in a markdown code fence and surrounds it with
// prose; when a fence is present its content wins, otherwise the cleaned text
// itself is treated as the code.
func ExtractCode(text string) string {
	// Strip leading UTF-8 BOM (U+FEFF encoded as EF BB BF).
	text = strings.TrimPrefix(text, "\xef\xbb\xbf")
	text = reANSI.ReplaceAllString(text, "")

	if m := reCodeFence.FindStringSubmatch(text); m != nil {
		return strings.TrimRight(m[1], "\n") + "\n"
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	return trimmed + "\n"
}
