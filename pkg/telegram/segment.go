package telegram

import "unicode"

// sentenceEnders close a sentence in both Latin and CJK punctuation.
const sentenceEnders = ".!?。！？"

// SplitMessage splits text into chunks of at most maxLen runes, preferring
// semantic boundaries. Within each maxLen window the last paragraph break
// wins, then the last line break, then the last sentence terminator, then the
// last whitespace. When the window contains none of these the cut is a hard
// one at exactly maxLen. Leading whitespace is trimmed from every chunk after
// the first, so the chunks reproduce the original content, not necessarily
// its inter-chunk whitespace.
//
// Pure function of its inputs; safe to call from any goroutine.
func SplitMessage(text string, maxLen int) []string {
	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(runes) > maxLen {
		window := runes[:maxLen]

		split := lastParagraphBreak(window)
		if split < 0 {
			split = lastLineBreak(window)
		}
		if split < 0 {
			split = lastSentenceEnd(window)
		}
		if split < 0 {
			split = lastWhitespace(window)
		}
		if split <= 0 {
			split = maxLen // hard cut
		}

		chunks = append(chunks, string(runes[:split]))
		runes = trimLeadingSpace(runes[split:])
	}

	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// lastParagraphBreak returns the index just past the last "\n\n", or -1.
func lastParagraphBreak(window []rune) int {
	for i := len(window) - 2; i >= 0; i-- {
		if window[i] == '\n' && window[i+1] == '\n' {
			return i + 2
		}
	}
	return -1
}

func lastLineBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '\n' {
			return i + 1
		}
	}
	return -1
}

func lastSentenceEnd(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		for _, e := range sentenceEnders {
			if window[i] == e {
				return i + 1
			}
		}
	}
	return -1
}

func lastWhitespace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i + 1
		}
	}
	return -1
}

func trimLeadingSpace(runes []rune) []rune {
	i := 0
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return runes[i:]
}
