package scoring

import "strings"

// SplitSentences segments text on terminal punctuation, dropping empty
// segments. A trailing fragment without terminal punctuation counts as a
// sentence of its own.
func SplitSentences(text string) []string {
	sentences := make([]string, 0, 4)
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for _, r := range text {
		switch r {
		case '.', '!', '?':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return sentences
}

// WordCount reports the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
