package synthesis

// SplitReply packs consecutive sentences (delimited by 。 or line breaks)
// greedily into chunks of at most maxLen runes. A single sentence longer
// than maxLen becomes its own oversized chunk rather than being truncated.
func SplitReply(text string, maxLen int) []string {
	var chunks []string
	sentences := splitSentences(text)

	current := ""
	for _, sentence := range sentences {
		if runeLen(current)+runeLen(sentence) <= maxLen {
			if current != "" {
				current += "。"
			}
			current += sentence
		} else {
			if current != "" {
				closing := ""
				if sentence != "" {
					closing = "。"
				}
				chunks = append(chunks, current+closing)
			}
			current = sentence
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func splitSentences(text string) []string {
	var sentences []string
	current := ""
	for _, r := range text {
		if r == '。' || r == '\n' {
			sentences = append(sentences, current)
			current = ""
			continue
		}
		current += string(r)
	}
	return append(sentences, current)
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
