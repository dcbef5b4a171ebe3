package analyzehealthentities

// chunkText splits text into pieces of at most maxChars characters. The
// limit counts runes, not bytes, matching the service's character cap.
// Breaks happen at newline boundaries when possible, but never so close
// to the chunk start that a tiny tail piece is produced.
func chunkText(text string, maxChars int) []string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}

		cut := end
		if nl := lastNewline(runes[start:end]); nl > 1000 {
			cut = start + nl
		}

		chunks = append(chunks, string(runes[start:cut]))
		start = cut
	}
	return chunks
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}
