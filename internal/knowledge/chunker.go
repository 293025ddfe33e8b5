package knowledge

import "strings"

// splitText splits content into chunks of roughly targetRunes runes,
// preferring paragraph boundaries, then sentence boundaries, then a hard
// cut. Whitespace-only fragments are dropped.
func splitText(content string, targetRunes int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len([]rune(content)) <= targetRunes {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			chunks = append(chunks, text)
		}
		current.Reset()
		currentLen = 0
	}

	for _, para := range strings.Split(content, "\n\n") {
		paraLen := len([]rune(para))

		// Oversized paragraph: cut it on its own.
		if paraLen > targetRunes {
			flush()
			for _, piece := range hardSplit(para, targetRunes) {
				chunks = append(chunks, piece)
			}
			continue
		}

		if currentLen > 0 && currentLen+paraLen > targetRunes {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(para)
		currentLen += paraLen
	}
	flush()

	return chunks
}

// hardSplit cuts text into pieces of at most targetRunes runes, breaking at
// sentence ends or spaces where one falls in the second half of a piece.
func hardSplit(text string, targetRunes int) []string {
	var pieces []string
	runes := []rune(text)

	for len(runes) > 0 {
		if len(runes) <= targetRunes {
			if piece := strings.TrimSpace(string(runes)); piece != "" {
				pieces = append(pieces, piece)
			}
			break
		}

		cut := targetRunes
		window := string(runes[:targetRunes])
		if idx := strings.LastIndexAny(window, ".!?"); idx > targetRunes/2 {
			cut = len([]rune(window[:idx+1]))
		} else if idx := strings.LastIndex(window, " "); idx > targetRunes/2 {
			cut = len([]rune(window[:idx]))
		}

		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			pieces = append(pieces, piece)
		}
		runes = runes[cut:]
	}

	return pieces
}
