package knowledge

import (
	"strings"
	"unicode/utf8"

	"midas/utils/text"
)

// MinChunkLength is the rune count a trimmed chunk must exceed to be kept.
const MinChunkLength = 20

// maxHeadingDepth is the deepest markdown heading that starts a new chunk.
const maxHeadingDepth = 3

// Chunk is one retrievable section of a knowledge file.
type Chunk struct {
	Content  string
	Source   string
	Keywords map[string]struct{}
}

// SplitDocument cuts content before every line that opens with one to three
// '#' characters and a space. Chunks are trimmed and short ones dropped.
func SplitDocument(content, source string) []Chunk {
	var (
		chunks  []Chunk
		section []string
	)
	flush := func() {
		body := strings.TrimSpace(strings.Join(section, "\n"))
		section = section[:0]
		if utf8.RuneCountInString(body) <= MinChunkLength {
			return
		}
		chunks = append(chunks, Chunk{
			Content:  body,
			Source:   source,
			Keywords: text.Keywords(body),
		})
	}

	for i, line := range strings.Split(content, "\n") {
		if i > 0 && isHeading(line) {
			flush()
		}
		section = append(section, line)
	}
	flush()
	return chunks
}

func isHeading(line string) bool {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	return n >= 1 && n <= maxHeadingDepth && n < len(line) && line[n] == ' '
}
