package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// chunker accumulates generated text until it ends on a break word and is
// long enough to be worth synthesizing.
type chunker struct {
	breakWords []string
	minLength  int
	buffer     strings.Builder
}

func newChunker(cfg ChatConfig) *chunker {
	return &chunker{breakWords: cfg.BreakWords, minLength: cfg.MinFlushLength}
}

// Push appends a token and returns the buffered text when it is ready to flush.
func (c *chunker) Push(token string) (string, bool) {
	c.buffer.WriteString(token)
	buffered := c.buffer.String()
	if utf8.RuneCountInString(buffered) <= c.minLength || !c.endsOnBreak(buffered) {
		return "", false
	}
	c.buffer.Reset()
	return buffered, true
}

// Drain returns whatever non-blank text is left at the end of the stream.
func (c *chunker) Drain() (string, bool) {
	buffered := c.buffer.String()
	c.buffer.Reset()
	if strings.TrimSpace(buffered) == "" {
		return "", false
	}
	return buffered, true
}

func (c *chunker) endsOnBreak(s string) bool {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	for _, w := range c.breakWords {
		if strings.HasSuffix(s, w) {
			return true
		}
	}
	return false
}
