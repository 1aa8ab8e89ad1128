package transcoder

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var timePattern = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)

// tailBuffer keeps the last lines ffmpeg wrote to stderr and the latest
// encoded position from its progress lines. Progress lines end in \r, so
// both \r and \n terminate a line.
type tailBuffer struct {
	mu       sync.Mutex
	max      int
	lines    []string
	partial  strings.Builder
	position float64
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 1
	}
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range p {
		if c == '\n' || c == '\r' {
			b.flush()
			continue
		}
		b.partial.WriteByte(c)
	}
	return len(p), nil
}

// flush must be called with mu held.
func (b *tailBuffer) flush() {
	line := strings.TrimSpace(b.partial.String())
	b.partial.Reset()
	if line == "" {
		return
	}

	if m := timePattern.FindStringSubmatch(line); m != nil {
		h, _ := strconv.ParseFloat(m[1], 64)
		mins, _ := strconv.ParseFloat(m[2], 64)
		sec, _ := strconv.ParseFloat(m[3], 64)
		b.position = h*3600 + mins*60 + sec
	}

	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

// Position returns the last reported media position in seconds.
func (b *tailBuffer) Position() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

// Last returns the final non-empty line, including an unterminated one.
func (b *tailBuffer) Last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s := strings.TrimSpace(b.partial.String()); s != "" {
		return s
	}
	if len(b.lines) == 0 {
		return ""
	}
	return b.lines[len(b.lines)-1]
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := strings.Join(b.lines, "\n")
	if s := strings.TrimSpace(b.partial.String()); s != "" {
		if out != "" {
			out += "\n"
		}
		out += s
	}
	return out
}
