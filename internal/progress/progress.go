package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Bar is a single line terminal progress bar. A nil *Bar is valid and does
// nothing.
type Bar struct {
	label      string
	total      int64
	current    int64
	width      int
	writer     io.Writer
	mu         sync.Mutex
	recent     []string
	lastUpdate time.Time
}

// New returns a bar writing to w, or nil when w is nil.
func New(label string, total int64, w io.Writer) *Bar {
	if w == nil {
		return nil
	}
	return &Bar{
		label:      label,
		total:      total,
		width:      40,
		writer:     w,
		lastUpdate: time.Now(),
	}
}

// Stdout returns os.Stdout when it is a terminal and nil otherwise, for
// passing to New.
func Stdout() io.Writer {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return nil
	}
	// Check if stdout is a terminal (character device)
	if fileInfo.Mode()&os.ModeCharDevice == 0 {
		return nil
	}
	return os.Stdout
}

// SetDirectory shows dir next to the bar, keeping the last three.
func (b *Bar) SetDirectory(dir string) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	name := filepath.Base(dir)
	for _, r := range b.recent {
		if r == name {
			return
		}
	}
	b.recent = append(b.recent, name)
	if len(b.recent) > 3 {
		b.recent = b.recent[1:]
	}
}

func (b *Bar) Increment() {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.current++

	// Update at most every 100ms to reduce flickering
	now := time.Now()
	if now.Sub(b.lastUpdate) > 100*time.Millisecond || b.current == b.total {
		b.lastUpdate = now
		b.render()
	}
}

// render must be called with mu already locked
func (b *Bar) render() {
	if b.total == 0 {
		return
	}

	current := min(b.current, b.total)
	percent := float64(current) / float64(b.total) * 100
	filledWidth := int(float64(b.width) * float64(current) / float64(b.total))

	bar := strings.Repeat("█", filledWidth) + strings.Repeat("░", b.width-filledWidth)

	var dirDisplay string
	if len(b.recent) > 0 {
		dirDisplay = " | " + strings.Join(b.recent, ", ")
	}

	// Clear the line and write progress
	fmt.Fprintf(b.writer, "\r\033[K%s [%s] %3d%% (%d/%d)%s",
		b.label, bar, int(percent), b.current, b.total, dirDisplay)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = b.total
	b.render()
	fmt.Fprintf(b.writer, "\n")
}
