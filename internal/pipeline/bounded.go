package pipeline

import (
	"fmt"
	"sync"
)

// maxStderrBytes caps retained diagnostic text per stage so a noisy tool
// cannot grow memory without bound.
const maxStderrBytes = 64 * 1024

// boundedBuffer is an io.Writer that retains at most max bytes and counts
// what it discarded beyond that.
type boundedBuffer struct {
	mu        sync.Mutex
	max       int
	buf       []byte
	discarded int64
}

func newBoundedBuffer(max int) *boundedBuffer {
	return &boundedBuffer{max: max}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.max - len(b.buf)
	if room > len(p) {
		room = len(p)
	}
	if room > 0 {
		b.buf = append(b.buf, p[:room]...)
	}
	b.discarded += int64(len(p) - room)
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.discarded > 0 {
		return fmt.Sprintf("%s\n[truncated %d bytes]", b.buf, b.discarded)
	}
	return string(b.buf)
}
