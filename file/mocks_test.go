package file

import (
	"io"
	"sync"
	"time"

	"github.com/opd-ai/wavlink/interfaces"
)

// fixedClock returns a deterministic time for status messages.
func fixedClock() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

// memStore is an in-memory interfaces.IFileStore that records the size of
// every chunk handed out by its cursors.
type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
	reads []int
}

var _ interfaces.IFileStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (m *memStore) put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
}

func (m *memStore) get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return append([]byte(nil), data...), ok
}

func (m *memStore) chunkSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.reads...)
}

func (m *memStore) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok
}

func (m *memStore) Open(name string) (interfaces.IChunkReader, error) {
	data, ok := m.get(name)
	if !ok {
		return nil, ErrFileNotFound
	}
	return &memCursor{store: m, data: data}, nil
}

func (m *memStore) Append(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append(m.files[name], data...)
	return nil
}

func (m *memStore) Reset(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	return nil
}

type memCursor struct {
	store *memStore
	data  []byte
	pos   int
}

func (c *memCursor) ReadChunk(max int) ([]byte, error) {
	if c.pos >= len(c.data) {
		return nil, io.EOF
	}
	n := min(max, len(c.data)-c.pos)
	chunk := c.data[c.pos : c.pos+n]
	c.pos += n

	c.store.mu.Lock()
	c.store.reads = append(c.store.reads, n)
	c.store.mu.Unlock()
	return chunk, nil
}

func (c *memCursor) Close() error {
	return nil
}

// pattern returns n deterministic, non-repeating-looking bytes.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}
