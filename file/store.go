package file

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/opd-ai/wavlink/interfaces"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

const lockFileName = ".wavlink.lock"

// ValidatePath cleans a store-relative name and rejects names that are
// empty, absolute or that climb out of the store with "..".
func ValidatePath(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrInvalidFileName
	}

	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: %s is absolute", ErrInvalidFileName, name)
	}
	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return "", ErrDirectoryTraversal
		}
	}
	return cleaned, nil
}

// DirStore is an interfaces.IFileStore rooted at one directory.
type DirStore struct {
	root string

	// mu serializes appends so chunks from one writer stay in order.
	mu   sync.Mutex
	lock *flock.Flock
}

var _ interfaces.IFileStore = (*DirStore)(nil)

// NewDirStore opens root, creating it if needed.
func NewDirStore(root string) (*DirStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty store root", ErrInvalidFileName)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewDirStore",
		"root":     root,
	}).Debug("File store opened")

	return &DirStore{
		root: root,
		lock: flock.New(filepath.Join(root, lockFileName)),
	}, nil
}

// Root returns the store directory.
func (d *DirStore) Root() string {
	return d.root
}

// Path returns the on-disk path of name.
func (d *DirStore) Path(name string) (string, error) {
	cleaned, err := ValidatePath(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, cleaned), nil
}

// Exists implements interfaces.IFileStore.
func (d *DirStore) Exists(name string) bool {
	p, err := d.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Size returns the length of name in bytes.
func (d *DirStore) Size(name string) (int64, error) {
	p, err := d.Path(name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return 0, notFound(name, err)
	}
	return info.Size(), nil
}

// Open implements interfaces.IFileStore.
func (d *DirStore) Open(name string) (interfaces.IChunkReader, error) {
	p, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, notFound(name, err)
	}
	return &cursor{f: f}, nil
}

// Append implements interfaces.IFileStore.
func (d *DirStore) Append(name string, data []byte) error {
	p, err := d.Path(name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Reset implements interfaces.IFileStore. Resetting a missing file is a
// no-op.
func (d *DirStore) Reset(name string) error {
	p, err := d.Path(name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Digest returns the hex BLAKE2b-256 of name.
func (d *DirStore) Digest(name string) (string, error) {
	p, err := d.Path(name)
	if err != nil {
		return "", err
	}
	f, err := os.Open(p)
	if err != nil {
		return "", notFound(name, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Lock takes an exclusive lock on the store directory so that a second
// server cannot write uploads into it.
func (d *DirStore) Lock() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire store lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrStoreLocked, d.lock.Path())
	}
	return nil
}

// Unlock releases the directory lock.
func (d *DirStore) Unlock() error {
	return d.lock.Unlock()
}

func notFound(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return err
}

// cursor reads one open file in chunks.
type cursor struct {
	f *os.File
}

// ReadChunk implements interfaces.IChunkReader. The final chunk may be
// short; the call after it returns io.EOF.
func (c *cursor) ReadChunk(max int) ([]byte, error) {
	if max <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d", max)
	}
	buf := make([]byte, max)
	n, err := io.ReadFull(c.f, buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, io.EOF
	}
	return nil, err
}

func (c *cursor) Close() error {
	return c.f.Close()
}
