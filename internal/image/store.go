// internal/image/store.go
package image

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// ErrNoImage: nothing has been loaded yet.
var ErrNoImage = errors.New("image: no image loaded")

// MaxSize bounds an image to the largest addressable token.
const MaxSize = 1 << 24

// Image is one immutable loaded programming image.
type Image struct {
	Path     string
	Data     []byte
	Sum      string // sha256, hex
	LoadedAt time.Time
}

// Short returns the first 12 hex digits of the checksum.
func (i *Image) Short() string {
	if len(i.Sum) < 12 {
		return i.Sum
	}
	return i.Sum[:12]
}

// Store holds the current image. Readers get the image as it was when they
// asked; a reload never changes data under a running job.
type Store struct {
	mu  sync.RWMutex
	cur *Image
}

func NewStore() *Store {
	return &Store{}
}

// Load reads path and makes it current. On error the previous image stays.
func (s *Store) Load(path string) (*Image, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("image: %s is a directory", path)
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("image: %s is empty", path)
	}
	if fi.Size() > MaxSize {
		return nil, fmt.Errorf("image: %s is %d bytes (max %d)", path, fi.Size(), MaxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}

	sum := sha256.Sum256(data)
	img := &Image{
		Path:     path,
		Data:     data,
		Sum:      hex.EncodeToString(sum[:]),
		LoadedAt: time.Now(),
	}

	s.mu.Lock()
	s.cur = img
	s.mu.Unlock()
	return img, nil
}

// Current returns the loaded image or ErrNoImage.
func (s *Store) Current() (*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return nil, ErrNoImage
	}
	return s.cur, nil
}
