package selection

import (
	"math/rand"
	"sync"

	"github.com/WullT/P8-Tools/internal/datastore"
)

// Cursor walks a selection the way the image browser does. Moving past
// either end wraps: forward past the last image lands on the first,
// backward before the first lands on the last.
type Cursor struct {
	mu     sync.Mutex
	images []datastore.ImageRecord
	index  int
	intn   func(n int) int
}

// NewCursor positions a cursor on the first image of result
func NewCursor(result Result) *Cursor {
	return &Cursor{images: result.Images, intn: rand.Intn}
}

// Len returns the number of images under the cursor
func (c *Cursor) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

// Index returns the current position
func (c *Cursor) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Reset replaces the images and moves to the first one
func (c *Cursor) Reset(result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = result.Images
	c.index = 0
}

func (c *Cursor) current() (datastore.ImageRecord, bool) {
	if c.index < 0 || c.index >= len(c.images) {
		return datastore.ImageRecord{}, false
	}
	return c.images[c.index], true
}

// Current returns the image at the cursor; ok is false for an empty selection
func (c *Cursor) Current() (datastore.ImageRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current()
}

// First moves to the first image
func (c *Cursor) First() (datastore.ImageRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
	return c.current()
}

// Next moves one image forward
func (c *Cursor) Next() (datastore.ImageRecord, bool) {
	return c.Skip(1)
}

// Prev moves one image backward
func (c *Cursor) Prev() (datastore.ImageRecord, bool) {
	return c.Skip(-1)
}

// Skip moves n images forward, or backward for negative n. Overshooting the
// end lands on the first image, undershooting the start on the last.
func (c *Cursor) Skip(n int) (datastore.ImageRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.images) == 0 {
		return datastore.ImageRecord{}, false
	}
	c.index += n
	switch {
	case c.index >= len(c.images):
		c.index = 0
	case c.index < 0:
		c.index = len(c.images) - 1
	}
	return c.current()
}

// Random moves to a uniformly chosen image
func (c *Cursor) Random() (datastore.ImageRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.images) == 0 {
		return datastore.ImageRecord{}, false
	}
	c.index = c.intn(len(c.images))
	return c.current()
}

// Seek moves to the image named filename. The cursor stays put when the
// filename is not part of the selection.
func (c *Cursor) Seek(filename string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.images {
		if c.images[i].Filename == filename {
			c.index = i
			return true
		}
	}
	return false
}
