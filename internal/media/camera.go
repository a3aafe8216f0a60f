package media

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// camera drains an MJPEG byte stream and keeps the most recent complete
// frame. The source is typically a V4L2 device or a pipe carrying
// concatenated JPEGs.
type camera struct {
	src io.ReadCloser

	mu     sync.RWMutex
	latest []byte
	closed bool
	done   chan struct{}
}

func openCamera(path string) (*camera, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open camera source %s: %w", path, err)
	}
	return newCamera(src), nil
}

func newCamera(src io.ReadCloser) *camera {
	c := &camera{
		src:  src,
		done: make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *camera) run() {
	defer close(c.done)

	scanner := NewMJPEGScanner()
	chunk := make([]byte, 64<<10)

	for {
		n, err := c.src.Read(chunk)
		if n > 0 {
			for _, frame := range scanner.Scan(chunk[:n]) {
				c.mu.Lock()
				c.latest = frame
				c.mu.Unlock()
			}
		}
		if err != nil {
			if err != io.EOF && !c.isClosed() {
				log.Printf("[media] camera stream ended: %v", err)
			}
			return
		}
	}
}

func (c *camera) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Frame returns the most recent complete frame, or nil when none has
// arrived yet.
func (c *camera) Frame() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

func (c *camera) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.src.Close()
	<-c.done
}
