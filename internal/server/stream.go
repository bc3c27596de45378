package server

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Frames holds the newest annotated JPEG for the MJPEG stream.
type Frames struct {
	mu       sync.Mutex
	jpeg     []byte
	updated  chan struct{}
	watchers atomic.Int32
}

// NewFrames returns an empty frame holder.
func NewFrames() *Frames {
	return &Frames{updated: make(chan struct{})}
}

// Watching reports whether any stream client is connected.
func (f *Frames) Watching() bool {
	return f.watchers.Load() > 0
}

// Publish replaces the current frame and wakes waiting streams.
func (f *Frames) Publish(jpeg []byte) {
	f.mu.Lock()
	f.jpeg = jpeg
	close(f.updated)
	f.updated = make(chan struct{})
	f.mu.Unlock()
}

// next returns the current frame and a channel closed on the next Publish.
func (f *Frames) next() ([]byte, <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jpeg, f.updated
}

// StreamHandler serves Frames as multipart MJPEG.
type StreamHandler struct {
	frames *Frames
	// idle bounds how long a stream waits for a new frame before it
	// re-sends the last one, keeping proxies from timing out.
	idle time.Duration
}

// NewStreamHandler returns an MJPEG handler for frames.
func NewStreamHandler(frames *Frames) *StreamHandler {
	return &StreamHandler{frames: frames, idle: 2 * time.Second}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.frames.watchers.Add(1)
	defer h.frames.watchers.Add(-1)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	timer := time.NewTimer(h.idle)
	defer timer.Stop()

	for {
		jpeg, updated := h.frames.next()
		if len(jpeg) > 0 {
			if err := writePart(w, jpeg); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}

		timer.Reset(h.idle)
		select {
		case <-r.Context().Done():
			return
		case <-updated:
		case <-timer.C:
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
