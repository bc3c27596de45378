package capture

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Grabber reads frames from a camera at the camera's FPS and puts them in
// a Latest mailbox.
type Grabber struct {
	cam     Camera
	out     *Latest
	log     logrus.FieldLogger
	backoff time.Duration

	seq      atomic.Uint64
	readErrs atomic.Uint64
}

// NewGrabber returns a grabber feeding out from cam.
func NewGrabber(cam Camera, out *Latest, log logrus.FieldLogger) *Grabber {
	return &Grabber{
		cam:     cam,
		out:     out,
		log:     log.WithField("component", "grabber"),
		backoff: 500 * time.Millisecond,
	}
}

// Run opens the camera and grabs until ctx is done or the source ends.
// The camera is closed on return. A finished stream returns nil.
func (g *Grabber) Run(ctx context.Context) error {
	if err := g.cam.Open(); err != nil {
		return err
	}
	defer g.cam.Close()

	fps := g.cam.FPS()
	ticker := time.NewTicker(interval(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if now := g.cam.FPS(); now != fps {
			fps = now
			ticker.Reset(interval(fps))
		}

		mat, err := g.cam.ReadFrame()
		if err != nil {
			if errors.Is(err, ErrEndOfStream) {
				g.log.Info("frame source ended")
				return nil
			}
			n := g.readErrs.Add(1)
			g.log.WithError(err).WithField("errors", n).Warn("frame read failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(g.backoff):
			}
			continue
		}

		g.out.Put(&Frame{
			Mat:        mat,
			Seq:        g.seq.Add(1),
			CapturedAt: time.Now(),
		})
	}
}

// Grabbed returns the number of frames delivered to the mailbox.
func (g *Grabber) Grabbed() uint64 {
	return g.seq.Load()
}

// ReadErrors returns the number of failed reads.
func (g *Grabber) ReadErrors() uint64 {
	return g.readErrs.Load()
}

func interval(fps int) time.Duration {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return time.Second / time.Duration(fps)
}
