package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Activity meter constants.
const (
	// ActivityBlurSize is the Gaussian kernel applied before differencing.
	ActivityBlurSize = 21
	// ActivityPixelDelta is the per-pixel change counted as activity.
	ActivityPixelDelta = 25
	// activityWidth is the width frames are reduced to before measuring.
	activityWidth = 160
)

// Activity measures how much of the scene changed between consecutive
// frames. The app uses it to pick between idle and active frame rates.
type Activity struct {
	mu         sync.Mutex
	threshold  float64
	prev       gocv.Mat
	primed     bool
	lastActive time.Time
	now        func() time.Time
}

// NewActivity returns a meter that reports activity when more than
// threshold percent of pixels change.
func NewActivity(threshold float64) *Activity {
	return &Activity{
		threshold: threshold,
		prev:      gocv.NewMat(),
		now:       time.Now,
	}
}

// Measure compares frame with the previous one. It returns whether the
// change exceeds the threshold and the percentage of changed pixels. The
// first frame only primes the meter.
func (a *Activity) Measure(frame *gocv.Mat) (bool, float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	small := gocv.NewMat()
	defer small.Close()
	if gray.Cols() > activityWidth {
		h := gray.Rows() * activityWidth / gray.Cols()
		if h < 1 {
			h = 1
		}
		gocv.Resize(gray, &small, image.Pt(activityWidth, h), 0, 0, gocv.InterpolationArea)
	} else {
		gray.CopyTo(&small)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(small, &blurred, image.Pt(ActivityBlurSize, ActivityBlurSize), 0, 0, gocv.BorderDefault)

	if !a.primed || a.prev.Rows() != blurred.Rows() || a.prev.Cols() != blurred.Cols() {
		blurred.CopyTo(&a.prev)
		a.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, a.prev, &diff)
	gocv.Threshold(diff, &diff, ActivityPixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	blurred.CopyTo(&a.prev)

	active := changed > a.threshold
	if active {
		a.lastActive = a.now()
	}
	return active, changed
}

// IdleFor returns the time since the last active frame, or a very large
// duration if there has been none.
func (a *Activity) IdleFor() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastActive.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return a.now().Sub(a.lastActive)
}

// SetThreshold ignores values <= 0.
func (a *Activity) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.threshold = threshold
}

// Reset forgets the previous frame.
func (a *Activity) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.primed = false
	a.lastActive = time.Time{}
}

// Close releases the stored frame.
func (a *Activity) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prev.Close()
	a.prev = gocv.NewMat()
	a.primed = false
}
