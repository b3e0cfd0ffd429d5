package viseme

import (
	"sync"
	"time"
)

// DefaultFPS is the frame rate of a Driver.
const DefaultFPS = 60

// Driver ticks a Synthesizer on a frame clock and publishes each value.
type Driver struct {
	synth    *Synthesizer
	interval time.Duration
	publish  func(float64)

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
	last   Mode
}

// NewDriver creates a driver. fps <= 0 uses DefaultFPS.
func NewDriver(s *Synthesizer, fps int, publish func(float64)) *Driver {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if publish == nil {
		publish = func(float64) {}
	}
	return &Driver{
		synth:    s,
		interval: time.Second / time.Duration(fps),
		publish:  publish,
	}
}

// Start begins a line, stopping any previous one first.
func (d *Driver) Start(src Source, estimate time.Duration) {
	d.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.synth.Start(src, estimate)
	d.last = d.synth.Mode()
	d.stopCh = make(chan struct{})
	d.wg.Add(1)
	go d.loop(d.stopCh)
}

// Stop ends the line, waits for the frame loop to exit and publishes a
// closed mouth.
func (d *Driver) Stop() {
	d.mu.Lock()
	stopCh := d.stopCh
	d.stopCh = nil
	d.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	d.wg.Wait()
	d.synth.Stop()
	d.publish(0)
}

// LastMode reports what drove the most recent line. A line that lost its
// audio analysis part way through reports ModePattern.
func (d *Driver) LastMode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Running reports whether a frame loop is active.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopCh != nil
}

func (d *Driver) loop(stopCh chan struct{}) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			v := d.synth.Tick()
			if m := d.synth.Mode(); m != ModeStopped {
				d.mu.Lock()
				d.last = m
				d.mu.Unlock()
			}
			d.publish(v)
		}
	}
}
