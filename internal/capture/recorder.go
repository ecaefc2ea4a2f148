package capture

import (
	"context"
	"errors"
	"sync"

	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/snapshot"
	"github.com/san-kum/cosim/internal/storage"
)

var (
	ErrRecording    = errors.New("capture: already recording")
	ErrNotRecording = errors.New("capture: not recording")
)

// Recorder keeps the frames seen between StartRecording and StopRecording.
// It runs in its own consumer goroutine and never touches scene state.
type Recorder struct {
	mu        sync.Mutex
	meta      storage.RunMetadata
	every     uint64
	recording bool
	frames    []*snapshot.Frame
	// epoch counts StartRecording calls
	epoch uint64
}

// NewRecorder keeps every n-th published frame; n < 1 keeps all of them.
func NewRecorder(meta storage.RunMetadata, every int) *Recorder {
	if every < 1 {
		every = 1
	}
	return &Recorder{meta: meta, every: uint64(every)}
}

func (r *Recorder) StartRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return ErrRecording
	}
	r.recording = true
	r.frames = nil
	r.epoch++
	return nil
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Annotate attaches run metrics to the next write.
func (r *Recorder) Annotate(metrics map[string]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meta.Metrics = metrics
}

// Observe offers one frame to the recorder.
func (r *Recorder) Observe(f *snapshot.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || f.Step%r.every != 0 {
		return
	}
	if n := len(r.frames); n > 0 && r.frames[n-1].Generation == f.Generation {
		return
	}
	r.frames = append(r.frames, f)
}

// Consume follows the publisher until it closes or ctx ends. Both are a
// normal end of recording input.
func (r *Recorder) Consume(ctx context.Context, pub *snapshot.Publisher) error {
	var gen uint64
	for {
		f, err := pub.Next(ctx, gen)
		switch {
		case err == nil:
			r.Observe(f)
			gen = f.Generation
		case errors.Is(err, dynamo.ErrStopped):
			if f != nil && f.Generation > gen {
				r.Observe(f)
			}
			return nil
		case errors.Is(err, dynamo.ErrNoSnapshot), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			return err
		}
	}
}

// StopRecording writes the bracketed frames to dest and returns the run
// id. A .gif or .svg destination is rendered through the first camera
// instead of stored. Write failures go back to the caller; the frames are
// kept so the call can be retried with another destination.
func (r *Recorder) StopRecording(dest string) (string, error) {
	rec, epoch, err := r.detach()
	if err != nil {
		return "", err
	}

	var id string
	switch {
	case isGIF(dest), isSVG(dest):
		if id = rec.Meta.ID; id == "" {
			id = storage.NewID(rec.Meta.Scenario)
		}
		if isGIF(dest) {
			err = WriteGIF(dest, rec.Frames, 0)
		} else {
			err = WriteSVG(dest, rec.Frames, 0)
		}
	default:
		id, err = storage.Write(dest, rec)
	}
	if err != nil {
		return "", err
	}
	r.release(epoch)
	return id, nil
}

// detach ends the recording and hands out its frames with the epoch they
// belong to. The recorder keeps them until release.
func (r *Recorder) detach() (*storage.Recording, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording && r.frames == nil {
		return nil, 0, ErrNotRecording
	}
	r.recording = false
	return &storage.Recording{Meta: r.meta, Frames: r.frames}, r.epoch, nil
}

// release drops written frames unless a newer recording has started.
func (r *Recorder) release(epoch uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.epoch == epoch {
		r.frames = nil
	}
}
