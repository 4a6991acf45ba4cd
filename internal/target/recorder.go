package target

import (
	"io"
	"math"
	"sort"
	"sync"

	"github.com/leandrodaf/improv/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/smf"
)

// TicksPerBeat is the resolution of recorded files.
const TicksPerBeat = 960

type recorded struct {
	beat float64
	seq  int
	msg  []byte
}

// Recorder collects midi primitives on the beat clock and writes them as a Standard MIDI File.
type Recorder struct {
	mu     sync.Mutex
	tempo  float64
	events []recorded
	closed bool
}

// NewRecorder returns an empty recorder that tags the file with tempo.
func NewRecorder(tempo float64) *Recorder {
	return &Recorder{tempo: tempo}
}

func (r *Recorder) Send(out contracts.Output) error {
	if out.Kind != contracts.MidiOutput {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.events = append(r.events, recorded{beat: math.Max(out.Beat, 0), seq: len(r.events), msg: message(out)})
	return nil
}

// Len returns the number of recorded messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// SMF renders the recording as a single-track file.
func (r *Recorder) SMF() (*smf.SMF, error) {
	r.mu.Lock()
	events := append([]recorded(nil), r.events...)
	r.mu.Unlock()

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].beat != events[j].beat {
			return events[i].beat < events[j].beat
		}
		return events[i].seq < events[j].seq
	})

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerBeat)

	var tr smf.Track
	if r.tempo > 0 {
		tr.Add(0, smf.MetaTempo(r.tempo))
	}
	var last uint32
	for _, e := range events {
		tick := uint32(math.Round(e.beat * TicksPerBeat))
		tr.Add(tick-last, e.msg)
		last = tick
	}
	tr.Close(0)

	if err := s.Add(tr); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteTo writes the recording to w.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	s, err := r.SMF()
	if err != nil {
		return 0, err
	}
	return s.WriteTo(w)
}

// WriteFile writes the recording to path.
func (r *Recorder) WriteFile(path string) error {
	s, err := r.SMF()
	if err != nil {
		return err
	}
	return s.WriteFile(path)
}

// FileRecorder writes its recording to a fixed path on Close.
type FileRecorder struct {
	*Recorder
	path string
}

func NewFileRecorder(path string, tempo float64) *FileRecorder {
	return &FileRecorder{Recorder: NewRecorder(tempo), path: path}
}

func (f *FileRecorder) Path() string { return f.path }

// Close writes the file. Later sends fail with ErrClosed.
func (f *FileRecorder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()
	return f.WriteFile(f.path)
}
