// Package diag records read-only simulation state and renders it into
// snapshot images for inspection.
package diag

import (
	"sort"
	"sync"

	"charattach/internal/mathutil"
	"charattach/internal/simulation"
)

// Stat summarizes one socket or row over a run.
type Stat struct {
	Name          string  `json:"name"`
	Kind          string  `json:"kind"` // clamp type, or "row"
	Updates       int     `json:"updates"`
	MaxDeflection float64 `json:"max_deflection_deg"`
	SetupError    string  `json:"setup_error,omitempty"`
}

// Recorder implements simulation.Observer. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	sockets map[string]simulation.SocketState
	rows    map[string]simulation.RowState
	stats   map[string]*Stat
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		sockets: make(map[string]simulation.SocketState),
		rows:    make(map[string]simulation.RowState),
		stats:   make(map[string]*Stat),
	}
}

func (r *Recorder) stat(name, kind string) *Stat {
	s, ok := r.stats[name]
	if !ok {
		s = &Stat{Name: name, Kind: kind}
		r.stats[name] = s
	}
	return s
}

// ObserveSocket stores the latest socket state.
func (r *Recorder) ObserveSocket(name string, st simulation.SocketState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sockets[name] = st
	s := r.stat(name, st.Clamp.String())
	s.Updates++
	if st.SetupError != "" {
		s.SetupError = st.SetupError
	}
	if d := deflection(st.Pivot, st.Rest, st.Bob); d > s.MaxDeflection {
		s.MaxDeflection = d
	}
}

// ObserveRow stores a copy of the latest row state.
func (r *Recorder) ObserveRow(name string, st simulation.RowState) {
	st.Particles = append([]simulation.ParticleState(nil), st.Particles...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[name] = st
	s := r.stat(name, "row")
	s.Updates++
	if st.SetupError != "" {
		s.SetupError = st.SetupError
	}
}

// Socket returns the latest state of a socket.
func (r *Recorder) Socket(name string) (simulation.SocketState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sockets[name]
	return st, ok
}

// Row returns the latest state of a row.
func (r *Recorder) Row(name string) (simulation.RowState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.rows[name]
	return st, ok
}

// Sockets returns the latest socket states, sorted by name.
func (r *Recorder) Sockets() []NamedSocket {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NamedSocket, 0, len(r.sockets))
	for n, st := range r.sockets {
		out = append(out, NamedSocket{Name: n, State: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Rows returns the latest row states, sorted by name.
func (r *Recorder) Rows() []NamedRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NamedRow, 0, len(r.rows))
	for n, st := range r.rows {
		out = append(out, NamedRow{Name: n, State: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stats returns the run summary, sorted by name.
func (r *Recorder) Stats() []Stat {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stat, 0, len(r.stats))
	for _, s := range r.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NamedSocket pairs a socket state with its attachment name.
type NamedSocket struct {
	Name  string
	State simulation.SocketState
}

// NamedRow pairs a row state with its attachment name.
type NamedRow struct {
	Name  string
	State simulation.RowState
}

// deflection is the angle in degrees between the rest and simulated rod.
func deflection(pivot, rest, bob mathutil.Vec3) float64 {
	a, b := rest.Sub(pivot), bob.Sub(pivot)
	if a.Len() < 1e-9 || b.Len() < 1e-9 {
		return 0
	}
	return mathutil.Rad2Deg(mathutil.AngleBetween(a, b))
}
