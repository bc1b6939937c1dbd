package generator

import (
	"context"
)

// Chord is one chord occurrence in a progression.
type Chord struct {
	Chord     string  `json:"chord"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
}

// Progression is the musical input for a generation run.
type Progression struct {
	Chords   []Chord `json:"chords"`
	Tempo    int     `json:"tempo"`
	Key      string  `json:"key"`
	Duration float64 `json:"duration"`
}

// Request asks the generator for accompaniment tracks.
type Request struct {
	Progression Progression `json:"chord_progression"`
	TrackTypes  []string    `json:"track_types"`
	PluginID    string      `json:"plugin_id"`
}

// Result is the outcome of one generation run. Generation failures are
// carried in Error and surfaced verbatim to whoever asked; the hub never
// retries.
type Result struct {
	Success  bool           `json:"success"`
	Files    []string       `json:"files"`
	Metadata map[string]any `json:"metadata"`
	Error    string         `json:"error,omitempty"`
}

// Generator is the external track-generation capability. Calls may take a
// while; implementations must honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, req Request) Result
}

// withDefaults fills the conventional defaults for omitted request fields.
func withDefaults(req Request) Request {
	if req.Progression.Tempo == 0 {
		req.Progression.Tempo = 120
	}
	if req.Progression.Key == "" {
		req.Progression.Key = "C"
	}
	if req.Progression.Duration == 0 {
		req.Progression.Duration = 32
	}
	if len(req.TrackTypes) == 0 {
		req.TrackTypes = []string{"bass", "drums"}
	}
	return req
}
