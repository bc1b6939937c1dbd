package generator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Mock writes small placeholder MIDI files instead of calling the real
// generation backend. Filenames follow the backend's naming scheme so the
// rest of the pipeline (watcher, notifications, downloads) behaves the same.
type Mock struct {
	outDir string
	delay  time.Duration
}

func NewMock(outDir string, delay time.Duration) *Mock {
	return &Mock{outDir: outDir, delay: delay}
}

func (m *Mock) Generate(ctx context.Context, req Request) Result {
	req = withDefaults(req)
	jobID := uuid.NewString()
	log.Printf("generation %s: %d chords, tempo %d, key %s, tracks %v",
		jobID, len(req.Progression.Chords), req.Progression.Tempo,
		req.Progression.Key, req.TrackTypes)

	// Simulated backend latency.
	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		return Result{Error: ctx.Err().Error(), Metadata: map[string]any{}, Files: []string{}}
	}

	var files []string
	for _, trackType := range req.TrackTypes {
		filename := fmt.Sprintf("mock_%s_%dbpm_%s_%dchords.mid",
			trackType, req.Progression.Tempo, req.Progression.Key,
			len(req.Progression.Chords))
		path := filepath.Join(m.outDir, filename)
		if err := os.WriteFile(path, mockMIDI(), 0o644); err != nil {
			log.Printf("generation %s: writing %s: %v", jobID, filename, err)
			return Result{
				Error:    fmt.Sprintf("writing %s: %v", filename, err),
				Files:    files,
				Metadata: map[string]any{},
			}
		}
		files = append(files, filename)
	}

	log.Printf("generation %s: wrote %d tracks", jobID, len(files))
	return Result{
		Success: true,
		Files:   files,
		Metadata: map[string]any{
			"job_id":      jobID,
			"tempo":       req.Progression.Tempo,
			"key":         req.Progression.Key,
			"duration":    req.Progression.Duration,
			"chord_count": len(req.Progression.Chords),
			"mock_mode":   true,
		},
	}
}

// mockMIDI returns a minimal but structurally valid single-track MIDI file.
func mockMIDI() []byte {
	return []byte{
		// MThd chunk: format 1, 2 tracks, 480 ticks per quarter
		0x4D, 0x54, 0x68, 0x64,
		0x00, 0x00, 0x00, 0x06,
		0x00, 0x01,
		0x00, 0x02,
		0x01, 0xE0,
		// MTrk chunk: C4 on/off, end of track
		0x4D, 0x54, 0x72, 0x6B,
		0x00, 0x00, 0x00, 0x0B,
		0x00, 0x90, 0x3C, 0x64,
		0x60, 0x80, 0x3C, 0x64,
		0x00, 0xFF, 0x2F, 0x00,
	}
}
