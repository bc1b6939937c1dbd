package generator

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMockGenerate(t *testing.T) {
	dir := t.TempDir()
	m := NewMock(dir, 0)

	res := m.Generate(context.Background(), Request{
		Progression: Progression{
			Chords: []Chord{
				{Chord: "C", StartTime: 0, Duration: 2},
				{Chord: "G", StartTime: 2, Duration: 2},
			},
			Tempo: 120,
			Key:   "C",
		},
		TrackTypes: []string{"bass", "drums"},
	})

	if !res.Success {
		t.Fatalf("Generate failed: %s", res.Error)
	}
	want := []string{
		"mock_bass_120bpm_C_2chords.mid",
		"mock_drums_120bpm_C_2chords.mid",
	}
	if len(res.Files) != len(want) {
		t.Fatalf("got %d files %v, want %d", len(res.Files), res.Files, len(want))
	}
	for i, name := range want {
		if res.Files[i] != name {
			t.Errorf("files[%d] = %s, want %s", i, res.Files[i], name)
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("generated file missing: %v", err)
		}
		if !bytes.HasPrefix(data, []byte("MThd")) {
			t.Errorf("%s is not a MIDI file", name)
		}
	}

	if res.Metadata["chord_count"] != 2 || res.Metadata["mock_mode"] != true {
		t.Errorf("unexpected metadata: %+v", res.Metadata)
	}
	if res.Metadata["job_id"] == "" {
		t.Error("metadata missing job id")
	}
}

func TestMockGenerateDefaults(t *testing.T) {
	dir := t.TempDir()
	m := NewMock(dir, 0)

	res := m.Generate(context.Background(), Request{})
	if !res.Success {
		t.Fatalf("Generate failed: %s", res.Error)
	}
	// Empty request falls back to 120bpm C bass+drums.
	if res.Files[0] != "mock_bass_120bpm_C_0chords.mid" {
		t.Errorf("files[0] = %s", res.Files[0])
	}
	if res.Metadata["tempo"] != 120 || res.Metadata["key"] != "C" {
		t.Errorf("defaults not applied: %+v", res.Metadata)
	}
}

func TestMockGenerateCancelled(t *testing.T) {
	dir := t.TempDir()
	m := NewMock(dir, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := m.Generate(ctx, Request{})
	if res.Success {
		t.Fatal("cancelled generation reported success")
	}
	if res.Error == "" {
		t.Error("cancelled generation has no error")
	}
}
