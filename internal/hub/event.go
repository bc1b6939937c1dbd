package hub

import (
	"time"

	"github.com/ai-band/orchestrator/internal/ws"
)

// Event is one notification to deliver to plugin sessions. Data is the wire
// payload; artifact events carry "filename" and "timestamp" keys, which the
// callback and file-drop transports pick out.
type Event struct {
	Type ws.MessageType
	Data map[string]any
}

// FileReadyEvent builds the notification for a single new artifact.
func FileReadyEvent(filename string, created time.Time) Event {
	return Event{
		Type: ws.MsgFilesReady,
		Data: map[string]any{
			"filename":  filename,
			"timestamp": unixSeconds(created),
		},
	}
}

// FilesGeneratedEvent builds the notification for a completed generation
// batch.
func FilesGeneratedEvent(files []string) Event {
	return Event{
		Type: ws.MsgFilesReady,
		Data: map[string]any{
			"files":     files,
			"timestamp": unixSeconds(time.Now()),
		},
	}
}

// TransportState is a playback position snapshot pushed to every active
// session.
type TransportState struct {
	IsPlaying   bool    `json:"is_playing"`
	CurrentBeat float64 `json:"current_beat"`
	Tempo       float64 `json:"tempo"`
	Timestamp   string  `json:"timestamp"`
}

func (e Event) filename() string {
	s, _ := e.Data["filename"].(string)
	return s
}

func (e Event) timestamp() float64 {
	switch v := e.Data["timestamp"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return unixSeconds(time.Now())
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
