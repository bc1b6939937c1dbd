package hub

import (
	"encoding/json"
)

// fileReadyPayload is the HTTP callback body for artifact notifications.
type fileReadyPayload struct {
	Type      string  `json:"type"`
	Filename  string  `json:"filename"`
	Timestamp float64 `json:"timestamp"`
}

func encodeFileReady(filename string, ts float64) ([]byte, error) {
	return json.Marshal(fileReadyPayload{
		Type:      "file_ready",
		Filename:  filename,
		Timestamp: ts,
	})
}
