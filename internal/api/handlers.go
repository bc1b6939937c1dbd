package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ai-band/orchestrator/internal/files"
	"github.com/ai-band/orchestrator/internal/generator"
	"github.com/ai-band/orchestrator/internal/hub"
	"github.com/ai-band/orchestrator/internal/ws"
)

// registerBody is the session registration payload. http_endpoint is the
// plugin's callback base URL, matching the key plugins already send.
type registerBody struct {
	Metadata     map[string]string `json:"metadata"`
	HTTPEndpoint string            `json:"http_endpoint"`
}

type generateResponse struct {
	Success  bool           `json:"success"`
	Files    []string       `json:"files"`
	Metadata map[string]any `json:"metadata"`
	Message  string         `json:"message"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid generation request: "+err.Error())
		return
	}

	log.Printf("generation request from plugin %s", req.PluginID)
	res := s.gen.Generate(r.Context(), req)
	if !res.Success {
		writeError(w, http.StatusInternalServerError, res.Error)
		return
	}

	if len(res.Files) > 0 {
		if err := s.files.SaveMetadata(res.Files[0], res.Metadata); err != nil {
			log.Printf("saving generation metadata: %v", err)
		}
	}

	// Tell the requesting plugin its tracks are ready; the file watcher will
	// separately announce each artifact to everyone.
	if req.PluginID != "" {
		s.hub.Dispatch(req.PluginID, hub.FilesGeneratedEvent(res.Files))
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Success:  true,
		Files:    res.Files,
		Metadata: res.Metadata,
		Message:  "Tracks generated successfully",
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	infos, err := s.files.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": infos})
}

func (s *Server) handleDiskUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.files.DiskUsage()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	path, err := s.files.Path(filename)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if err := s.files.Delete(filename); err != nil {
		if errors.Is(err, files.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "File " + filename + " deleted successfully",
	})
}

func (s *Server) handleTransportSync(w http.ResponseWriter, r *http.Request) {
	var state hub.TransportState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transport state: "+err.Error())
		return
	}
	n := s.hub.SyncTransport(state)
	writeJSON(w, http.StatusOK, map[string]int{"synced_plugins": n})
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var msg struct {
		Type ws.MessageType `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil || msg.Type == "" {
		writeError(w, http.StatusBadRequest, "invalid event")
		return
	}
	n := s.hub.Broadcast(hub.Event{Type: msg.Type, Data: msg.Data})
	writeJSON(w, http.StatusOK, map[string]int{"attempted": n})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.registry.GetAll()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Stats())
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body registerBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid registration: "+err.Error())
			return
		}
	}
	s.registry.Register(id, body.Metadata, body.HTTPEndpoint)
	log.Printf("registered plugin %s", id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "registered"})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.registry.Unregister(id)
	log.Printf("unregistered plugin %s", id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "unregistered"})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	s.registry.Touch(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// handleNotify dispatches one event to one session, exposing the hub's
// single-session delivery to the REST layer.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var msg struct {
		Type ws.MessageType `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil || msg.Type == "" {
		writeError(w, http.StatusBadRequest, "invalid event")
		return
	}
	transport := s.hub.Dispatch(id, hub.Event{Type: msg.Type, Data: msg.Data})
	if transport == "" {
		if _, ok := s.registry.Get(id); !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"transport": transport})
}
