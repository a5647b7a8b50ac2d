package adminapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/streamkit/streamkit/internal/graph"
)

type createSessionRequest struct {
	Pipeline string `json:"pipeline"`
	Name     string `json:"name,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// handleCreateSession implements createSession(yaml, name?). A supplied
// name becomes the session's id directly — the dynamic engine has no
// separate name/id distinction, so "name" is just a caller-chosen id with
// a friendlier field name at this surface. Omitting it gets a generated
// uuid for both.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if s.Dynamic == nil {
		notConfigured(w)
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request body: "+err.Error())
		return
	}
	pipeline, err := graph.ParseYAML([]byte(req.Pipeline))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.Dynamic.StartSession(r.Context(), req.Name, pipeline, s.IsKindAllowed)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	name := req.Name
	if name == "" {
		name = sess.ID
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: sess.ID,
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

type destroySessionResponse struct {
	SessionID string `json:"session_id"`
}

// handleDestroySession implements destroySession(id_or_name). Since name
// and id are the same value at this surface (see handleCreateSession),
// the path parameter addresses either.
func (s *Server) handleDestroySession(w http.ResponseWriter, r *http.Request) {
	if s.Dynamic == nil {
		notConfigured(w)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.Dynamic.StopSession(id); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, destroySessionResponse{SessionID: id})
}

// handleGetPipeline implements getPipeline(id): the pipeline's declared
// nodes and connections, each node's live runtime state and packet
// counters.
func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	if s.Dynamic == nil {
		notConfigured(w)
		return
	}
	id := chi.URLParam(r, "id")
	sess, ok := s.Dynamic.Session(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found: "+id)
		return
	}
	pipeline := sess.Pipeline()
	states := sess.State()
	stats := sess.Stats()

	nodes := make([]nodeInfo, 0, len(pipeline.NodeOrder))
	for _, label := range pipeline.NodeOrder {
		inst := pipeline.Nodes[label]
		nodes = append(nodes, nodeInfo{
			Label:  label,
			Kind:   inst.Kind,
			Params: inst.Params,
			State:  states[label],
			Stats:  stats[label],
		})
	}
	writeJSON(w, http.StatusOK, pipelineResponse{
		SessionID:   sess.ID,
		Nodes:       nodes,
		Connections: pipeline.Connections,
	})
}

// handleProcess implements process(config_yaml, media?): a multipart
// request carrying a "pipeline" text part (the oneshot pipeline's YAML
// description) followed by an optional "media" part (the body an
// http_input node in that pipeline should stream instead of fetching a
// URL). The response streams the pipeline's collected output back with
// whatever Content-Type the producing sink reports.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if s.Oneshot == nil {
		notConfigured(w)
		return
	}
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data: "+err.Error())
		return
	}

	pipelineYAML, media, err := readProcessParts(mr)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pipeline, err := graph.ParseYAML([]byte(pipelineYAML))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Run writes its collected response into buf rather than straight to w:
	// the Content-Type header must be set before any body byte reaches w,
	// but it's only known once Run returns the Result its sink produced.
	var buf bytes.Buffer
	result, err := s.Oneshot.Run(r.Context(), pipeline, s.IsKindAllowed, media, &buf, s.OneshotDeadline)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("X-Request-ID", requestIDFromContext(r.Context()))
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// readProcessParts reads the "pipeline" part (required, read fully since
// it's a small YAML document) and returns the "media" part as a live
// io.Reader without buffering it, so a large upload streams straight
// through to the pipeline's source node. "media" must be the last part
// sent: once this function returns, no further part of mr is read until
// the pipeline itself drains "media".
func readProcessParts(mr *multipart.Reader) (pipelineYAML string, media io.Reader, err error) {
	for {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			return pipelineYAML, media, nil
		}
		if perr != nil {
			return "", nil, perr
		}
		switch part.FormName() {
		case "pipeline":
			b, rerr := io.ReadAll(part)
			if rerr != nil {
				return "", nil, rerr
			}
			pipelineYAML = string(b)
		case "media":
			return pipelineYAML, part, nil
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
