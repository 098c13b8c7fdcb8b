package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"aether_architect/exporter"
	"aether_architect/generator"
	"aether_architect/uitree"
)

type sessionCreateReq struct {
	Prompt string `json:"prompt"`
	Vibe   string `json:"vibe"`
}

type refineReq struct {
	Comment string `json:"comment"`
}

type patchReq struct {
	ID string `json:"id"`
	uitree.Fields
	// Transform replaces the node's text-transform style token.
	Transform string `json:"transform,omitempty"`
}

type moveReq struct {
	Dragged  string `json:"dragged"`
	Target   string `json:"target"`
	Position string `json:"position"`
}

type dropReq struct {
	Dragged string  `json:"dragged"`
	Target  string  `json:"target"`
	Height  float64 `json:"height"`
	OffsetY float64 `json:"offset_y"`
}

type dropResp struct {
	Zone uitree.Zone `json:"zone"`
	generator.State
}

type stepResp struct {
	Moved bool `json:"moved"`
	generator.State
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

// handleSessionCreate runs the first pass. With ?stream=1 the response is a
// text/event-stream carrying a "session" event, one "preview" event per
// live tree and a final "done" or "error" event.
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateReq
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	brief := generator.Brief{Prompt: req.Prompt, Vibe: req.Vibe}
	if r.URL.Query().Get("stream") == "1" {
		s.streamSessionCreate(w, r, brief)
		return
	}
	sess, err := s.CreateSession(r.Context(), brief, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+sess.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sess.State())
}

func (s *Server) streamSessionCreate(w http.ResponseWriter, r *http.Request, brief generator.Brief) {
	sess, err := s.NewSession(r.Context(), brief)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ev := newEventWriter(w)
	ev.send("session", map[string]string{"session_id": sess.ID})

	err = s.Propose(r.Context(), sess, func(tree *uitree.Node) {
		ev.send("preview", tree)
	})
	if err != nil {
		ev.send("error", errorResp{Error: err.Error()})
		return
	}
	ev.send("done", sess.State())
}

// eventWriter writes server-sent events. Previews arrive on the generating
// goroutine, so writes are serialized.
type eventWriter struct {
	mu sync.Mutex
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newEventWriter(w http.ResponseWriter) *eventWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &eventWriter{w: w, rc: http.NewResponseController(w)}
}

func (e *eventWriter) send(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data)
	_ = e.rc.Flush()
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, sess.State())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tree := sess.Preview()
	if tree == nil {
		s.writeError(w, r, generator.ErrNoTree)
		return
	}
	writeJSON(w, tree)
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req refineReq
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Comment == "" {
		s.writeError(w, r, badRequest("comment is required"))
		return
	}
	sess, err := s.Refine(r.Context(), chi.URLParam(r, "id"), req.Comment, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, sess.State())
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Regenerate(r.Context(), chi.URLParam(r, "id"), nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, sess.State())
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req patchReq
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := applyPatch(sess, req); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, sess.State())
}

func applyPatch(sess *generator.Session, req patchReq) error {
	if req.ID == "" {
		return badRequest("id is required")
	}
	switch {
	case req.Transform != "" && !req.Fields.Empty():
		return badRequest("patch either fields or transform, not both")
	case req.Transform != "":
		_, err := sess.SetTextTransform(req.ID, req.Transform)
		return err
	case req.Fields.Empty():
		return badRequest("patch names no field")
	}
	_, err := sess.Patch(req.ID, req.Fields)
	return err
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req moveReq
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	pos, err := uitree.ParsePosition(req.Position)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := sess.Move(req.Dragged, req.Target, pos); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, sess.State())
}

// handleClassify reports the drop zone for a hover without moving anything.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req dropReq
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cur := sess.Current()
	if cur == nil {
		s.writeError(w, r, generator.ErrNoTree)
		return
	}
	target := uitree.Find(cur, req.Target)
	if target == nil {
		s.writeError(w, r, fmt.Errorf("%w: node %q not found", generator.ErrRejected, req.Target))
		return
	}
	writeJSON(w, map[string]uitree.Zone{"zone": uitree.ClassifyNode(target, req.Height, req.OffsetY)})
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req dropReq
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	_, zone, err := sess.Drop(req.Dragged, req.Target, req.Height, req.OffsetY)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, dropResp{Zone: zone, State: sess.State()})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.handleStep(w, r, (*generator.Session).Undo)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.handleStep(w, r, (*generator.Session).Redo)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request, step func(*generator.Session) (*uitree.Node, bool, error)) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_, moved, err := step(sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, stepResp{Moved: moved, State: sess.State()})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(exporter.JSON)
	}
	format, err := exporter.ParseFormat(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.Export(r.Context(), chi.URLParam(r, "id"), format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string][]exporter.Format{"formats": exporter.Formats()})
}

func (s *Server) handleArtifactList(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errNoStore)
		return
	}
	list, err := s.store.ListArtifacts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"artifacts": list})
}

// handleArtifactSave stores the current tree as an explicit save.
func (s *Server) handleArtifactSave(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errNoStore)
		return
	}
	a, err := s.SaveCurrent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(a)
}

func (s *Server) handleArtifactGet(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errNoStore)
		return
	}
	a, err := s.store.GetArtifact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, a)
}
