package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"aether_architect/exporter"
	"aether_architect/generator"
	"aether_architect/store"
	"aether_architect/uitree"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

var errNoStore = errors.New("artifact store disabled")

// ActionSave marks artifacts written on explicit request.
const ActionSave = "save"

// Options configures a Server. Every field is optional.
type Options struct {
	// Store persists settled trees. Nil disables persistence.
	Store *store.Store
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// GenerationTimeout bounds a single generation pass, 3m when zero.
	GenerationTimeout time.Duration
}

// Server exposes generator sessions over HTTP and MCP.
type Server struct {
	agent    *generator.Agent
	store    *store.Store
	sessions *sessionStore
	logger   *slog.Logger
	timeout  time.Duration
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*generator.Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*generator.Session)}
}

func (s *sessionStore) set(id string, sess *generator.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
}

func (s *sessionStore) get(id string) (*generator.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// setIfAbsent registers sess unless id is already taken, and returns the
// session registered under id.
func (s *sessionStore) setIfAbsent(id string, sess *generator.Session) *generator.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[id]; ok {
		return cur
	}
	s.sessions[id] = sess
	return sess
}

func (s *sessionStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func New(agent *generator.Agent, opts Options) (*Server, error) {
	if agent == nil {
		return nil, errors.New("generator agent required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = 3 * time.Minute
	}
	return &Server{
		agent:    agent,
		store:    opts.Store,
		sessions: newSessionStore(),
		logger:   opts.Logger,
		timeout:  opts.GenerationTimeout,
	}, nil
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logMiddleware)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleSessionCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleSessionGet)
			r.Get("/preview", s.handlePreview)
			r.Post("/refine", s.handleRefine)
			r.Post("/regenerate", s.handleRegenerate)
			r.Post("/patch", s.handlePatch)
			r.Post("/move", s.handleMove)
			r.Post("/classify", s.handleClassify)
			r.Post("/drop", s.handleDrop)
			r.Post("/undo", s.handleUndo)
			r.Post("/redo", s.handleRedo)
			r.Get("/export", s.handleExport)
			r.Get("/artifacts", s.handleArtifactList)
			r.Post("/artifacts", s.handleArtifactSave)
		})
	})
	r.Get("/api/artifacts/{id}", s.handleArtifactGet)
	r.Get("/api/formats", s.handleFormats)
	return r
}

// NewSession registers an empty session for brief.
func (s *Server) NewSession(ctx context.Context, brief generator.Brief) (*generator.Session, error) {
	if brief.Prompt == "" {
		return nil, badRequest("prompt is required")
	}
	id := newSessionID()
	sess := generator.NewSession(id, brief, s.agent)
	s.sessions.set(id, sess)
	if s.store != nil {
		if err := s.store.SaveSession(ctx, store.SessionRecord{ID: id, Prompt: brief.Prompt, Vibe: brief.Vibe}); err != nil {
			s.logger.Warn("save session failed", "session", id, "error", err)
		}
	}
	return sess, nil
}

// Propose runs the first generation pass of a registered session. A
// session whose first pass fails is dropped.
func (s *Server) Propose(ctx context.Context, sess *generator.Session, onPreview generator.PreviewFunc) error {
	id := sess.ID
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	tree, err := sess.Propose(ctx, onPreview)
	if err != nil {
		s.logger.Error("generation failed", "session", id, "error", err)
		s.sessions.remove(id)
		return err
	}
	s.logger.Info("session generated", "session", id, "nodes", uitree.Count(tree), "elapsed", time.Since(start))
	s.persist(ctx, sess, generator.ActionGenerate, tree)
	return nil
}

// CreateSession registers a session and runs its first pass.
func (s *Server) CreateSession(ctx context.Context, brief generator.Brief, onPreview generator.PreviewFunc) (*generator.Session, error) {
	sess, err := s.NewSession(ctx, brief)
	if err != nil {
		return nil, err
	}
	if err := s.Propose(ctx, sess, onPreview); err != nil {
		return nil, err
	}
	return sess, nil
}

// Regenerate rebuilds the tree of an existing session from its plan. The
// edit history starts over from the new tree.
func (s *Server) Regenerate(ctx context.Context, id string, onPreview generator.PreviewFunc) (*generator.Session, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	tree, err := sess.Regenerate(ctx, onPreview)
	if err != nil {
		s.logger.Error("regeneration failed", "session", id, "error", err)
		return sess, err
	}
	s.logger.Info("session regenerated", "session", id, "nodes", uitree.Count(tree))
	s.persist(ctx, sess, generator.ActionRegenerate, tree)
	return sess, nil
}

// Refine runs a refinement pass on an existing session.
func (s *Server) Refine(ctx context.Context, id, comment string, onPreview generator.PreviewFunc) (*generator.Session, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	tree, err := sess.Refine(ctx, comment, onPreview)
	if err != nil {
		s.logger.Error("refinement failed", "session", id, "error", err)
		return sess, err
	}
	s.logger.Info("session refined", "session", id, "nodes", uitree.Count(tree))
	s.persist(ctx, sess, generator.ActionRefine, tree)
	return sess, nil
}

// Export renders the current tree of a session.
func (s *Server) Export(ctx context.Context, id string, format exporter.Format) (string, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return "", err
	}
	return exporter.Export(sess.Current(), format)
}

// SaveCurrent stores the current tree of a session as an artifact.
func (s *Server) SaveCurrent(ctx context.Context, id string) (store.Artifact, error) {
	if s.store == nil {
		return store.Artifact{}, errNoStore
	}
	sess, err := s.session(ctx, id)
	if err != nil {
		return store.Artifact{}, err
	}
	state := sess.State()
	if state.Tree == nil {
		return store.Artifact{}, generator.ErrNoTree
	}
	return s.store.SaveArtifact(ctx, store.Artifact{
		SessionID: id,
		Revision:  state.Revision,
		Action:    ActionSave,
		Title:     generator.Summarize(state.Tree).Title,
		Tree:      state.Tree,
		Plan:      state.Plan,
	})
}

// session returns a live session. A session unknown to this process is
// reopened from its latest artifact when a store is configured.
func (s *Server) session(ctx context.Context, id string) (*generator.Session, error) {
	if sess, ok := s.sessions.get(id); ok {
		return sess, nil
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess, err := s.restore(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return s.sessions.setIfAbsent(id, sess), nil
}

func (s *Server) restore(ctx context.Context, id string) (*generator.Session, error) {
	rec, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	a, err := s.store.LatestArtifact(ctx, id)
	if err != nil {
		return nil, err
	}
	brief := generator.Brief{Prompt: rec.Prompt, Vibe: rec.Vibe}
	sess := generator.RestoreSession(id, brief, s.agent, a.Tree, a.Plan)
	s.logger.Info("session restored", "session", id, "artifact", a.ID, "nodes", a.NodeCount)
	return sess, nil
}

// persist records a settled tree. Failures are logged, never surfaced: the
// in-memory session stays authoritative.
func (s *Server) persist(ctx context.Context, sess *generator.Session, action string, tree *uitree.Node) {
	if s.store == nil || tree == nil {
		return
	}
	state := sess.State()
	a, err := s.store.SaveArtifact(context.WithoutCancel(ctx), store.Artifact{
		SessionID: sess.ID,
		Revision:  state.Revision,
		Action:    action,
		Title:     generator.Summarize(tree).Title,
		Tree:      tree,
		Plan:      state.Plan,
	})
	if err != nil {
		s.logger.Warn("save artifact failed", "session", sess.ID, "error", err)
		return
	}
	s.logger.Debug("artifact saved", "session", sess.ID, "artifact", a.ID, "action", action)
}

func newSessionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type errorResp struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResp{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, generator.ErrBusy), errors.Is(err, generator.ErrNoTree), errors.Is(err, generator.ErrNoPlan),
		errors.Is(err, exporter.ErrNoTree):
		return http.StatusConflict
	case errors.Is(err, generator.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, exporter.ErrUnknownFormat), errors.Is(err, uitree.ErrUnknownPosition), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, uitree.ErrEmptyGeneration), errors.Is(err, generator.ErrBadPlan),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	case errors.Is(err, errNoStore):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
