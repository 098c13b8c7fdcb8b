package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"aether_architect/generator"
	"aether_architect/store"
	"aether_architect/uitree"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestServer(t *testing.T, llm generator.LLMClient, withStore bool) (*Server, *httptest.Server) {
	t.Helper()
	agent, err := generator.NewAgent(llm, discard)
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{Logger: discard}
	if withStore {
		db, err := store.Open(":memory:")
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { db.Close() })
		opts.Store, err = store.New(db)
		if err != nil {
			t.Fatal(err)
		}
	}
	srv, err := New(agent, opts)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

// call sends body as JSON and decodes the response into out when non-nil.
func call(t *testing.T, ts *httptest.Server, method, path string, body, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func create(t *testing.T, ts *httptest.Server) generator.State {
	t.Helper()
	var st generator.State
	if code := call(t, ts, http.MethodPost, "/api/sessions", map[string]string{"prompt": "Bakery"}, &st); code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	return st
}

func childIDs(n *uitree.Node) []string {
	var ids []string
	for _, c := range n.Children {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestNewRequiresAgent(t *testing.T) {
	if _, err := New(nil, Options{}); err == nil {
		t.Error("New(nil) succeeded")
	}
}

func TestCreateAndGet(t *testing.T) {
	_, ts := newTestServer(t, &generator.MockLLM{}, false)
	st := create(t, ts)
	if st.ID == "" || st.Revisions != 1 || st.Generating {
		t.Fatalf("state = %+v", st)
	}
	if got := uitree.Find(st.Tree, "title").Text(); got != "Bakery" {
		t.Errorf("title = %q", got)
	}

	var got generator.State
	if code := call(t, ts, http.MethodGet, "/api/sessions/"+st.ID, nil, &got); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if diff := cmp.Diff(st.Tree, got.Tree); diff != "" {
		t.Errorf("tree mismatch (-create +get):\n%s", diff)
	}

	var preview uitree.Node
	if code := call(t, ts, http.MethodGet, "/api/sessions/"+st.ID+"/preview", nil, &preview); code != http.StatusOK {
		t.Fatalf("preview status = %d", code)
	}
	if preview.ID != "root" {
		t.Errorf("preview root = %q", preview.ID)
	}
}

func TestCreateErrors(t *testing.T) {
	_, ts := newTestServer(t, &generator.MockLLM{}, false)
	var e errorResp
	if code := call(t, ts, http.MethodPost, "/api/sessions", map[string]string{}, &e); code != http.StatusBadRequest {
		t.Errorf("missing prompt status = %d", code)
	}
	if code := call(t, ts, http.MethodGet, "/api/sessions/nope", nil, &e); code != http.StatusNotFound {
		t.Errorf("unknown session status = %d", code)
	}
	if !strings.Contains(e.Error, "session not found") {
		t.Errorf("error = %q", e.Error)
	}
}

func TestCreateEmptyGeneration(t *testing.T) {
	srv, ts := newTestServer(t, &generator.MockLLM{Script: []string{"not json\n"}}, false)
	if code := call(t, ts, http.MethodPost, "/api/sessions", map[string]string{"prompt": "x"}, nil); code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", code)
	}
	srv.sessions.mu.Lock()
	n := len(srv.sessions.sessions)
	srv.sessions.mu.Unlock()
	if n != 0 {
		t.Errorf("%d sessions kept after failed generation", n)
	}
}

func TestEditFlow(t *testing.T) {
	_, ts := newTestServer(t, &generator.MockLLM{}, false)
	id := create(t, ts).ID
	base := "/api/sessions/" + id

	var st generator.State
	if code := call(t, ts, http.MethodPost, base+"/patch", map[string]any{"id": "title", "content": "Fresh Bread"}, &st); code != http.StatusOK {
		t.Fatalf("patch status = %d", code)
	}
	if got := uitree.Find(st.Tree, "title").Text(); got != "Fresh Bread" {
		t.Errorf("patched title = %q", got)
	}

	if code := call(t, ts, http.MethodPost, base+"/move", moveReq{Dragged: "footer", Target: "header", Position: "before"}, &st); code != http.StatusOK {
		t.Fatalf("move status = %d", code)
	}
	if diff := cmp.Diff([]string{"footer", "header", "main"}, childIDs(st.Tree)); diff != "" {
		t.Errorf("root children (-want +got):\n%s", diff)
	}
	if st.Revisions != 3 || !st.CanUndo || st.CanRedo {
		t.Errorf("state after edits = %+v", st)
	}

	if code := call(t, ts, http.MethodPost, base+"/move", moveReq{Dragged: "root", Target: "footer", Position: "inside"}, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("moving root status = %d", code)
	}
	if code := call(t, ts, http.MethodPost, base+"/move", moveReq{Dragged: "footer", Target: "header", Position: "over"}, nil); code != http.StatusBadRequest {
		t.Errorf("bad position status = %d", code)
	}
	if code := call(t, ts, http.MethodPost, base+"/patch", map[string]any{"id": "title"}, nil); code != http.StatusBadRequest {
		t.Errorf("empty patch status = %d", code)
	}
	if code := call(t, ts, http.MethodPost, base+"/patch", map[string]any{"id": "missing", "content": "x"}, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("patch missing node status = %d", code)
	}

	var step stepResp
	call(t, ts, http.MethodPost, base+"/undo", nil, &step)
	if !step.Moved || step.Revision != 1 {
		t.Errorf("undo = %+v", step)
	}
	if diff := cmp.Diff([]string{"header", "main", "footer"}, childIDs(step.Tree)); diff != "" {
		t.Errorf("root children after undo (-want +got):\n%s", diff)
	}
	call(t, ts, http.MethodPost, base+"/redo", nil, &step)
	if !step.Moved || step.Revision != 2 {
		t.Errorf("redo = %+v", step)
	}
	call(t, ts, http.MethodPost, base+"/redo", nil, &step)
	if step.Moved {
		t.Error("redo at the end reported a move")
	}
}

func TestPatchTransform(t *testing.T) {
	_, ts := newTestServer(t, &generator.MockLLM{}, false)
	base := "/api/sessions/" + create(t, ts).ID

	var st generator.State
	if code := call(t, ts, http.MethodPost, base+"/patch", map[string]any{"id": "title", "transform": "uppercase"}, &st); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got := uitree.Find(st.Tree, "title").StyleTokens; got != "text-3xl font-bold uppercase" {
		t.Errorf("styles = %q", got)
	}
	if code := call(t, ts, http.MethodPost, base+"/patch", map[string]any{"id": "title", "transform": "uppercase", "content": "x"}, nil); code != http.StatusBadRequest {
		t.Errorf("fields plus transform status = %d", code)
	}
}

func TestClassifyAndDrop(t *testing.T) {
	_, ts := newTestServer(t, &generator.MockLLM{}, false)
	base := "/api/sessions/" + create(t, ts).ID

	tests := []struct {
		target  string
		offsetY float64
		want    uitree.Zone
	}{
		{"hero", 10, uitree.ZoneBefore},
		{"hero", 50, uitree.ZoneInside},
		{"hero", 90, uitree.ZoneAfter},
		{"hero-copy", 50, uitree.ZoneNone},
	}
	for _, tt := range tests {
		var got map[string]uitree.Zone
		call(t, ts, http.MethodPost, base+"/classify", dropReq{Target: tt.target, Height: 100, OffsetY: tt.offsetY}, &got)
		if got["zone"] != tt.want {
			t.Errorf("classify(%s, %v) = %q, want %q", tt.target, tt.offsetY, got["zone"], tt.want)
		}
	}

	var dr dropResp
	if code := call(t, ts, http.MethodPost, base+"/drop", dropReq{Dragged: "submit", Target: "hero", Height: 100, OffsetY: 50}, &dr); code != http.StatusOK {
		t.Fatalf("drop status = %d", code)
	}
	if dr.Zone != uitree.ZoneInside {
		t.Errorf("zone = %q", dr.Zone)
	}
	if diff := cmp.Diff([]string{"hero-copy", "submit"}, childIDs(uitree.Find(dr.Tree, "hero"))); diff != "" {
		t.Errorf("hero children (-want +got):\n%s", diff)
	}
	if code := call(t, ts, http.MethodPost, base+"/drop", dropReq{Dragged: "email", Target: "hero-copy", Height: 100, OffsetY: 50}, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("drop on leaf middle status = %d", code)
	}
}

func TestExport(t *testing.T) {
	_, ts := newTestServer(t, &generator.MockLLM{}, false)
	base := ts.URL + "/api/sessions/" + create(t, ts).ID

	resp, err := http.Get(base + "/export?format=html")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(string(body), "Bakery") {
		t.Errorf("html export misses the title:\n%s", body)
	}

	resp, err = http.Get(base + "/export?format=pdf")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown format status = %d", resp.StatusCode)
	}
}

func TestCreateStream(t *testing.T) {
	_, ts := newTestServer(t, &generator.MockLLM{}, false)
	resp, err := http.Post(ts.URL+"/api/sessions?stream=1", "application/json", strings.NewReader(`{"prompt":"Bakery"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	for _, ev := range []string{"event: session\n", "event: preview\n", "event: done\n"} {
		if !strings.Contains(text, ev) {
			t.Errorf("stream misses %q", ev)
		}
	}
	if strings.Index(text, "event: preview") > strings.Index(text, "event: done") {
		t.Error("preview after done")
	}
}

func TestRefineAndArtifacts(t *testing.T) {
	_, ts := newTestServer(t, &generator.MockLLM{}, true)
	id := create(t, ts).ID
	base := "/api/sessions/" + id

	var st generator.State
	if code := call(t, ts, http.MethodPost, base+"/refine", refineReq{Comment: "add a note"}, &st); code != http.StatusOK {
		t.Fatalf("refine status = %d", code)
	}
	if st.Revisions != 2 || len(st.History) != 2 {
		t.Errorf("state = %+v", st)
	}
	if note := uitree.Find(st.Tree, "note-12"); note == nil || note.Text() != "add a note" {
		t.Errorf("note = %+v", note)
	}
	if code := call(t, ts, http.MethodPost, base+"/refine", refineReq{}, nil); code != http.StatusBadRequest {
		t.Errorf("empty comment status = %d", code)
	}

	var saved store.Artifact
	if code := call(t, ts, http.MethodPost, base+"/artifacts", nil, &saved); code != http.StatusCreated {
		t.Fatalf("save status = %d", code)
	}
	if saved.Action != ActionSave || saved.Revision != 1 {
		t.Errorf("saved = %+v", saved)
	}

	var list struct {
		Artifacts []store.Artifact `json:"artifacts"`
	}
	call(t, ts, http.MethodGet, base+"/artifacts", nil, &list)
	var actions []string
	for _, a := range list.Artifacts {
		actions = append(actions, a.Action)
	}
	if diff := cmp.Diff([]string{"generate", "refine", "save"}, actions); diff != "" {
		t.Errorf("artifact actions (-want +got):\n%s", diff)
	}

	var got store.Artifact
	if code := call(t, ts, http.MethodGet, "/api/artifacts/"+saved.ID, nil, &got); code != http.StatusOK {
		t.Fatalf("get artifact status = %d", code)
	}
	if diff := cmp.Diff(st.Tree, got.Tree); diff != "" {
		t.Errorf("artifact tree (-want +got):\n%s", diff)
	}
	if code := call(t, ts, http.MethodGet, "/api/artifacts/nope", nil, nil); code != http.StatusNotFound {
		t.Errorf("unknown artifact status = %d", code)
	}
}

func TestArtifactsWithoutStore(t *testing.T) {
	_, ts := newTestServer(t, &generator.MockLLM{}, false)
	id := create(t, ts).ID
	if code := call(t, ts, http.MethodGet, "/api/sessions/"+id+"/artifacts", nil, nil); code != http.StatusNotImplemented {
		t.Errorf("status = %d", code)
	}
}

func TestRegenerate(t *testing.T) {
	srv, ts := newTestServer(t, &generator.MockLLM{}, true)
	st := create(t, ts)
	base := "/api/sessions/" + st.ID
	if st.Plan == nil || st.Plan.PRD.Title != "Bakery" {
		t.Fatalf("plan after create = %+v", st.Plan)
	}
	call(t, ts, http.MethodPost, base+"/patch", map[string]any{"id": "title", "content": "Rye"}, nil)

	var got generator.State
	if code := call(t, ts, http.MethodPost, base+"/regenerate", nil, &got); code != http.StatusOK {
		t.Fatalf("regenerate status = %d", code)
	}
	if got.Revisions != 1 || got.CanUndo {
		t.Errorf("history after regenerate = %+v", got)
	}
	if title := uitree.Find(got.Tree, "title").Text(); title != "Bakery" {
		t.Errorf("title = %q, want the regenerated Bakery", title)
	}
	if diff := cmp.Diff(st.Plan, got.Plan); diff != "" {
		t.Errorf("plan changed (-create +regenerate):\n%s", diff)
	}

	latest, err := srv.store.LatestArtifact(context.Background(), st.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.Action != generator.ActionRegenerate {
		t.Errorf("latest artifact action = %q", latest.Action)
	}
	if diff := cmp.Diff(st.Plan, latest.Plan); diff != "" {
		t.Errorf("stored plan (-want +got):\n%s", diff)
	}

	if code := call(t, ts, http.MethodPost, "/api/sessions/nope/regenerate", nil, nil); code != http.StatusNotFound {
		t.Errorf("unknown session status = %d", code)
	}
}

func TestCreateBadPlan(t *testing.T) {
	llm := &generator.MockLLM{Scripts: map[generator.Stage][]string{generator.StagePRD: {"no plan"}}}
	_, ts := newTestServer(t, llm, false)
	if code := call(t, ts, http.MethodPost, "/api/sessions", map[string]string{"prompt": "x"}, nil); code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", code)
	}
}

func TestRestoreFromStore(t *testing.T) {
	first, ts1 := newTestServer(t, &generator.MockLLM{}, true)
	created := create(t, ts1)
	base := "/api/sessions/" + created.ID

	var edited generator.State
	call(t, ts1, http.MethodPost, base+"/patch", map[string]any{"id": "title", "content": "Rye"}, &edited)
	if code := call(t, ts1, http.MethodPost, base+"/artifacts", nil, nil); code != http.StatusCreated {
		t.Fatalf("save status = %d", code)
	}

	// A second server sharing the database knows nothing of the session.
	agent, err := generator.NewAgent(&generator.MockLLM{}, discard)
	if err != nil {
		t.Fatal(err)
	}
	second, err := New(agent, Options{Store: first.store, Logger: discard})
	if err != nil {
		t.Fatal(err)
	}
	ts2 := httptest.NewServer(second.Routes())
	defer ts2.Close()

	var st generator.State
	if code := call(t, ts2, http.MethodGet, base, nil, &st); code != http.StatusOK {
		t.Fatalf("get restored status = %d", code)
	}
	if diff := cmp.Diff(edited.Tree, st.Tree); diff != "" {
		t.Errorf("restored tree (-saved +restored):\n%s", diff)
	}
	if diff := cmp.Diff(created.Plan, st.Plan); diff != "" {
		t.Errorf("restored plan (-saved +restored):\n%s", diff)
	}
	if st.Brief.Prompt != "Bakery" || st.Revisions != 1 || st.CanUndo {
		t.Errorf("restored state = %+v", st)
	}

	var step stepResp
	call(t, ts2, http.MethodPost, base+"/undo", nil, &step)
	if step.Moved {
		t.Error("undo crossed the restore point")
	}
	if code := call(t, ts2, http.MethodPost, base+"/patch", map[string]any{"id": "title", "content": "Spelt"}, &st); code != http.StatusOK {
		t.Fatalf("patch restored status = %d", code)
	}
	if st.Revisions != 2 {
		t.Errorf("revisions after patch = %d", st.Revisions)
	}

	// Later lookups hit the live session, not the store.
	var again generator.State
	call(t, ts2, http.MethodGet, base, nil, &again)
	if got := uitree.Find(again.Tree, "title").Text(); got != "Spelt" {
		t.Errorf("title = %q, want the live edit", got)
	}

	if code := call(t, ts2, http.MethodGet, "/api/sessions/nope", nil, nil); code != http.StatusNotFound {
		t.Errorf("unknown session status = %d", code)
	}
}

func TestRestoreNeedsArtifact(t *testing.T) {
	srv, ts := newTestServer(t, &generator.MockLLM{}, true)
	ctx := context.Background()
	if err := srv.store.SaveSession(ctx, store.SessionRecord{ID: "bare", Prompt: "p"}); err != nil {
		t.Fatal(err)
	}
	if code := call(t, ts, http.MethodGet, "/api/sessions/bare", nil, nil); code != http.StatusNotFound {
		t.Errorf("session without artifacts status = %d", code)
	}
}
