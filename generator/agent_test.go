package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"aether_architect/uitree"
)

func newTestAgent(t *testing.T, llm LLMClient) *Agent {
	t.Helper()
	a, err := NewAgent(llm, nil)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestNewAgentRequiresLLM(t *testing.T) {
	if _, err := NewAgent(nil, nil); err == nil {
		t.Error("NewAgent(nil) succeeded")
	}
}

func TestBuildTreeFromScript(t *testing.T) {
	llm := &MockLLM{Script: []string{
		"```json\n{\"id\":\"2\",\"parentId\":\"1\",\"type\":\"p\",\"con",
		"tent\":\"Hi\"}\nnot-json-at-all\n{\"id\":\"1\",\"parentId\":null,\"type\":\"div\"}\n",
		"{\"id\":\"3\",\"parentId\":\"1\",\"type\":\"button\"}",
	}}
	var previews []int
	tree, err := newTestAgent(t, llm).BuildTree(context.Background(), Prompt{}, func(tree *uitree.Node) {
		previews = append(previews, uitree.Count(tree))
	})
	if err != nil {
		t.Fatal(err)
	}
	want := &uitree.Node{ID: "1", Kind: "div", Children: []*uitree.Node{
		{ID: "2", Kind: "p", Content: uitree.String("Hi")},
		{ID: "3", Kind: "button"},
	}}
	if diff := cmp.Diff(want, tree); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
	// The child alone yields nothing; the root arrival yields both nodes;
	// the unterminated last record is only folded in by Finish.
	if diff := cmp.Diff([]int{2}, previews); diff != "" {
		t.Errorf("preview sizes (-want +got):\n%s", diff)
	}
}

func TestBuildTreeEmptyGeneration(t *testing.T) {
	llm := &MockLLM{Script: []string{"I cannot help with that.\n"}}
	_, err := newTestAgent(t, llm).BuildTree(context.Background(), Prompt{}, nil)
	if !errors.Is(err, uitree.ErrEmptyGeneration) {
		t.Errorf("err = %v, want ErrEmptyGeneration", err)
	}
}

func TestBuildTreeStreamError(t *testing.T) {
	boom := errors.New("connection reset")
	llm := &MockLLM{Script: []string{`{"id":"1","parentId":null,"type":"div"}` + "\n"}, Err: boom}
	_, err := newTestAgent(t, llm).BuildTree(context.Background(), Prompt{}, nil)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestBuildTreeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestAgent(t, &MockLLM{}).BuildTree(ctx, BuildTreePrompt(Brief{Prompt: "x"}, nil), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestMockLandingPage(t *testing.T) {
	tree, err := newTestAgent(t, &MockLLM{ChunkSize: 7}).BuildTree(context.Background(), BuildTreePrompt(Brief{Prompt: "Bakery"}, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := Summarize(tree); got.Title != "Bakery" || got.Nodes != 12 || got.Depth != 4 {
		t.Errorf("Summarize = %+v", got)
	}
}

func TestMockRefineKeepsBase(t *testing.T) {
	base := &uitree.Node{ID: "r", Kind: "main", Children: []*uitree.Node{{ID: "a", Kind: "h1", Content: uitree.String("Shop")}}}
	prompt := BuildRefinePrompt(Brief{Prompt: "shop"}, nil, base, "add a note", nil)
	tree, err := newTestAgent(t, &MockLLM{}).BuildTree(context.Background(), prompt, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := &uitree.Node{ID: "r", Kind: "main", Children: []*uitree.Node{
		{ID: "a", Kind: "h1", Content: uitree.String("Shop")},
		{ID: "note-2", Kind: "p", StyleTokens: "text-sm text-slate-500", Content: uitree.String("add a note")},
	}}
	if diff := cmp.Diff(want, tree); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestDraftPRD(t *testing.T) {
	llm := &MockLLM{Scripts: map[Stage][]string{
		StagePRD: {"Sure! Here is the PRD:\n```json\n{\"title\": \"\", \"features\": [\"Menu\", ", "\"Orders\"], \"appType\": \"kiosk\"}\n```"},
	}}
	prd, err := newTestAgent(t, llm).DraftPRD(context.Background(), Brief{Prompt: "Bakery"})
	if err != nil {
		t.Fatal(err)
	}
	want := PRD{Title: "Bakery", Features: []string{"Menu", "Orders"}, AppType: AppOther}
	if diff := cmp.Diff(want, prd); diff != "" {
		t.Errorf("prd mismatch (-want +got):\n%s", diff)
	}
}

func TestDraftPlanErrors(t *testing.T) {
	agent := newTestAgent(t, &MockLLM{Scripts: map[Stage][]string{
		StagePRD:    {"I would rather not."},
		StageDesign: {`{"palette": "red"}`},
	}})
	if _, err := agent.DraftPRD(context.Background(), Brief{Prompt: "x"}); !errors.Is(err, ErrBadPlan) {
		t.Errorf("DraftPRD err = %v, want ErrBadPlan", err)
	}
	if _, err := agent.DraftDesign(context.Background(), Brief{}, PRD{Title: "x"}); !errors.Is(err, ErrBadPlan) {
		t.Errorf("DraftDesign err = %v, want ErrBadPlan", err)
	}

	boom := errors.New("quota exceeded")
	agent = newTestAgent(t, &MockLLM{Err: boom})
	if _, err := agent.DraftPRD(context.Background(), Brief{Prompt: "x"}); !errors.Is(err, boom) {
		t.Errorf("DraftPRD err = %v, want %v", err, boom)
	}
}

func TestMockPlanStages(t *testing.T) {
	agent := newTestAgent(t, &MockLLM{ChunkSize: 5})
	prd, err := agent.DraftPRD(context.Background(), Brief{Prompt: "Bakery"})
	if err != nil {
		t.Fatal(err)
	}
	if prd.Title != "Bakery" || prd.AppType != AppLandingPage {
		t.Errorf("prd = %+v", prd)
	}
	design, err := agent.DraftDesign(context.Background(), Brief{}, prd)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(mockDesign, design); diff != "" {
		t.Errorf("design mismatch (-want +got):\n%s", diff)
	}
}
