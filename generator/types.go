package generator

import (
	"time"

	"aether_architect/uitree"
)

// Brief describes the interface the user asked for.
type Brief struct {
	Prompt string `json:"prompt"`
	// Vibe is a free-form aesthetic direction ("glassmorphism", "neo-brutalist").
	Vibe string `json:"vibe,omitempty"`
}

// Turn records one generation or refinement round.
type Turn struct {
	Action    string    `json:"action"`
	Comment   string    `json:"comment,omitempty"`
	Summary   Summary   `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	ActionGenerate   = "generate"
	ActionRegenerate = "regenerate"
	ActionRefine     = "refine"
)

// Phase is what a session is busy with.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePlanning  Phase = "planning"
	PhaseDesigning Phase = "designing"
	PhaseBuilding  Phase = "building"
	PhaseRefining  Phase = "refining"
)

// Summary is a short description of a settled tree.
type Summary struct {
	Title string `json:"title,omitempty"`
	Nodes int    `json:"nodes"`
	Depth int    `json:"depth"`
}

// PreviewFunc receives each live tree derived while a pass is streaming.
type PreviewFunc func(tree *uitree.Node)
