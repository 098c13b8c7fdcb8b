package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"aether_architect/uitree"
)

// Stage names the step of the pipeline a prompt belongs to.
type Stage string

const (
	StagePRD    Stage = "prd"
	StageDesign Stage = "design"
	StageTree   Stage = "tree"
	StageRefine Stage = "refine"
)

// Planning reports whether the stage answers with a single JSON object
// rather than an NDJSON tree.
func (s Stage) Planning() bool { return s == StagePRD || s == StageDesign }

// Prompt is the message set sent to the model.
type Prompt struct {
	Stage  Stage
	System string
	User   string
	// Subject is the short user text the prompt was built from.
	Subject string
	// Plan is the PRD and design system a tree pass is built from.
	Plan *Plan
	// Base is the tree being refined, nil for a first generation.
	Base *uitree.Node
}

const formatRules = `FORMATTING:
- Return NDJSON (newline delimited JSON), one flat node per line, nothing else.
- Node format: {"id": "string", "parentId": "string or null", "type": "string", "styles": "string", "content": "string", "attributes": {}}
- The root comes first and has "parentId": null.
- "type" is a standard HTML tag or "card".
- "styles" is a Tailwind CSS class string.
- "content" must not contain code blocks.
`

// BuildPRDPrompt asks for the product requirements document of brief.
func BuildPRDPrompt(brief Brief) Prompt {
	var sb strings.Builder
	sb.WriteString("You are the lead product architect. Conceptualize a complete, production-ready digital product for the user's request.\n")
	sb.WriteString("It may be a marketing landing page, a dashboard, a portfolio, a mobile app or a form.\n")
	sb.WriteString("Return one JSON object and nothing else:\n")
	sb.WriteString(`{"title": "string", "tagline": "string", "overview": "string", "features": ["string"], "targetAudience": "string", "technicalConstraints": "string", "appType": "landing_page|dashboard|mobile_app|form|portfolio|other"}`)
	sb.WriteString("\n")

	user := fmt.Sprintf("Request: %s", brief.Prompt)
	if brief.Vibe != "" {
		user += fmt.Sprintf("\nDesign vibe: %s", brief.Vibe)
	}
	return Prompt{
		Stage:   StagePRD,
		System:  sb.String(),
		User:    user,
		Subject: brief.Prompt,
	}
}

// BuildDesignPrompt asks for a design system matching prd.
func BuildDesignPrompt(brief Brief, prd PRD) Prompt {
	var sb strings.Builder
	sb.WriteString("You are the head of design. Create a high quality design system for the product below.\n")
	sb.WriteString("Keep contrast high and the result accessible.\n")
	if brief.Vibe != "" {
		sb.WriteString(fmt.Sprintf("Follow this vibe: %s.\n", brief.Vibe))
	}
	sb.WriteString("Return one JSON object and nothing else:\n")
	sb.WriteString(`{"palette": {"primary": "#hex", "secondary": "#hex", "background": "#hex", "surface": "#hex", "text": "#hex", "accent": "#hex"}, "typography": {"headingFont": "string", "bodyFont": "string"}, "borderRadius": "string", "spacingUnit": "string"}`)
	sb.WriteString("\n")

	prdJSON, _ := json.Marshal(prd)
	return Prompt{
		Stage:   StageDesign,
		System:  sb.String(),
		User:    fmt.Sprintf("PRD: %s", prdJSON),
		Subject: brief.Vibe,
	}
}

// BuildTreePrompt builds the prompt for a full tree pass. plan may be nil,
// in which case the brief alone describes the application.
func BuildTreePrompt(brief Brief, plan *Plan) Prompt {
	var sb strings.Builder
	sb.WriteString("You are a senior frontend engineer. Generate the UI tree for the application described by the user.\n")
	writePlan(&sb, plan)
	sb.WriteString("RULES:\n")
	sb.WriteString("1. Use semantic HTML tags (header, nav, main, section, aside, footer).\n")
	sb.WriteString("2. Structure: root > header, main with several sections, footer.\n")
	sb.WriteString("3. Mobile-first responsive Tailwind classes.\n")
	sb.WriteString("4. Every input has an aria-label or an associated label.\n")
	sb.WriteString("5. Cards inside a grid carry h-full.\n")
	if brief.Vibe != "" {
		sb.WriteString(fmt.Sprintf("6. Design vibe: %s.\n", brief.Vibe))
	}
	sb.WriteString(formatRules)

	subject := brief.Prompt
	if plan != nil && plan.PRD.Title != "" {
		subject = plan.PRD.Title
	}
	return Prompt{
		Stage:   StageTree,
		System:  sb.String(),
		User:    fmt.Sprintf("Application: %s\nReturn the full UI tree as NDJSON.", brief.Prompt),
		Subject: subject,
		Plan:    plan.Clone(),
	}
}

// BuildRefinePrompt builds the prompt that rebuilds current according to
// request. Earlier refinement requests are listed in the user message.
func BuildRefinePrompt(brief Brief, plan *Plan, current *uitree.Node, request string, history []Turn) Prompt {
	var sb strings.Builder
	sb.WriteString("You are a frontend engineer revising an existing UI tree.\n")
	writePlan(&sb, plan)
	sb.WriteString("RULES:\n")
	sb.WriteString("1. Return the FULL updated tree, not only the changed nodes.\n")
	sb.WriteString("2. Preserve the ids of nodes that did not change.\n")
	sb.WriteString("3. Improve ARIA labels and semantic structure where missing.\n")
	if brief.Vibe != "" {
		sb.WriteString(fmt.Sprintf("4. Keep the design vibe: %s.\n", brief.Vibe))
	}
	sb.WriteString(formatRules)

	var user strings.Builder
	fmt.Fprintf(&user, "Application: %s\n\n", brief.Prompt)
	var earlier []string
	for _, t := range history {
		if t.Action == ActionRefine && t.Comment != "" {
			earlier = append(earlier, t.Comment)
		}
	}
	if len(earlier) > 0 {
		user.WriteString("Earlier requests, already applied:\n")
		for _, c := range earlier {
			fmt.Fprintf(&user, "- %s\n", c)
		}
		user.WriteString("\n")
	}
	treeJSON, _ := json.Marshal(current)
	fmt.Fprintf(&user, "Current UI tree (JSON):\n%s\n\nRequest: %s\nReturn the full updated tree as NDJSON.", treeJSON, request)

	return Prompt{
		Stage:   StageRefine,
		System:  sb.String(),
		User:    user.String(),
		Subject: request,
		Plan:    plan.Clone(),
		Base:    current,
	}
}

func writePlan(sb *strings.Builder, plan *Plan) {
	if plan == nil {
		return
	}
	prd, _ := json.Marshal(plan.PRD)
	design, _ := json.Marshal(plan.Design)
	fmt.Fprintf(sb, "PRD: %s\nDesign system: %s\n", prd, design)
}
