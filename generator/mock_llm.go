package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"aether_architect/uitree"
)

// MockLLM is an offline stand-in for a real model. Without a script it
// answers the planning stages with a fixed PRD and design system, and tree
// passes with a small landing page, or the base tree plus a note node for a
// refinement. Replies are fenced and cut into ChunkSize pieces the way chat
// models deliver them.
type MockLLM struct {
	// Script, when set, is streamed verbatim for tree and refine passes.
	Script []string
	// Scripts overrides the reply of individual stages.
	Scripts map[Stage][]string
	// Err is reported after the output, simulating a broken stream.
	Err error
	// ChunkSize is the fragment length, 32 when zero.
	ChunkSize int
}

func (m *MockLLM) Stream(ctx context.Context, prompt Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		fragments, ok := m.Scripts[prompt.Stage]
		if !ok && !prompt.Stage.Planning() {
			fragments = m.Script
		}
		if fragments == nil {
			fragments = chunk(m.render(prompt), m.ChunkSize)
		}
		for _, f := range fragments {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(f, nil) {
				return
			}
		}
		if m.Err != nil {
			yield("", m.Err)
		}
	}
}

func (m *MockLLM) render(prompt Prompt) string {
	switch prompt.Stage {
	case StagePRD:
		return fenced(mockPRD(prompt.Subject))
	case StageDesign:
		return fenced(mockDesign)
	}

	var descs []uitree.Descriptor
	if prompt.Base != nil {
		descs = uitree.Flatten(prompt.Base)
		descs = append(descs, uitree.Descriptor{
			ID:          fmt.Sprintf("note-%d", len(descs)),
			ParentID:    prompt.Base.ID,
			Kind:        "p",
			StyleTokens: "text-sm text-slate-500",
			Content:     uitree.String(prompt.Subject),
		})
	} else {
		descs = landingPage(prompt.Subject)
	}

	var sb strings.Builder
	sb.WriteString("```json\n")
	for _, d := range descs {
		line, _ := json.Marshal(d)
		sb.Write(line)
		sb.WriteByte('\n')
	}
	sb.WriteString("```\n")
	return sb.String()
}

func fenced(v any) string {
	data, _ := json.MarshalIndent(v, "", "  ")
	return "```json\n" + string(data) + "\n```\n"
}

func mockPRD(request string) PRD {
	if request == "" {
		request = "Untitled"
	}
	return PRD{
		Title:          request,
		Tagline:        "Everything you need, in one place.",
		Overview:       "A single page introducing " + request + ".",
		Features:       []string{"Hero", "Sign-up form"},
		TargetAudience: "General public",
		AppType:        AppLandingPage,
	}
}

var mockDesign = DesignSystem{
	Palette: Palette{
		Primary:    "#0f172a",
		Secondary:  "#64748b",
		Background: "#f8fafc",
		Surface:    "#ffffff",
		Text:       "#0f172a",
		Accent:     "#6366f1",
	},
	Typography:   Typography{HeadingFont: "Inter", BodyFont: "Inter"},
	BorderRadius: "1.5rem",
	SpacingUnit:  "4px",
}

func landingPage(title string) []uitree.Descriptor {
	if title == "" {
		title = "Untitled"
	}
	d := func(id, parent, kind, styles, content string, attrs map[string]string) uitree.Descriptor {
		desc := uitree.Descriptor{ID: id, ParentID: parent, Kind: kind, StyleTokens: styles, Attributes: attrs}
		if content != "" {
			desc.Content = uitree.String(content)
		}
		return desc
	}
	return []uitree.Descriptor{
		d("root", "", "div", "min-h-screen bg-slate-50 text-slate-900", "", nil),
		d("header", "root", "header", "flex items-center justify-between p-6", "", nil),
		d("title", "header", "h1", "text-3xl font-bold", title, nil),
		d("nav", "header", "nav", "flex gap-4", "", nil),
		d("nav-home", "nav", "a", "hover:underline", "Home", map[string]string{"href": "#"}),
		d("main", "root", "main", "mx-auto max-w-5xl space-y-12 p-6", "", nil),
		d("hero", "main", "section", "rounded-3xl bg-white/70 p-10 shadow-lg backdrop-blur-2xl", "", nil),
		d("hero-copy", "hero", "p", "text-lg", "Everything you need, in one place.", nil),
		d("signup", "main", "form", "flex flex-col gap-3 sm:flex-row", "", nil),
		d("email", "signup", "input", "flex-1 rounded-xl border px-4 py-2", "", map[string]string{"type": "email", "aria-label": "Email address"}),
		d("submit", "signup", "button", "rounded-xl bg-slate-900 px-6 py-2 text-white", "Get started", map[string]string{"type": "submit"}),
		d("footer", "root", "footer", "p-6 text-center text-sm text-slate-500", "Built with Aether", nil),
	}
}

func chunk(s string, size int) []string {
	if size <= 0 {
		size = 32
	}
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
