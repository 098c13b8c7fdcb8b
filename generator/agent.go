package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"aether_architect/uitree"
)

// Agent runs generation passes: it streams the model output through a fresh
// tree builder and reports every live tree along the way.
type Agent struct {
	llm    LLMClient
	logger *slog.Logger
}

func NewAgent(llm LLMClient, logger *slog.Logger) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{llm: llm, logger: logger}, nil
}

// BuildTree runs one pass for prompt and returns the settled tree. A
// cancelled context or a stream error abandons the pass; nothing derived
// during it is returned.
func (a *Agent) BuildTree(ctx context.Context, prompt Prompt, onPreview PreviewFunc) (*uitree.Node, error) {
	b := uitree.NewBuilder()
	previews := 0
	for fragment, err := range a.llm.Stream(ctx, prompt) {
		if err != nil {
			return nil, fmt.Errorf("generation stream: %w", err)
		}
		if tree, ok := b.Ingest(fragment); ok {
			previews++
			if onPreview != nil {
				onPreview(tree)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tree, err := b.Finish()
	a.logger.Debug("generation pass finished",
		"accepted", b.Accepted(),
		"skipped", b.Skipped(),
		"previews", previews)
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// DraftPRD runs the first planning stage for brief.
func (a *Agent) DraftPRD(ctx context.Context, brief Brief) (PRD, error) {
	reply, err := a.complete(ctx, BuildPRDPrompt(brief))
	if err != nil {
		return PRD{}, err
	}
	var prd PRD
	if err := decodePlanJSON(reply, &prd); err != nil {
		return PRD{}, fmt.Errorf("prd: %w", err)
	}
	prd = prd.normalize(brief)
	a.logger.Debug("prd drafted", "title", prd.Title, "app_type", prd.AppType, "features", len(prd.Features))
	return prd, nil
}

// DraftDesign runs the second planning stage: a design system for prd.
func (a *Agent) DraftDesign(ctx context.Context, brief Brief, prd PRD) (DesignSystem, error) {
	reply, err := a.complete(ctx, BuildDesignPrompt(brief, prd))
	if err != nil {
		return DesignSystem{}, err
	}
	var design DesignSystem
	if err := decodePlanJSON(reply, &design); err != nil {
		return DesignSystem{}, fmt.Errorf("design system: %w", err)
	}
	a.logger.Debug("design system drafted", "primary", design.Palette.Primary, "heading_font", design.Typography.HeadingFont)
	return design, nil
}

// complete collects a whole reply.
func (a *Agent) complete(ctx context.Context, prompt Prompt) (string, error) {
	var sb strings.Builder
	for fragment, err := range a.llm.Stream(ctx, prompt) {
		if err != nil {
			return "", fmt.Errorf("%s stream: %w", prompt.Stage, err)
		}
		sb.WriteString(fragment)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
