package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"aether_architect/exporter"
	"aether_architect/generator"
	"aether_architect/uitree"
)

// Implementation identifies the MCP server.
var Implementation = &mcp.Implementation{Name: "aether-architect", Version: "0.1.0"}

// NewMCPServer returns an MCP server with the tree tools registered.
func (s *Server) NewMCPServer() *mcp.Server {
	srv := mcp.NewServer(Implementation, nil)
	s.RegisterMCP(srv)
	return srv
}

// RunMCP serves the tree tools over stdin/stdout until ctx is done.
func (s *Server) RunMCP(ctx context.Context) error {
	return s.NewMCPServer().Run(ctx, &mcp.StdioTransport{})
}

// RegisterMCP registers the tree tools on srv.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.registerTool(srv, &mcp.Tool{
		Name:        "tree_generate",
		Description: "Generate an interface tree from a description. Returns the new session.",
		InputSchema: inputSchema(map[string]any{
			"prompt": map[string]any{"type": "string", "description": "What to build"},
			"vibe":   map[string]any{"type": "string", "description": "Aesthetic direction"},
		}, []string{"prompt"}),
	}, func(ctx context.Context, args toolArgs) (any, error) {
		sess, err := s.CreateSession(ctx, generator.Brief{Prompt: args.Prompt, Vibe: args.Vibe}, nil)
		if err != nil {
			return nil, err
		}
		return sess.State(), nil
	})

	s.registerTool(srv, &mcp.Tool{
		Name:        "tree_regenerate",
		Description: "Build a fresh tree from the session's PRD and design system. Clears the edit history.",
		InputSchema: inputSchema(map[string]any{"session_id": sessionProp}, []string{"session_id"}),
	}, func(ctx context.Context, args toolArgs) (any, error) {
		sess, err := s.Regenerate(ctx, args.SessionID, nil)
		if err != nil {
			return nil, err
		}
		return sess.State(), nil
	})

	s.registerTool(srv, &mcp.Tool{
		Name:        "tree_get",
		Description: "Return the current tree and history state of a session.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionProp,
		}, []string{"session_id"}),
	}, func(ctx context.Context, args toolArgs) (any, error) {
		sess, err := s.session(ctx, args.SessionID)
		if err != nil {
			return nil, err
		}
		return sess.State(), nil
	})

	s.registerTool(srv, &mcp.Tool{
		Name:        "tree_patch",
		Description: "Overwrite fields of one node. Only the fields given are changed.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionProp,
			"id":         map[string]any{"type": "string", "description": "Node id"},
			"type":       map[string]any{"type": "string"},
			"styles":     map[string]any{"type": "string"},
			"content":    map[string]any{"type": "string"},
			"attributes": map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
			"transform":  map[string]any{"type": "string", "enum": []string{"uppercase", "lowercase", "capitalize", "normal-case"}},
		}, []string{"session_id", "id"}),
	}, func(ctx context.Context, args toolArgs) (any, error) {
		sess, err := s.session(ctx, args.SessionID)
		if err != nil {
			return nil, err
		}
		if err := applyPatch(sess, args.patchReq); err != nil {
			return nil, err
		}
		return sess.State(), nil
	})

	s.registerTool(srv, &mcp.Tool{
		Name:        "tree_move",
		Description: "Move a node and its subtree inside, before or after a target node.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionProp,
			"dragged":    map[string]any{"type": "string", "description": "Id of the node to move"},
			"target":     map[string]any{"type": "string", "description": "Id of the reference node"},
			"position":   map[string]any{"type": "string", "enum": []string{"inside", "before", "after"}},
		}, []string{"session_id", "dragged", "target", "position"}),
	}, func(ctx context.Context, args toolArgs) (any, error) {
		sess, err := s.session(ctx, args.SessionID)
		if err != nil {
			return nil, err
		}
		pos, err := uitree.ParsePosition(args.Position)
		if err != nil {
			return nil, err
		}
		if _, err := sess.Move(args.Dragged, args.Target, pos); err != nil {
			return nil, err
		}
		return sess.State(), nil
	})

	s.registerTool(srv, &mcp.Tool{
		Name:        "tree_undo",
		Description: "Step back one edit.",
		InputSchema: inputSchema(map[string]any{"session_id": sessionProp}, []string{"session_id"}),
	}, s.stepTool((*generator.Session).Undo))

	s.registerTool(srv, &mcp.Tool{
		Name:        "tree_redo",
		Description: "Step forward one edit.",
		InputSchema: inputSchema(map[string]any{"session_id": sessionProp}, []string{"session_id"}),
	}, s.stepTool((*generator.Session).Redo))

	s.registerTool(srv, &mcp.Tool{
		Name:        "tree_export",
		Description: "Render the current tree as json, ndjson, html, outline or readme.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionProp,
			"format":     map[string]any{"type": "string", "enum": exporter.Formats()},
		}, []string{"session_id", "format"}),
	}, func(ctx context.Context, args toolArgs) (any, error) {
		format, err := exporter.ParseFormat(args.Format)
		if err != nil {
			return nil, err
		}
		out, err := s.Export(ctx, args.SessionID, format)
		if err != nil {
			return nil, err
		}
		return rawText(out), nil
	})
}

var sessionProp = map[string]any{"type": "string", "description": "Session id"}

// toolArgs is the union of every tool's arguments.
type toolArgs struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
	Vibe      string `json:"vibe"`
	Dragged   string `json:"dragged"`
	Target    string `json:"target"`
	Position  string `json:"position"`
	Format    string `json:"format"`
	patchReq
}

// rawText is returned as-is instead of being JSON encoded.
type rawText string

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (s *Server) stepTool(step func(*generator.Session) (*uitree.Node, bool, error)) func(context.Context, toolArgs) (any, error) {
	return func(ctx context.Context, args toolArgs) (any, error) {
		sess, err := s.session(ctx, args.SessionID)
		if err != nil {
			return nil, err
		}
		_, moved, err := step(sess)
		if err != nil {
			return nil, err
		}
		return stepResp{Moved: moved, State: sess.State()}, nil
	}
}

func (s *Server) registerTool(srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, toolArgs) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args toolArgs
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("%s: invalid arguments: %w", tool.Name, err))
				return &res, nil
			}
		}

		resp, err := endpoint(ctx, args)
		if err != nil {
			s.logger.Debug("mcp tool failed", "tool", tool.Name, "error", err)
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		if text, ok := resp.(rawText); ok {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
			}, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}
