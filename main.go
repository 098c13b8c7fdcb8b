package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"aether_architect/config"
	"aether_architect/exporter"
	"aether_architect/generator"
	"aether_architect/server"
	"aether_architect/store"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml or config.json (mock provider when empty)")
	prompt := flag.String("prompt", "", "describe the interface to generate")
	vibe := flag.String("vibe", "", "aesthetic direction for --prompt")
	format := flag.String("format", string(exporter.HTML), "output format for --prompt: json, ndjson, html, outline, readme")
	serve := flag.Bool("serve", false, "start the HTTP API")
	mcpMode := flag.Bool("mcp", false, "serve the tree tools over MCP on stdin/stdout")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fail(err)
		}
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		fail(err)
	}
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	llm, err := generator.NewLLM(cfg.LLM)
	if err != nil {
		fail(err)
	}
	agent, err := generator.NewAgent(llm, logger)
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve || *mcpMode {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			fail(err)
		}
		defer db.Close()
		st, err := store.New(db)
		if err != nil {
			fail(err)
		}
		srv, err := server.New(agent, server.Options{
			Store:             st,
			Logger:            logger,
			GenerationTimeout: cfg.GenerationTimeout,
		})
		if err != nil {
			fail(err)
		}

		if *mcpMode {
			logger.Info("serving MCP on stdio", "provider", cfg.LLM.Provider)
			if err := srv.RunMCP(ctx); err != nil && ctx.Err() == nil {
				fail(err)
			}
			return
		}

		listen := cfg.ServerAddr
		if *addr != "" {
			listen = *addr
		}
		httpSrv := &http.Server{Addr: listen, Handler: srv.Routes()}
		go func() {
			<-ctx.Done()
			_ = httpSrv.Shutdown(context.Background())
		}()
		logger.Info("starting web server", "addr", listen, "provider", cfg.LLM.Provider, "db", cfg.DBPath)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fail(err)
		}
		return
	}

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "--prompt is required unless --serve or --mcp is set")
		os.Exit(2)
	}
	f, err := exporter.ParseFormat(*format)
	if err != nil {
		fail(err)
	}

	genCtx, cancel := context.WithTimeout(ctx, cfg.GenerationTimeout)
	defer cancel()
	sess := generator.NewSession("cli", generator.Brief{Prompt: *prompt, Vibe: *vibe}, agent)
	logger.Info("generating", "prompt", *prompt, "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	tree, err := sess.Propose(genCtx, nil)
	if err != nil {
		fail(err)
	}
	out, err := exporter.Export(tree, f)
	if err != nil {
		fail(err)
	}
	summary := generator.Summarize(tree)
	logger.Info("generation done", "title", summary.Title, "nodes", summary.Nodes, "depth", summary.Depth)
	fmt.Println(out)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
