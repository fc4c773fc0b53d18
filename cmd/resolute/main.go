package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mpatwa/resolute/pkg/config"
	"github.com/mpatwa/resolute/pkg/engine"
	"github.com/mpatwa/resolute/pkg/model/gemini"
	"github.com/mpatwa/resolute/pkg/server"
	"github.com/mpatwa/resolute/pkg/store/sqlite"
	"github.com/mpatwa/resolute/pkg/tool"
	"github.com/mpatwa/resolute/pkg/tools/knowledge"
	"github.com/mpatwa/resolute/pkg/tools/nlsql"
	"github.com/mpatwa/resolute/pkg/tools/resolution"
	"github.com/mpatwa/resolute/pkg/tools/ticketing"
)

func main() {
	// Setup logger.
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
	slog.SetDefault(logger)

	// Config.
	cfg := config.Load()
	if cfg.GeminiAPIKey == "" {
		slog.Error("GEMINI_API_KEY environment variable not set")
		os.Exit(1)
	}

	ctx := context.Background()

	// Initialize store.
	threads, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer threads.Close()

	// Initialize model provider.
	provider, err := gemini.New(ctx, cfg.GeminiAPIKey)
	if err != nil {
		slog.Error("Failed to initialize Gemini provider", "error", err)
		os.Exit(1)
	}

	// Register tools. Tools whose backing services are not configured
	// are skipped so the agent can still run with a reduced toolset.
	registry := tool.NewRegistry()

	if cfg.KnowledgeConfigured() {
		kb, err := knowledge.NewService(cfg.PineconeAPIKey, provider, cfg.PineconeIndex, cfg.PineconeNamespace)
		if err != nil {
			slog.Error("Failed to initialize knowledge base", "error", err)
			os.Exit(1)
		}
		if err := registry.Register(kb.Spec(), kb.Call); err != nil {
			slog.Error("Failed to register tool", "error", err)
			os.Exit(1)
		}
		ir := resolution.New(kb)
		if err := registry.Register(ir.Spec(), ir.Call); err != nil {
			slog.Error("Failed to register tool", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("Pinecone not configured, knowledge base tools disabled")
	}

	if cfg.SupportDBURL != "" {
		lq, err := nlsql.New(cfg.SupportDBURL, provider, cfg.Model)
		if err != nil {
			slog.Error("Failed to initialize log query tool", "error", err)
			os.Exit(1)
		}
		defer lq.Close()
		if err := registry.Register(lq.Spec(), lq.Call); err != nil {
			slog.Error("Failed to register tool", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("SUPPORT_DB_URL not set, log query tool disabled")
	}

	if cfg.TicketingConfigured() {
		desk := ticketing.NewClient(ticketing.Config{
			BaseURL:      cfg.DeskBaseURL,
			OrgID:        cfg.DeskOrgID,
			DepartmentID: cfg.DeskDepartmentID,
			ContactID:    cfg.DeskContactID,
			Credentials: ticketing.CredentialConfig{
				TokenURL:     cfg.DeskTokenURL,
				RefreshToken: cfg.DeskRefreshToken,
				ClientID:     cfg.DeskClientID,
				ClientSecret: cfg.DeskClientSecret,
			},
		}, nil)
		if err := registry.Register(ticketing.CreateSpec(), desk.CallCreate); err != nil {
			slog.Error("Failed to register tool", "error", err)
			os.Exit(1)
		}
		if err := registry.Register(ticketing.StatusSpec(), desk.CallStatus); err != nil {
			slog.Error("Failed to register tool", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("Zoho Desk not configured, ticketing tools disabled")
	}

	// Optional policy override.
	instructions := ""
	if cfg.InstructionsFile != "" {
		b, err := os.ReadFile(cfg.InstructionsFile)
		if err != nil {
			slog.Error("Failed to read instructions file", "error", err)
			os.Exit(1)
		}
		instructions = string(b)
	}

	// Initialize engine.
	eng := engine.New(threads, provider, registry, engine.Options{
		Model:          cfg.Model,
		SummaryModel:   cfg.SummaryModel,
		Instructions:   instructions,
		MaxMessages:    cfg.MaxMessages,
		RetainMessages: cfg.RetainMessages,
	})

	// Start server.
	srv := server.New(eng, threads, registry)
	if err := srv.Start(cfg.Addr); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
