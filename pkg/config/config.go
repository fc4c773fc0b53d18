// Package config loads runtime configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries everything main needs to wire the server together.
// Tool credentials are optional; a tool whose credentials are missing
// is simply not registered.
type Config struct {
	Addr   string
	DBPath string

	GeminiAPIKey string
	Model        string
	SummaryModel string

	// InstructionsFile optionally overrides the built-in agent policy.
	InstructionsFile string

	MaxMessages    int
	RetainMessages int

	// Log query tool (Postgres).
	SupportDBURL string

	// Knowledge base retrieval (Pinecone).
	PineconeAPIKey    string
	PineconeIndex     string
	PineconeNamespace string

	// Ticketing (Zoho Desk).
	DeskBaseURL      string
	DeskTokenURL     string
	DeskRefreshToken string
	DeskClientID     string
	DeskClientSecret string
	DeskOrgID        string
	DeskDepartmentID string
	DeskContactID    string
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present.
func Load() Config {
	// Ignore the error: a missing .env file is fine.
	_ = godotenv.Load()

	return Config{
		Addr:   getenv("RESOLUTE_ADDR", ":8080"),
		DBPath: getenv("RESOLUTE_DB", "resolute.db"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		Model:        getenv("RESOLUTE_MODEL", "gemini-2.0-flash"),
		SummaryModel: os.Getenv("RESOLUTE_SUMMARY_MODEL"),

		InstructionsFile: os.Getenv("RESOLUTE_INSTRUCTIONS_FILE"),

		MaxMessages:    getint("RESOLUTE_MAX_MESSAGES", 0),
		RetainMessages: getint("RESOLUTE_RETAIN_MESSAGES", 0),

		SupportDBURL: os.Getenv("SUPPORT_DB_URL"),

		PineconeAPIKey:    os.Getenv("PINECONE_API_KEY"),
		PineconeIndex:     os.Getenv("PINECONE_INDEX"),
		PineconeNamespace: os.Getenv("PINECONE_NAMESPACE"),

		DeskBaseURL:      os.Getenv("DESK_BASE_URL"),
		DeskTokenURL:     getenv("DESK_TOKEN_URL", "https://accounts.zoho.in/oauth/v2/token"),
		DeskRefreshToken: os.Getenv("DESK_REFRESH_TOKEN"),
		DeskClientID:     os.Getenv("DESK_CLIENT_ID"),
		DeskClientSecret: os.Getenv("DESK_CLIENT_SECRET"),
		DeskOrgID:        os.Getenv("DESK_ORG_ID"),
		DeskDepartmentID: os.Getenv("DESK_DEPARTMENT_ID"),
		DeskContactID:    os.Getenv("DESK_CONTACT_ID"),
	}
}

// TicketingConfigured reports whether the Zoho Desk credentials needed
// by the ticket tools are all present.
func (c Config) TicketingConfigured() bool {
	return c.DeskBaseURL != "" &&
		c.DeskRefreshToken != "" &&
		c.DeskClientID != "" &&
		c.DeskClientSecret != "" &&
		c.DeskOrgID != ""
}

// KnowledgeConfigured reports whether the Pinecone retrieval tools can
// be registered.
func (c Config) KnowledgeConfigured() bool {
	return c.PineconeAPIKey != "" && c.PineconeIndex != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
