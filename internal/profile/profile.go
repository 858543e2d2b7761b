package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the support bot.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo".
	Mode string
	// Addr is the binding address for server.
	Addr string
	// Port is the binding port for server.
	Port int
	// Data is the data directory.
	Data string
	// Driver is the database driver: sqlite, mysql or postgres.
	Driver string
	// DSN points to where the bot stores its data.
	DSN string
	// Version is the current version of the server.
	Version string

	OpenRouterAPIKey string
	OpenRouterURL    string
	AIModel          string
	EmbeddingModel   string

	// MemoryBackend selects where conversation windows live: "memory" or "store".
	MemoryBackend     string
	MemoryMaxMessages int
	RetrievalTopK     int
	// EscalationMode is "rule" for the keyword advisor or "tool" for the
	// model-invoked create_ticket tool.
	EscalationMode string
	RequestTimeout time.Duration
	SeedSampleData bool
}

const (
	EscalationRule = "rule"
	EscalationTool = "tool"

	MemoryBackendMemory = "memory"
	MemoryBackendStore  = "store"
)

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate fills in defaults and checks the data directory.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/supportbot"
		if err := os.MkdirAll(p.Data, 0770); err != nil {
			slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("supportbot_%s.db", p.Mode))
	}
	if p.OpenRouterURL == "" {
		p.OpenRouterURL = "https://openrouter.ai/api/v1"
	}
	if p.MemoryBackend != MemoryBackendMemory {
		p.MemoryBackend = MemoryBackendStore
	}
	if p.MemoryMaxMessages <= 0 {
		p.MemoryMaxMessages = 20
	}
	if p.RetrievalTopK <= 0 {
		p.RetrievalTopK = 3
	}
	switch p.EscalationMode {
	case EscalationRule, EscalationTool:
	case "":
		p.EscalationMode = EscalationRule
	default:
		return errors.Errorf("unknown escalation mode %q", p.EscalationMode)
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = 60 * time.Second
	}
	return nil
}
