package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/usememos/supportbot/internal/profile"
	"github.com/usememos/supportbot/server"
	"github.com/usememos/supportbot/store"
	"github.com/usememos/supportbot/store/db"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "supportbot",
	Short: `A TaskFlow customer support assistant with retrieval, memory and ticket escalation.`,
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:              viper.GetString("mode"),
			Addr:              viper.GetString("addr"),
			Port:              viper.GetInt("port"),
			Data:              viper.GetString("data"),
			Driver:            viper.GetString("driver"),
			DSN:               viper.GetString("dsn"),
			Version:           version,
			OpenRouterAPIKey:  viper.GetString("openrouter-api-key"),
			OpenRouterURL:     viper.GetString("openrouter-url"),
			AIModel:           viper.GetString("ai-model"),
			EmbeddingModel:    viper.GetString("embedding-model"),
			MemoryBackend:     viper.GetString("memory-backend"),
			MemoryMaxMessages: viper.GetInt("memory-max-messages"),
			RetrievalTopK:     viper.GetInt("retrieval-top-k"),
			EscalationMode:    viper.GetString("escalation-mode"),
			RequestTimeout:    viper.GetDuration("request-timeout"),
			SeedSampleData:    viper.GetBool("seed"),
		}
		if err := instanceProfile.Validate(); err != nil {
			panic(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			cancel()
			slog.Error("failed to create db driver", "error", err)
			return
		}

		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			cancel()
			slog.Error("failed to migrate", "error", err)
			return
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance)
		if err != nil {
			cancel()
			slog.Error("failed to create server", "error", err)
			return
		}

		c := make(chan os.Signal, 1)
		// Trigger graceful shutdown on SIGINT or SIGTERM.
		// The default signal sent by the `kill` command is SIGTERM,
		// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)

		if err := s.Start(ctx); err != nil {
			cancel()
			slog.Error("failed to start server", "error", err)
			return
		}

		printGreetings(instanceProfile)

		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()
		}()

		// Wait for CTRL-C.
		<-ctx.Done()
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8080)
	viper.SetDefault("ai-model", "openai/gpt-4o-mini")
	viper.SetDefault("memory-backend", profile.MemoryBackendStore)
	viper.SetDefault("memory-max-messages", 20)
	viper.SetDefault("retrieval-top-k", 3)
	viper.SetDefault("escalation-mode", profile.EscalationRule)
	viper.SetDefault("request-timeout", "60s")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8080, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver: sqlite, mysql or postgres")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("openrouter-api-key", "", "OpenRouter API key, support chat is disabled without it")
	rootCmd.PersistentFlags().String("openrouter-url", "https://openrouter.ai/api/v1", "OpenAI-compatible API base URL")
	rootCmd.PersistentFlags().String("ai-model", "openai/gpt-4o-mini", "chat model")
	rootCmd.PersistentFlags().String("embedding-model", "", "embedding model, a local hash embedding is used when empty")
	rootCmd.PersistentFlags().String("memory-backend", profile.MemoryBackendStore, `conversation memory backend, "memory" or "store"`)
	rootCmd.PersistentFlags().Int("memory-max-messages", 20, "messages kept per conversation")
	rootCmd.PersistentFlags().Int("retrieval-top-k", 3, "knowledge chunks added to each prompt")
	rootCmd.PersistentFlags().String("escalation-mode", profile.EscalationRule, `ticket escalation, "rule" or "tool"`)
	rootCmd.PersistentFlags().Duration("request-timeout", 0, "deadline of one support exchange")
	rootCmd.PersistentFlags().Bool("seed", false, "seed sample customers and tickets into an empty database")

	for _, name := range []string{
		"mode", "addr", "port", "data", "driver", "dsn",
		"openrouter-api-key", "openrouter-url", "ai-model", "embedding-model",
		"memory-backend", "memory-max-messages", "retrieval-top-k", "escalation-mode",
		"request-timeout", "seed",
	} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("supportbot")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindEnv("openrouter-api-key", "SUPPORTBOT_OPENROUTER_API_KEY", "OPENROUTER_API_KEY"); err != nil {
		panic(err)
	}
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("Support bot %s started successfully!\n", profile.Version)
	if profile.IsDev() {
		fmt.Fprintf(os.Stderr, "Development mode is enabled\n")
		fmt.Fprintf(os.Stderr, "Database: %s (%s)\n", profile.Driver, profile.DSN)
	}
	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Escalation mode: %s\n", profile.EscalationMode)
	fmt.Printf("Server running on port %d\n", profile.Port)
}

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
