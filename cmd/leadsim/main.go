package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"leadsim/internal/api"
	"leadsim/internal/flow"
	"leadsim/internal/genai"
	"leadsim/internal/intent"
	"leadsim/internal/store"
	"leadsim/internal/util"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Build module components
	categorizer := buildCategorizer(flags)
	st := buildStore(flags)
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close transcript store", "error", err)
		}
	}()

	engineOpts := buildEngineOptions(flags, st)
	engine, err := flow.NewEngine(categorizer, engineOpts...)
	if err != nil {
		slog.Error("Failed to create conversation engine", "error", err)
		os.Exit(1)
	}
	defer engine.Stop()
	engine.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping LeadSim with configured modules")
	slog.Debug("Final configuration", "api_addr", *flags.apiAddr, "dsn_set", *flags.dbDSN != "", "ai_enabled", *flags.aiEnabled)
	if err := api.NewServer(engine, st).Run(ctx, *flags.apiAddr); err != nil {
		slog.Error("LeadSim failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("LeadSim exited successfully")
}

// Config holds environment configuration
type Config struct {
	OpenAIKey       string
	APIAddr         string
	DatabaseDSN     string
	AIEnabled       bool
	LeadName        string
	LeadAddress     string
	LeadAppointment string
}

// Flags holds command line flag values
type Flags struct {
	openaiKey       *string
	apiAddr         *string
	dbDSN           *string
	aiEnabled       *bool
	leadName        *string
	leadAddress     *string
	leadAppointment *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		APIAddr:         os.Getenv("API_ADDR"),
		DatabaseDSN:     os.Getenv("LEADSIM_DB_DSN"),
		AIEnabled:       util.ParseBoolEnv("LEADSIM_AI_ENABLED", true),
		LeadName:        os.Getenv("LEADSIM_LEAD_NAME"),
		LeadAddress:     os.Getenv("LEADSIM_LEAD_ADDRESS"),
		LeadAppointment: os.Getenv("LEADSIM_LEAD_APPOINTMENT"),
	}

	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("DATABASE_URL")
		if config.DatabaseDSN != "" {
			slog.Debug("Using DATABASE_URL as LEADSIM_DB_DSN", "dsn_set", true)
		}
	}

	slog.Debug("environment variables loaded",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"LEADSIM_DB_DSN_SET", config.DatabaseDSN != "",
		"LEADSIM_AI_ENABLED", config.AIEnabled,
		"LEADSIM_LEAD_NAME", config.LeadName,
		"LEADSIM_LEAD_ADDRESS", config.LeadAddress,
		"LEADSIM_LEAD_APPOINTMENT", config.LeadAppointment)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		openaiKey:       flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseDSN, "transcript database DSN; empty keeps transcripts in memory (overrides $LEADSIM_DB_DSN or $DATABASE_URL)"),
		aiEnabled:       flag.Bool("ai-enabled", config.AIEnabled, "start sessions with AI categorization enabled (overrides $LEADSIM_AI_ENABLED)"),
		leadName:        flag.String("lead-name", config.LeadName, "simulated lead first name (overrides $LEADSIM_LEAD_NAME)"),
		leadAddress:     flag.String("lead-address", config.LeadAddress, "simulated lead address (overrides $LEADSIM_LEAD_ADDRESS)"),
		leadAppointment: flag.String("lead-appointment", config.LeadAppointment, "simulated lead appointment wording (overrides $LEADSIM_LEAD_APPOINTMENT)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"dbDSN_set", *flags.dbDSN != "",
		"aiEnabled", *flags.aiEnabled,
		"leadName", *flags.leadName,
		"leadAddress", *flags.leadAddress,
		"leadAppointment", *flags.leadAppointment)

	return flags
}

// buildCategorizer constructs the intent classifier, with the OpenAI-backed
// path enabled only when an API key is configured.
func buildCategorizer(flags Flags) *intent.Classifier {
	if *flags.openaiKey == "" {
		slog.Info("No OpenAI API key configured, free-text categorization uses rules only")
		return intent.NewClassifier(nil)
	}

	client, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
	if err != nil {
		slog.Error("Failed to create OpenAI client, falling back to rules only", "error", err)
		return intent.NewClassifier(nil)
	}
	return intent.NewClassifier(client)
}

// buildStore selects the transcript store backend from the DSN.
func buildStore(flags Flags) store.Store {
	dsn := *flags.dbDSN
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory transcript store")
		return store.NewInMemoryStore()
	}

	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL transcript store", "dsn_type", "postgresql", "dsn_set", true)
		st, err := store.NewPostgresStore(store.WithDSN(dsn))
		if err != nil {
			slog.Error("Failed to open PostgreSQL store, using in-memory transcript store", "error", err)
			return store.NewInMemoryStore()
		}
		return st
	}

	slog.Debug("Detected SQLite DSN, configuring SQLite transcript store", "dsn_type", "sqlite", "db_path", dsn)
	st, err := store.NewSQLiteStore(store.WithDSN(dsn))
	if err != nil {
		slog.Error("Failed to open SQLite store, using in-memory transcript store", "error", err)
		return store.NewInMemoryStore()
	}
	return st
}

// buildEngineOptions constructs conversation engine configuration options
func buildEngineOptions(flags Flags, st store.Store) []flow.EngineOption {
	opts := []flow.EngineOption{
		flow.WithRecorder(st),
		flow.WithAIDefault(*flags.aiEnabled),
	}

	if *flags.leadName != "" || *flags.leadAddress != "" || *flags.leadAppointment != "" {
		profile := flow.DefaultLeadProfile
		if *flags.leadName != "" {
			profile.FirstName = *flags.leadName
		}
		if *flags.leadAddress != "" {
			profile.Address = *flags.leadAddress
		}
		if *flags.leadAppointment != "" {
			profile.Appointment = *flags.leadAppointment
		}
		opts = append(opts, flow.WithProfile(profile))
	}

	return opts
}
