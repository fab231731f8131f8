package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"studio/internal/infra"
	"studio/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
		deleteFlag   bool
	)
	flag.StringVar(&keyFlag, "key", "", "API token for the selected provider (falls back to environment)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderRunDiffusion, "provider to configure (rundiffusion or huggingface)")
	flag.BoolVar(&deleteFlag, "delete", false, "remove the stored token instead of setting it")
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	switch provider {
	case credentials.ProviderRunDiffusion, credentials.ProviderHuggingFace:
	case "":
		provider = credentials.ProviderRunDiffusion
	default:
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" && !deleteFlag {
		switch provider {
		case credentials.ProviderHuggingFace:
			key = strings.TrimSpace(os.Getenv("HUGGINGFACE_TOKEN"))
		default:
			key = strings.TrimSpace(os.Getenv("RUNDIFFUSION_API_KEY"))
		}
		if key == "" {
			fmt.Fprintf(os.Stderr, "%s token is required via -key or environment\n", provider)
			os.Exit(1)
		}
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "providerkey").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if deleteFlag {
		if err := store.DeleteToken(ctx, provider); err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete %s token: %v\n", provider, err)
			os.Exit(1)
		}
		fmt.Printf("%s token removed\n", provider)
		return
	}
	if err := store.SetToken(ctx, provider, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s token: %v\n", provider, err)
		os.Exit(1)
	}
	fmt.Printf("%s token stored successfully\n", provider)
}
