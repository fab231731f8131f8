package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"studio/internal/infra"
	"studio/internal/orders"
	"studio/internal/pipeline"
	"studio/internal/status"
)

func main() {
	_ = godotenv.Load()

	var (
		idFlag     string
		secretFlag string
		showFlag   bool
	)
	flag.StringVar(&idFlag, "id", "", "order ID to mark completed (UUID)")
	flag.StringVar(&secretFlag, "secret", "", "admin secret (defaults to ADMIN_SECRET)")
	flag.BoolVar(&showFlag, "show", false, "print the order status without changing it")
	flag.Parse()

	orderID := strings.TrimSpace(idFlag)
	if orderID == "" {
		exitWithError(errors.New("-id is required"))
	}
	adminSecret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	secret := strings.TrimSpace(secretFlag)
	if secret == "" {
		secret = adminSecret
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "ordermark").Str("order_id", orderID).Logger()
	store := orders.NewPostgresStore(infra.NewSQLRunner(pool, logger))

	if showFlag {
		printStatus(ctx, status.NewService(store), orderID)
		return
	}

	manager := pipeline.NewManager(pipeline.Options{
		Store:       store,
		AdminSecret: adminSecret,
		Logger:      &logger,
	})
	order, err := manager.MarkCompleted(ctx, orderID, secret)
	if err != nil {
		exitWithError(fmt.Errorf("failed to mark order completed: %w", err))
	}
	fmt.Printf("Order %s marked %s\n", order.ID, order.Status)
	fmt.Printf("result_location=%s\n", order.ResultLocation)
}

func printStatus(ctx context.Context, svc *status.Service, orderID string) {
	view, err := svc.StatusOf(ctx, orderID)
	if err != nil {
		exitWithError(fmt.Errorf("failed to load order: %w", err))
	}
	fmt.Printf("Order %s is %s\n", view.OrderID, view.Status)
	if view.ResultLocation != "" {
		fmt.Printf("result_location=%s\n", view.ResultLocation)
	}
	if view.FailureReason != "" {
		fmt.Printf("failure_reason=%s\n", view.FailureReason)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
