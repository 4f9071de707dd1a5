package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/config"
	"github.com/shopbridge/syncengine/internal/repository/postgres"
	"github.com/shopbridge/syncengine/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/check-usage/main.go <connection-id>")
		os.Exit(1)
	}

	connID, err := uuid.Parse(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid connection ID: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	usage := service.NewUsageLedger(repos, logger)

	ctx := context.Background()
	conn, err := repos.Connection.GetByID(ctx, connID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load connection: %v\n", err)
		os.Exit(1)
	}

	report, err := usage.GetUsageReport(ctx, conn.SupplierShop, conn.Tier)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to compute usage report: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Shop: %s\n", report.Shop)
	fmt.Printf("Tier: %s\n", report.Tier)
	fmt.Printf("Status: %s\n\n", report.Status)
	for _, r := range report.Resources {
		marker := " "
		if r.IsOverLimit {
			marker = "!"
		}
		fmt.Printf("%s %-25s %5d / %-6d (%.0f%%)\n", marker, r.Resource, r.CurrentUsage, r.Limit, r.PercentUsed)
	}
	fmt.Println("\nFeatures:")
	for feature, enabled := range report.Features {
		fmt.Printf("  %-20s %v\n", feature, enabled)
	}
}
