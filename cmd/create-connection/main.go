package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/shopbridge/syncengine/internal/config"
	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/internal/repository/postgres"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 5 {
		fmt.Println("Usage: go run cmd/create-connection/main.go <supplier-shop> <retailer-shop> <tier> <api-key>")
		fmt.Println("Example: go run cmd/create-connection/main.go \"supplier.myshopify.com\" \"retailer.myshopify.com\" FREE \"conn-api-key-12345\"")
		os.Exit(1)
	}

	supplierShop := os.Args[1]
	retailerShop := os.Args[2]
	tier := domain.Tier(os.Args[3])
	apiKey := os.Args[4]

	if !tier.IsValid() {
		fmt.Fprintf(os.Stderr, "Invalid tier %q, expected one of %v\n", os.Args[3], domain.TierOrder)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// Connect to database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	// Hash the API key
	apiKeyHash, err := bcrypt.GenerateFromPassword([]byte(apiKey), 10)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash API key: %v\n", err)
		os.Exit(1)
	}

	// Create repositories
	repos := postgres.NewRepositories(db, logger)

	conn := &domain.Connection{
		SupplierShop:     supplierShop,
		RetailerShop:     retailerShop,
		Status:           domain.ConnectionStatusActive,
		PaymentTermsType: "NET_30",
		Tier:             tier,
		APIKeyHash:       string(apiKeyHash),
	}

	if err := repos.Connection.Create(context.Background(), conn); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create connection: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Connection created successfully!\n\n")
	fmt.Printf("Connection ID: %s\n", conn.ID.String())
	fmt.Printf("Supplier: %s\n", conn.SupplierShop)
	fmt.Printf("Retailer: %s\n", conn.RetailerShop)
	fmt.Printf("Tier: %s\n", conn.Tier)
	fmt.Printf("\nSave this API key securely, it is not retrievable later.\n")
	fmt.Printf("Authorization: Bearer %s\n", apiKey)
}
