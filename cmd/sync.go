package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/redbirdapp/redbird/internal/model"
	"github.com/redbirdapp/redbird/internal/service"
	"github.com/redbirdapp/redbird/internal/store"
)

var syncYear string
var syncBillID string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync California bills from the OpenStates API",
	Long: `Sync downloads California legislative bills from the OpenStates API,
generates AI summaries for bills that have none, and stores everything
in PostgreSQL.

Examples:
  # Sync the current legislative session
  ./redbird sync

  # Sync the session containing a specific year
  ./redbird sync --year 2024

  # Sync every session back to 2011
  ./redbird sync --year all

  # Fetch and store a single bill
  ./redbird sync --bill ocd-bill/abc123`,
	Run: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVarP(&syncYear, "year", "y", "", "Year or session selector (year, \"all\", or empty for the current session)")
	syncCmd.Flags().StringVarP(&syncBillID, "bill", "b", "", "Sync a single bill by its OpenStates id")
}

func runSync(cmd *cobra.Command, args []string) {
	// Get database URL from environment
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	apiKey := os.Getenv("OPENSTATES_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENSTATES_API_KEY environment variable is required")
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	// Connect to database
	log.Println("Connecting to database...")
	db, err := store.NewDB(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Create dependencies
	client := service.NewOpenStatesClient(apiKey)
	summarizer := service.NewOpenAIClient(os.Getenv("OPENAI_API_KEY"))
	if !summarizer.Configured() {
		log.Println("OPENAI_API_KEY not set, AI enrichment disabled")
	}
	normalizer := service.NewNormalizer()
	billStore := store.NewBillStore(db)
	cacheStore := store.NewCacheStore(db)
	runStore := store.NewSyncRunStore(db)
	ingestor := service.NewIngestor(client, summarizer, normalizer, billStore, cacheStore, runStore)

	// Handle single bill sync
	if syncBillID != "" {
		log.Printf("Fetching bill %s...", syncBillID)
		bill, err := ingestor.EnsureBill(ctx, syncBillID)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("Sync cancelled")
				os.Exit(1)
			}
			log.Fatalf("Failed to sync bill: %v", err)
		}
		if bill == nil {
			log.Fatalf("Bill %s not found", syncBillID)
		}
		log.Printf("Stored %s (%s), status: %s", bill.Identifier, bill.BillID, bill.Status)
		return
	}

	// Run session sync
	selector := syncYear
	if selector == "" {
		log.Println("Starting sync for the current session...")
	} else {
		log.Printf("Starting sync for selector %q...", selector)
	}

	stats, err := ingestor.IngestSession(ctx, selector, model.TriggerManual)
	if err != nil {
		if ctx.Err() != nil {
			log.Println("Sync cancelled")
			ingestor.PrintSummary(stats)
			os.Exit(1)
		}
		log.Fatalf("Sync failed: %v", err)
	}
	ingestor.PrintSummary(stats)

	// Exit with error code if there were failures
	if stats.Errors > 0 {
		os.Exit(1)
	}
}
