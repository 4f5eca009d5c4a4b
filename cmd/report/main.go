package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/receipted/receipted-backend/internal/domain/analyzer"
	"github.com/receipted/receipted-backend/internal/infrastructure/config"
	"github.com/receipted/receipted-backend/internal/infrastructure/storage"
)

func main() {
	var (
		dbPath     string
		configFile string
		windowDays int
		limit      int
	)
	flag.StringVar(&dbPath, "db", "", "Path to database file (uses config if not specified)")
	flag.StringVar(&configFile, "config", "", "Configuration file path")
	flag.IntVar(&windowDays, "window", 30, "Analysis window in days")
	flag.IntVar(&limit, "limit", 10, "Maximum problematic merchants to list")
	flag.Parse()

	cfg := config.LoadOrEnv(configFile)
	if dbPath == "" {
		dbPath = cfg.Storage.DatabasePath
		if dbPath == "" {
			dbPath = "receipted.db" // fallback
		}
	}

	store, err := storage.NewStorage(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	a := analyzer.NewAnalyzer(store, cfg.AnalyzerConfig(), slog.Default())

	fmt.Println("📊 MATCHING PATTERN REPORT")
	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("Window: last %d days\n", windowDays)
	fmt.Printf("Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	fmt.Println("🔍 DETECTED PATTERNS")
	fmt.Println(strings.Repeat("-", 40))

	insights, err := a.AnalyzePatterns(windowDays)
	if err != nil {
		log.Fatalf("Error analyzing patterns: %v", err)
	}
	if len(insights) == 0 {
		fmt.Println("No recurring mismatch patterns found.")
	}
	for _, insight := range insights {
		fmt.Printf("[%s] %s\n", insight.Type, insight.Description)
		fmt.Printf("  Occurrences: %d\n", insight.Frequency)
		for _, example := range insight.Examples {
			fmt.Printf("  - %s\n", example)
		}
		fmt.Printf("  Recommendation: %s\n\n", insight.Recommendation)
	}

	fmt.Println("🏪 PROBLEMATIC MERCHANTS")
	fmt.Println(strings.Repeat("-", 40))

	merchants, err := a.ProblematicMerchants(limit)
	if err != nil {
		log.Fatalf("Error listing merchants: %v", err)
	}
	if len(merchants) == 0 {
		fmt.Println("No merchant pairs with repeated rejections.")
	}
	for _, m := range merchants {
		fmt.Printf("%s ↔ %s\n", m.ReceiptMerchant, m.ChargeMerchant)
		fmt.Printf("  Rejections: %d, Avg amount diff: $%.2f, Avg date diff: %.1f days\n",
			m.Frequency, m.AvgAmountDiff, m.AvgDateDiff)
	}
	fmt.Println()

	fmt.Println("💡 RECOMMENDATIONS")
	fmt.Println(strings.Repeat("-", 40))

	recommendations, err := a.GenerateRecommendations()
	if err != nil {
		log.Fatalf("Error generating recommendations: %v", err)
	}
	if len(recommendations) == 0 {
		fmt.Println("Nothing to recommend yet.")
	}
	for i, rec := range recommendations {
		fmt.Printf("%d. %s\n", i+1, rec)
	}
}
