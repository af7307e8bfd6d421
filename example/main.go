// Example usage of the insights client.
//
// Run with:
//
//	ADLYTICS_TOKEN=... ADLYTICS_ACCOUNT=... go run ./example
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	insights "github.com/adlytics/insights-client"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	client, err := insights.New(insights.Config{
		AccessToken: os.Getenv("ADLYTICS_TOKEN"),
		AccountID:   os.Getenv("ADLYTICS_ACCOUNT"),
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("create client: %v", err)
	}

	ctx := context.Background()

	// Small report: served synchronously, falls back to an async job only
	// if the API refuses the direct request.
	result, err := client.RequestInsights(ctx, insights.Request{
		Fields:    []string{"campaign_id", "impressions", "clicks", "spend"},
		DateStart: "2026-08-01",
		DateStop:  "2026-08-21",
		Level:     "campaign",
		Simplify:  true,
	})
	if err != nil {
		log.Fatalf("request insights: %v", err)
	}
	fmt.Printf("columns: %v\n", result.Table.Columns)
	fmt.Printf("rows: %d\n", len(result.Table.Rows))

	// Large report: forced async job with polling and pagination.
	result, err = client.RequestInsights(ctx, insights.Request{
		Fields:    []string{"ad_id", "impressions", "actions"},
		DateStart: "2026-01-01",
		DateStop:  "2026-08-21",
		Level:     "ad",
		Mode:      insights.ModeAsync,
	})
	if err != nil {
		log.Fatalf("request insights: %v", err)
	}
	fmt.Printf("pages: %d, rows: %d\n", len(result.Pages), len(result.Rows()))

	stats := client.Stats()
	fmt.Printf("api calls: %d (success rate %.2f)\n", stats.TotalCalls, stats.SuccessRate)
}
