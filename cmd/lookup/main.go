package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/providerlens/providerlens/internal/browser"
	"github.com/providerlens/providerlens/internal/config"
	"github.com/providerlens/providerlens/internal/observability"
	"github.com/providerlens/providerlens/internal/services/aggregate"
	"github.com/providerlens/providerlens/internal/sources"
)

func main() {
	name := flag.String("name", "", "Provider name, e.g. \"Sarah Johnson\"")
	specialty := flag.String("specialty", "Family Medicine", "Provider specialty")
	address := flag.String("address", "", "Known practice address (narrows the directory region)")
	output := flag.String("output", "", "Output file for the JSON record (empty for stdout)")
	headless := flag.Bool("headless", true, "Run the browser headless")
	verbose := flag.Bool("verbose", false, "Verbose logging")
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "usage: lookup -name \"First Last\" [-specialty ...] [-address ...]")
		os.Exit(2)
	}

	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Browser.Headless = *headless

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	bold := color.New(color.Bold)
	bold.Printf("Looking up: %s (%s)\n", *name, *specialty)

	session, err := browser.NewSession(cfg.Browser, logger.Named("browser"))
	if err != nil {
		color.Red("Failed to launch browser: %v", err)
		os.Exit(1)
	}
	defer session.Close()

	collab := aggregate.Collaborators{
		Registry: sources.NewRegistryClient(cfg.Registry, logger),
		Places:   sources.NewPlacesClient(cfg.Places, logger),
		WebDir:   sources.NewWebDirClient(cfg.WebDir, logger),
	}
	if !collab.Places.Configured() {
		color.Yellow("GOOGLE_PLACES_API_KEY not set, skipping places lookup")
	}

	metrics := observability.InitMetrics(cfg.App.Name)
	svc := aggregate.NewService(session, collab, cfg, metrics, logger.Named("lookup"))

	bar := progressbar.NewOptions(cfg.Crawl.MaxPages,
		progressbar.OptionSetDescription("crawling directory"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	svc.SetCrawlProgress(func(done, total int) {
		bar.ChangeMax(total)
		bar.Set(done)
	})

	start := time.Now()
	result, err := svc.Lookup(context.Background(), aggregate.LookupRequest{
		Name:      *name,
		Specialty: *specialty,
		Address:   *address,
	})
	bar.Finish()
	if err != nil {
		color.Red("Lookup failed: %v", err)
		os.Exit(1)
	}

	record := result.Record
	fmt.Println()
	if !result.Matched {
		color.Yellow("No directory profile matched; showing passive data only")
	}
	bold.Println("Provider Record")
	fmt.Printf("├── Name: %s\n", record.Name)
	fmt.Printf("├── Specialty: %s\n", record.Specialty)
	fmt.Printf("├── Address: %s\n", orDash(record.Address))
	fmt.Printf("├── Phone: %s\n", orDash(record.Phone))
	fmt.Printf("├── NPI: %s\n", orDash(record.LicenseNumber))
	fmt.Printf("├── Rating: %s\n", orDash(record.Rating))
	fmt.Printf("├── Profile: %s\n", orDash(record.ProfileURL))
	fmt.Printf("└── Duration: %s\n", time.Since(start).Round(time.Millisecond))

	if len(result.Outcomes) > 0 {
		fmt.Println()
		bold.Println("Insurance Verification")
		for i, outcome := range result.Outcomes {
			branch := "├──"
			if i == len(result.Outcomes)-1 {
				branch = "└──"
			}
			if outcome.Accepted {
				fmt.Printf("%s %s: %s\n", branch, outcome.Plan, color.GreenString("accepted"))
			} else {
				fmt.Printf("%s %s: %s\n", branch, outcome.Plan, color.RedString("not verified"))
			}
		}
	}

	if len(record.AcceptedPlans) > 0 {
		fmt.Println()
		bold.Println("Accepted Plans (all sources)")
		for _, plan := range record.AcceptedPlans {
			fmt.Printf("  - %s\n", plan)
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		color.Red("Failed to encode result: %v", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := os.WriteFile(*output, data, 0o644); err != nil {
			color.Red("Failed to write %s: %v", *output, err)
			os.Exit(1)
		}
		fmt.Println()
		color.Green("Record written to %s", *output)
	} else {
		fmt.Println()
		fmt.Println(string(data))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
