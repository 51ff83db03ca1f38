package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"calexport/config"
	"calexport/internal/clients/anthropic"
	"calexport/internal/domain"
	"calexport/internal/render"
	"calexport/internal/scheduler"
	"calexport/internal/secrets"
	"calexport/internal/service"
	"calexport/internal/source"
	"calexport/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Optional .env next to the binary.
	_ = godotenv.Load()

	var (
		fromFlag    = flag.String("from", "", "range start, YYYY-MM-DD (default today)")
		toFlag      = flag.String("to", "", "range end, YYYY-MM-DD (default from+6 days)")
		formatFlag  = flag.String("format", "", "document format: markdown, csv or text")
		listFlag    = flag.Bool("list", false, "fetch and print events without uploading")
		testKeyFlag = flag.Bool("test-key", false, "check the stored API key and exit")
		historyFlag = flag.Int("history", 0, "print the last N export attempts and exit")
		setKeyFlag  = flag.String("set-key", "", "store the Claude API key and exit")
		setModeFlag = flag.String("set-mode", "", "store the default export mode (api or clipboard) and exit")
		clearFlag   = flag.Bool("clear-config", false, "remove stored credentials and exit")
		serveFlag   = flag.Bool("serve", false, "run scheduled exports until interrupted (needs EXPORT_CRON)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store := secrets.NewStore(cfg.ConfigDir)

	switch {
	case *setKeyFlag != "":
		creds := store.Load()
		creds.ClaudeAPIKey = *setKeyFlag
		if err := store.Save(creds); err != nil {
			log.Fatalf("Failed to save credentials: %v", err)
		}
		fmt.Printf("API key saved to %s\n", store.Location())
		return

	case *setModeFlag != "":
		mode := secrets.ExportMode(*setModeFlag)
		if mode != secrets.ModeAPIOnly && mode != secrets.ModeClipboard {
			log.Fatalf("Unknown export mode %q (api or clipboard)", *setModeFlag)
		}
		creds := store.Load()
		creds.DefaultExportMode = mode
		if err := store.Save(creds); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}
		fmt.Printf("Default export mode set to %s\n", mode)
		return

	case *clearFlag:
		if err := store.Clear(); err != nil {
			log.Fatalf("Failed to clear config: %v", err)
		}
		fmt.Println("Stored credentials removed")
		return
	}

	creds := store.Load()
	apiKey := os.Getenv("CLAUDE_API_KEY")
	if apiKey == "" {
		apiKey = creds.APIKey(domain.ServiceClaude)
	}
	uploader := anthropic.NewClient(apiKey)

	if *testKeyFlag {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if uploader.TestCredentials(ctx) {
			fmt.Println("API key OK")
			return
		}
		fmt.Println("API key check failed")
		os.Exit(1)
	}

	if *historyFlag > 0 {
		db, err := storage.New(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to init storage: %v", err)
		}
		defer db.Close()
		printHistory(db, *historyFlag)
		return
	}

	format := cfg.DefaultFormat
	if *formatFlag != "" {
		f, ok := domain.ParseFormat(*formatFlag)
		if !ok {
			log.Fatalf("Unknown format %q (markdown, csv or text)", *formatFlag)
		}
		format = f
	}

	src := source.New(source.Options{
		BaseURL:       cfg.CalDAVURL,
		Username:      cfg.CalDAVUsername,
		Password:      cfg.CalDAVPassword,
		CalendarPath:  cfg.CalendarPath,
		LaunchCommand: cfg.HostLaunchCommand,
		MaxItems:      cfg.FetchMaxItems,
		Timezone:      cfg.Timezone,
	})

	db, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer db.Close()

	exportSvc := service.NewExportService(src, uploader, db)

	if *serveFlag {
		serve(cfg, exportSvc)
		return
	}

	rng, err := parseRange(*fromFlag, *toFlag, cfg.Timezone)
	if err != nil {
		log.Fatalf("Invalid date range: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *listFlag {
		events, err := exportSvc.Fetch(ctx, rng)
		if err != nil {
			log.Fatalf("Fetch failed: %v", err)
		}
		printEvents(events)
		return
	}

	if creds.DefaultExportMode == secrets.ModeClipboard {
		// Clipboard mode renders locally instead of uploading; the output
		// goes to stdout so it can be piped into xclip or pbcopy.
		events, err := exportSvc.Fetch(ctx, rng)
		if err != nil {
			log.Fatalf("Fetch failed: %v", err)
		}
		doc, err := render.Render(events, format, time.Now())
		if err != nil {
			log.Fatalf("Render failed: %v", err)
		}
		fmt.Print(doc.Content)
		return
	}

	if !uploader.IsConfigured() {
		log.Fatalf("No API key configured; use -set-key or set CLAUDE_API_KEY")
	}

	result, err := exportSvc.Run(ctx, rng, format)
	if errors.Is(err, service.ErrNoEvents) {
		fmt.Printf("No events between %s and %s\n",
			rng.Start.Format("2006-01-02"), rng.End.Format("2006-01-02"))
		return
	}
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	if result.Success {
		fmt.Printf("%s (file %s)\n", result.Message, result.FileID)
	} else {
		fmt.Printf("Export failed: %s\n", result.Message)
		os.Exit(1)
	}
}

func serve(cfg *config.Config, exportSvc *service.ExportService) {
	sched := scheduler.New(cfg, exportSvc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	log.Println("calexport started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("calexport stopped")
}

func parseRange(from, to string, loc *time.Location) (domain.DateRange, error) {
	now := time.Now().In(loc)
	rng := domain.DateRange{Start: now, End: now.AddDate(0, 0, 6)}

	if from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, loc)
		if err != nil {
			return rng, fmt.Errorf("parse -from: %w", err)
		}
		rng.Start = t
		rng.End = t.AddDate(0, 0, 6)
	}
	if to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, loc)
		if err != nil {
			return rng, fmt.Errorf("parse -to: %w", err)
		}
		rng.End = t
	}

	return rng, rng.Validate()
}

func printEvents(events []domain.CalendarEvent) {
	if len(events) == 0 {
		fmt.Println("No events in range")
		return
	}
	for _, evt := range events {
		line := fmt.Sprintf("%s  %-11s %s", evt.DisplayDate(), evt.DisplayTime(), evt.DisplayTitle())
		if evt.Location != "" {
			line += " @ " + evt.Location
		}
		fmt.Println(line)
	}
	fmt.Printf("%d events\n", len(events))
}

func printHistory(db *storage.Storage, limit int) {
	records, err := db.ListExports(limit)
	if err != nil {
		log.Fatalf("Failed to list exports: %v", err)
	}
	if len(records) == 0 {
		fmt.Println("No exports recorded")
		return
	}
	for _, rec := range records {
		status := "ok"
		if !rec.Success {
			status = "failed"
		}
		fmt.Printf("%s  %-6s %-8s %3d events  %s  %s\n",
			rec.ExportedAt.Format("2006-01-02 15:04"), status, rec.Format,
			rec.EventCount, rec.FileID, rec.Message)
	}
}
