package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"calexport/internal/domain"
)

type Config struct {
	CalDAVURL         string
	CalDAVUsername    string
	CalDAVPassword    string
	CalendarPath      string
	HostLaunchCommand []string
	DatabasePath      string
	ConfigDir         string
	Timezone          *time.Location
	DefaultFormat     domain.Format
	ExportCron        string
	ExportDays        int
	FetchMaxItems     int
}

func Load() (*Config, error) {
	url := os.Getenv("CALDAV_URL")
	if url == "" {
		// Radicale's default local endpoint.
		url = "http://localhost:5232"
	}

	var launchCmd []string
	if raw := os.Getenv("HOST_LAUNCH_COMMAND"); raw != "" {
		launchCmd = strings.Fields(raw)
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/calexport.db"
	}

	tz := time.Local
	if tzName := os.Getenv("TIMEZONE"); tzName != "" {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
		}
		tz = loc
	}

	format := domain.FormatMarkdown
	if raw := os.Getenv("EXPORT_FORMAT"); raw != "" {
		f, ok := domain.ParseFormat(raw)
		if !ok {
			return nil, fmt.Errorf("invalid EXPORT_FORMAT %q (markdown, csv or text)", raw)
		}
		format = f
	}

	exportDays := 7
	if raw := os.Getenv("EXPORT_DAYS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("EXPORT_DAYS must be a positive number")
		}
		exportDays = n
	}

	maxItems := 0
	if raw := os.Getenv("FETCH_MAX_ITEMS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("FETCH_MAX_ITEMS must be a positive number")
		}
		maxItems = n
	}

	return &Config{
		CalDAVURL:         url,
		CalDAVUsername:    os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:    os.Getenv("CALDAV_PASSWORD"),
		CalendarPath:      os.Getenv("CALENDAR_PATH"),
		HostLaunchCommand: launchCmd,
		DatabasePath:      dbPath,
		ConfigDir:         os.Getenv("CONFIG_DIR"),
		Timezone:          tz,
		DefaultFormat:     format,
		ExportCron:        os.Getenv("EXPORT_CRON"),
		ExportDays:        exportDays,
		FetchMaxItems:     maxItems,
	}, nil
}
