// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, the process exits.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var cutoffRe = regexp.MustCompile(`^\d{8}$`)

// Config holds all runtime configuration for the ingest service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	FTPAddr     string // host:port of the procurement FTP archive
	FTPUser     string
	FTPPassword string
	FTPTimeout  time.Duration

	CutoffDate string // YYYYMMDD — archives with an older date token are skipped

	RootsFile      string // JSON map {name: remote path}
	OKPD2CodesFile string // JSON list of OKPD2 allow-set codes

	ArchiveDir  string // downloaded containers
	XMLDir      string // extracted notice XML
	PositiveDir string // accepted notice XML retained for audit
	DocsDir     string // downloaded/unpacked attachment documents

	IngestIntervalHours int // how often the cron job fires
	FetchRetries        int // bounded retry count for one remote file

	SearchPhrases []string // keyword phrases scanned for in downloaded documents

	LogLevel  string
	LogFormat string // "console" or "json"
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cutoff := getenvDefault("CUTOFF_DATE", "20240101")
	if !cutoffRe.MatchString(cutoff) {
		return nil, fmt.Errorf("CUTOFF_DATE must be YYYYMMDD, got %q", cutoff)
	}

	interval := 6
	if s := os.Getenv("INGEST_INTERVAL_HOURS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("INGEST_INTERVAL_HOURS must be a positive integer, got %q", s)
		}
		interval = v
	}

	retries := 3
	if s := os.Getenv("FETCH_RETRIES"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("FETCH_RETRIES must be a positive integer, got %q", s)
		}
		retries = v
	}

	timeout := 30 * time.Second
	if s := os.Getenv("FTP_TIMEOUT_SECONDS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("FTP_TIMEOUT_SECONDS must be a positive integer, got %q", s)
		}
		timeout = time.Duration(v) * time.Second
	}

	return &Config{
		Port:                getenvDefault("INGEST_PORT", "8083"),
		DatabaseURL:         dbURL,
		RedisURL:            redisURL,
		FTPAddr:             getenvDefault("FTP_ADDR", "ftp.zakupki.gov.ru:21"),
		FTPUser:             getenvDefault("FTP_USER", "free"),
		FTPPassword:         getenvDefault("FTP_PASSWORD", "free"),
		FTPTimeout:          timeout,
		CutoffDate:          cutoff,
		RootsFile:           getenvDefault("FTP_ROOTS_FILE", "config/roots.json"),
		OKPD2CodesFile:      getenvDefault("OKPD2_CODES_FILE", "config/okpd2_codes.json"),
		ArchiveDir:          getenvDefault("ARCHIVE_DIR", "data/archives"),
		XMLDir:              getenvDefault("XML_DIR", "data/xml"),
		PositiveDir:         getenvDefault("POSITIVE_DIR", "data/positive"),
		DocsDir:             getenvDefault("DOCS_DIR", "data/docs"),
		IngestIntervalHours: interval,
		FetchRetries:        retries,
		SearchPhrases:       splitPhrases(os.Getenv("SEARCH_PHRASES")),
		LogLevel:            getenvDefault("LOG_LEVEL", "info"),
		LogFormat:           getenvDefault("LOG_FORMAT", "console"),
	}, nil
}

// splitPhrases parses the comma-separated SEARCH_PHRASES value. An empty
// value disables the document search stage.
func splitPhrases(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// LoadRoots reads the remote-roots JSON file:
//
//	{"moscow": "/fcs_regions/Moskva/notifications/currMonth", ...}
//
// The map keys are labels used in logs; only the values are traversed.
func LoadRoots(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roots file: %w", err)
	}

	var roots map[string]string
	if err := json.Unmarshal(data, &roots); err != nil {
		return nil, fmt.Errorf("parse roots file %s: %w", path, err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("roots file %s defines no remote paths", path)
	}

	return roots, nil
}

// LoadCodes reads the OKPD2 allow-set JSON file: ["42.11.10.120", ...].
func LoadCodes(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read codes file: %w", err)
	}

	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("parse codes file %s: %w", path, err)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("codes file %s defines no OKPD2 codes", path)
	}

	return codes, nil
}
