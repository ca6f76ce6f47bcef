// casedesk is a terminal frontend for the case-classification service.
//
// It talks to the backend REST API and offers three views: Submit (classify a
// new case), Cases (filter the case list and resolve, escalate or request
// verification) and Stats (aggregate counts and breakdowns).
//
// Usage:
//
//	casedesk                          # Auto-discover .casedesk/config.yaml
//	casedesk --url http://host:8000   # Talk to a specific backend
//	casedesk --config <path>          # Use a specific config file
//	casedesk --view cases             # Start in a specific view
//	casedesk --status Pending         # Pre-set case list filters
//	casedesk --json stats             # Dump stats (or cases, all) as JSON and exit
//	casedesk --version                # Print version and exit
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/daviddao/casedesk/internal/config"
	"github.com/daviddao/casedesk/internal/datasource"
	"github.com/daviddao/casedesk/internal/filter"
	"github.com/daviddao/casedesk/internal/logging"
	"github.com/daviddao/casedesk/internal/model"
	"github.com/daviddao/casedesk/internal/snapshot"
)

// Version is set via ldflags at build time (e.g. -X main.Version=v0.1.0).
var Version = "dev"

// parseViewFlag maps a --view flag string to a viewID.
func parseViewFlag(s string) (viewID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "submit", "home", "1":
		return viewSubmit, nil
	case "cases", "history", "list", "2":
		return viewCases, nil
	case "stats", "dashboard", "3":
		return viewStats, nil
	default:
		return 0, fmt.Errorf("unknown view %q (valid: submit, cases, stats)", s)
	}
}

// parseCriteria builds the initial case list filter from flag values.
func parseCriteria(status, priority, category, search string) (filter.Criteria, error) {
	crit := filter.Criteria{Category: strings.TrimSpace(category), Search: search}
	if status != "" {
		st, err := model.ParseStatus(status)
		if err != nil {
			return crit, err
		}
		crit.Status = st
	}
	if priority != "" {
		p, err := model.ParsePriority(priority)
		if err != nil {
			return crit, err
		}
		crit.Priority = p
	}
	return crit, nil
}

// jsonOutput is the structure for --json mode.
type jsonOutput struct {
	BaseURL string       `json:"base_url"`
	Filter  string       `json:"filter,omitempty"`
	Cases   []model.Case `json:"cases,omitempty"`
	Stats   *jsonStats   `json:"stats,omitempty"`
}

type jsonStats struct {
	model.Stats
	TopCategory      string  `json:"top_category,omitempty"`
	TopCategoryCount int     `json:"top_category_count,omitempty"`
	ResolvedPercent  float64 `json:"resolved_percent"`
	DailyMean        float64 `json:"daily_mean"`
	DailyMedian      float64 `json:"daily_median"`
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: auto-discover)")
	baseURL := flag.String("url", "", "backend base URL (overrides config)")
	timeout := flag.Duration("timeout", 0, "per-request timeout (overrides config)")
	logFile := flag.String("log", "", "log file path (overrides config)")
	jsonMode := flag.String("json", "", "dump cases|stats|all as JSON and exit (no TUI)")
	viewFlag := flag.String("view", "", "start in specific view (submit|cases|stats)")
	statusFlag := flag.String("status", "", "initial status filter")
	priorityFlag := flag.String("priority", "", "initial priority filter")
	categoryFlag := flag.String("category", "", "initial category filter")
	searchFlag := flag.String("search", "", "initial description search")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("casedesk %s\n", Version)
		os.Exit(0)
	}

	if err := run(options{
		configPath: *configPath,
		baseURL:    *baseURL,
		timeout:    *timeout,
		logFile:    *logFile,
		jsonMode:   *jsonMode,
		view:       *viewFlag,
		status:     *statusFlag,
		priority:   *priorityFlag,
		category:   *categoryFlag,
		search:     *searchFlag,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "casedesk: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	baseURL    string
	timeout    time.Duration
	logFile    string
	jsonMode   string
	view       string
	status     string
	priority   string
	category   string
	search     string
}

func run(opts options) error {
	if err := config.LoadDotenv(); err != nil {
		return err
	}

	cfg, err := datasource.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.baseURL != "" {
		cfg.BaseURL = opts.baseURL
	}
	if opts.timeout > 0 {
		cfg.TimeoutSeconds = int(opts.timeout.Round(time.Second) / time.Second)
		if cfg.TimeoutSeconds < 1 {
			cfg.TimeoutSeconds = 1
		}
	}
	if opts.logFile != "" {
		cfg.LogFile = opts.logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	crit, err := parseCriteria(opts.status, opts.priority, opts.category, opts.search)
	if err != nil {
		return err
	}

	// --json mode: fetch, print JSON, exit. Nothing is logged.
	if opts.jsonMode != "" {
		client, err := datasource.Connect(cfg, logging.Discard())
		if err != nil {
			return err
		}
		return dumpJSON(context.Background(), os.Stdout, client, cfg.BaseURL, opts.jsonMode, crit)
	}

	log, closer, err := logging.Setup(cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()
	log.WithField("config", cfg).Info("casedesk start")

	client, err := datasource.Connect(cfg, log)
	if err != nil {
		return err
	}

	startView := viewSubmit
	if v := firstNonEmpty(opts.view, cfg.View); v != "" {
		startView, err = parseViewFlag(v)
		if err != nil {
			return err
		}
	}

	var w *datasource.Watcher
	if cfg.Path != "" {
		w, err = datasource.NewWatcher(cfg.Path)
		if err != nil {
			// Hot reload is a convenience; run without it.
			log.WithError(err).Warn("config watch disabled")
			w = nil
		} else {
			defer w.Close()
		}
	}

	m := newModel(client, log, crit)
	m.baseURL = client.BaseURL()
	m.watcher = w
	if w != nil {
		m.configPath = w.Path()
	}
	m.activeView = startView

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Feed config change events into the TUI until the watcher closes.
	if w != nil {
		go func() {
			for range w.Changes() {
				p.Send(configChangedMsg{})
			}
		}()
	}

	if _, err := p.Run(); err != nil {
		return err
	}
	log.Info("casedesk stopped")
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// dumpJSON fetches what mode asks for and writes it to out.
func dumpJSON(ctx context.Context, out io.Writer, b backend, baseURL, mode string, crit filter.Criteria) error {
	mode = strings.ToLower(strings.TrimSpace(mode))
	wantCases := mode == "cases" || mode == "all"
	wantStats := mode == "stats" || mode == "all"
	if !wantCases && !wantStats {
		return fmt.Errorf("unknown --json mode %q (valid: cases, stats, all)", mode)
	}

	result := jsonOutput{BaseURL: baseURL}
	g, gctx := errgroup.WithContext(ctx)
	if wantCases {
		result.Filter = crit.Label()
		g.Go(func() error {
			cases, err := queryCases(gctx, b, crit)
			if err != nil {
				return err
			}
			result.Cases = crit.Apply(cases)
			return nil
		})
	}
	if wantStats {
		g.Go(func() error {
			snap, err := snapshot.Build(gctx, b)
			if err != nil {
				return err
			}
			result.Stats = buildJSONStats(snap)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// buildJSONStats converts a snapshot into the JSON output structure.
func buildJSONStats(snap *snapshot.DataSnapshot) *jsonStats {
	stats := snap.Stats
	stats.AvgResolutionDays = snap.AvgResolutionDays()
	return &jsonStats{
		Stats:            stats,
		TopCategory:      snap.TopCategory,
		TopCategoryCount: snap.TopCategoryCount,
		ResolvedPercent:  snap.ResolvedPercent,
		DailyMean:        snap.DailyMean,
		DailyMedian:      snap.DailyMedian,
	}
}

// discardLogger is used when a model is built without a logger.
func discardLogger() *logrus.Entry {
	return logging.Discard()
}
