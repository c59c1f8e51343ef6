package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"incidentgraph/config"
	"incidentgraph/internal/catalog"
	"incidentgraph/internal/enrich"
	inputjsonl "incidentgraph/internal/input/jsonl"
	inputredis "incidentgraph/internal/input/redis"
	"incidentgraph/internal/logger"
	"incidentgraph/internal/metrics"
	"incidentgraph/internal/output/reporthttp"
	"incidentgraph/internal/output/reportjson"
	"incidentgraph/internal/output/timelinech"
	"incidentgraph/internal/reconstructor"
	"incidentgraph/pkg/models"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("incidentgraph.yml"); err == nil {
		return "incidentgraph.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "incidentgraph.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "incidentgraph.yml"
}

func applyDefaults(cfg *config.Config) {
	ig := &cfg.IncidentGraph

	if ig.Engine.CorrelationTimeWindowMs <= 0 {
		ig.Engine.CorrelationTimeWindowMs = 300000
	}
	if ig.Engine.KillChainMappingVersion == "" {
		ig.Engine.KillChainMappingVersion = "14.1"
	}
	if ig.Engine.MaxTimelineEvents <= 0 {
		ig.Engine.MaxTimelineEvents = 10000
	}
	if ig.Engine.MaxGraphNodes <= 0 {
		ig.Engine.MaxGraphNodes = 500
	}
	if ig.Engine.ConfidenceThreshold <= 0 {
		ig.Engine.ConfidenceThreshold = 0.6
	}
	if len(ig.Engine.ThreatIntelSources) == 0 {
		ig.Engine.ThreatIntelSources = []string{"mitre", "virustotal", "otx"}
	}

	if ig.Input.Redis.Addr == "" {
		ig.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if ig.Input.Redis.Key == "" {
		ig.Input.Redis.Key = "security_events"
	}
	if ig.Input.Redis.BlockTimeout == 0 {
		ig.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if ig.Output.Mode == "" {
		ig.Output.Mode = "file"
	}
	if ig.Output.File.Path == "" {
		ig.Output.File.Path = "output/incidents.jsonl"
	}

	if ig.Timeline.ClickHouse.Database == "" {
		ig.Timeline.ClickHouse.Database = "incidentgraph"
	}
	if ig.Timeline.ClickHouse.Table == "" {
		ig.Timeline.ClickHouse.Table = "timeline_events"
	}

	if ig.Metrics.Addr == "" {
		ig.Metrics.Addr = ":9469"
	}

	if ig.Logging.Level == "" {
		ig.Logging.Level = "info"
	}
}

func engineConfig(cfg *config.Config) reconstructor.Config {
	ec := reconstructor.DefaultConfig()
	eng := cfg.IncidentGraph.Engine
	ec.CorrelationWindow = time.Duration(eng.CorrelationTimeWindowMs) * time.Millisecond
	ec.KillChainVersion = eng.KillChainMappingVersion
	ec.MaxTimelineEvents = eng.MaxTimelineEvents
	ec.MaxGraphNodes = eng.MaxGraphNodes
	ec.ConfidenceThreshold = eng.ConfidenceThreshold
	ec.ThreatIntelSources = eng.ThreatIntelSources
	if eng.EnableAutomaticCorrelation != nil {
		ec.EnableAutomaticCorrelation = *eng.EnableAutomaticCorrelation
	}
	if eng.EnableThreatIntelEnrichment != nil {
		ec.EnableThreatIntelEnrichment = *eng.EnableThreatIntelEnrichment
	}
	return ec
}

// metricsObserver feeds step notifications into the Prometheus registry so
// the analysis packages stay metrics-free.
func metricsObserver(m *metrics.Metrics) reconstructor.Observer {
	return reconstructor.ObserverFunc(func(n reconstructor.Notification) {
		step, event, ok := strings.Cut(n.Name, ":")
		if !ok || event != "completed" {
			return
		}
		if d, found := n.Metrics["duration_ms"]; found {
			m.StepDuration.WithLabelValues(step).Observe(d / 1000.0)
		}
		switch step {
		case reconstructor.StepTimeline:
			m.TimelinesBuilt.Inc()
			m.TimelineEvents.Add(n.Metrics["timeline_event_count"])
		case reconstructor.StepLateral:
			m.MovementsDetected.Add(n.Metrics["movement_count"])
		}
	})
}

// reportWriter abstracts the file and HTTP report sinks.
type reportWriter interface {
	WriteReport(report *models.IncidentReport) error
	Close() error
}

func newReportWriter(cfg *config.Config) (reportWriter, error) {
	out := cfg.IncidentGraph.Output
	switch out.Mode {
	case "file":
		w, err := reportjson.NewWriter(out.File.Path)
		if err != nil {
			return nil, fmt.Errorf("report file writer: %w", err)
		}
		logger.Infof("Report output mode: file (%s)", out.File.Path)
		return w, nil
	case "http":
		w, err := reporthttp.NewWriter(reporthttp.Config{
			URL:     out.HTTP.URL,
			Timeout: out.HTTP.Timeout,
			Headers: out.HTTP.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("report HTTP writer: %w", err)
		}
		logger.Infof("Report output mode: http (%s)", out.HTTP.URL)
		return w, nil
	default:
		return nil, fmt.Errorf("unknown report output mode: %s", out.Mode)
	}
}

func newSigmaEngine(cfg *config.Config) *enrich.SigmaEngine {
	en := cfg.IncidentGraph.Enrichment
	if !en.Enabled {
		return nil
	}
	if strings.TrimSpace(en.Path) == "" {
		logger.Warnf("Enrichment enabled but enrichment.path is empty; Sigma tagging disabled")
		return nil
	}
	engine, stats, err := enrich.NewSigmaEngine(en.Path)
	if err != nil {
		logger.Errorf("Failed to load Sigma rules from %s: %v", en.Path, err)
		log.Fatalf("Failed to load Sigma rules: %v", err)
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_invalid=%d files=%d",
		stats.Loaded, stats.SkippedComplex, stats.SkippedInvalid, stats.TotalFiles)
	if stats.Loaded == 0 {
		logger.Warnf("No compatible Sigma rules loaded; Sigma tagging is effectively disabled")
	}
	return engine
}

func seedAssets(cfg *config.Config, rec *reconstructor.Reconstructor) {
	path := cfg.IncidentGraph.Input.Assets.Path
	if strings.TrimSpace(path) == "" {
		return
	}
	seed, err := inputjsonl.LoadAssets(path)
	if err != nil {
		logger.Errorf("Failed to load asset inventory: %v", err)
		log.Fatalf("Failed to load asset inventory: %v", err)
	}
	rec.SeedAssets(seed)
	logger.Infof("Asset inventory loaded: %d assets from %s", len(seed), path)
}

func incidentFor(ev *models.SecurityEvent) string {
	if ev.Extra != nil {
		if v, ok := ev.Extra["incident_id"].(string); ok && v != "" {
			return v
		}
	}
	return "default"
}

func runServe(args []string) {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}

	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	lc := cfg.IncidentGraph.Logging
	if err := logger.Init(lc.Enabled, lc.Level, lc.File, lc.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Infof("IncidentGraph starting")
	logger.Infof("Config loaded from: %s", configPath)

	m := metrics.New()
	if cfg.IncidentGraph.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.IncidentGraph.Metrics.Addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("Metrics server error: %v", err)
			}
		}()
		defer srv.Close()
		logger.Infof("Metrics endpoint: %s/metrics", cfg.IncidentGraph.Metrics.Addr)
	}

	rec, err := reconstructor.New(engineConfig(cfg), catalog.Default(), metricsObserver(m))
	if err != nil {
		log.Fatalf("Failed to create reconstructor: %v", err)
	}
	seedAssets(cfg, rec)

	sigmaEngine := newSigmaEngine(cfg)

	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:         cfg.IncidentGraph.Input.Redis.Addr,
		Password:     cfg.IncidentGraph.Input.Redis.Password,
		DB:           cfg.IncidentGraph.Input.Redis.DB,
		Key:          cfg.IncidentGraph.Input.Redis.Key,
		BlockTimeout: cfg.IncidentGraph.Input.Redis.BlockTimeout,
	})
	if err != nil {
		logger.Errorf("Failed to create Redis consumer: %v", err)
		log.Fatalf("Failed to create Redis consumer: %v", err)
	}
	defer consumer.Close()

	writer, err := newReportWriter(cfg)
	if err != nil {
		logger.Errorf("%v", err)
		log.Fatalf("%v", err)
	}
	defer writer.Close()

	var timelineWriter *timelinech.Writer
	if cfg.IncidentGraph.Timeline.Enabled {
		ch := cfg.IncidentGraph.Timeline.ClickHouse
		timelineWriter, err = timelinech.NewWriter(timelinech.Config{
			URL:      ch.URL,
			Database: ch.Database,
			Table:    ch.Table,
			Username: ch.Username,
			Password: ch.Password,
			Timeout:  ch.Timeout,
			Headers:  ch.Headers,
		})
		if err != nil {
			logger.Errorf("Failed to create timeline ClickHouse writer: %v", err)
			log.Fatalf("Failed to create timeline ClickHouse writer: %v", err)
		}
		logger.Infof("Timeline export: clickhouse (%s/%s.%s)", ch.URL, ch.Database, ch.Table)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Infof("Shutting down")
		cancel()
	}()

	flush := time.NewTicker(10 * time.Second)
	defer flush.Stop()
	dirty := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			flushIncidents(rec, writer, timelineWriter, dirty)
			logger.Infof("IncidentGraph stopped")
			return
		case <-flush.C:
			flushIncidents(rec, writer, timelineWriter, dirty)
		default:
		}

		ev, err := consumer.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Errorf("Consume error: %v", err)
			m.EventsRejected.Inc()
			continue
		}
		if ev == nil {
			continue
		}

		events := []*models.SecurityEvent{ev}
		if sigmaEngine != nil {
			events = sigmaEngine.EnrichEvents(events)
		}
		incident := incidentFor(ev)
		if rejected, err := rec.AddEvents(incident, events); err != nil {
			logger.Warnf("Incident %s: %v", incident, err)
			m.EventsRejected.Add(float64(rejected))
			continue
		}
		m.EventsIngested.Inc()
		dirty[incident] = true
	}
}

func flushIncidents(rec *reconstructor.Reconstructor, writer reportWriter, timelineWriter *timelinech.Writer, dirty map[string]bool) {
	for incident := range dirty {
		report, err := rec.Reconstruct(incident, nil)
		if err != nil {
			logger.Errorf("Incident %s: reconstruction failed: %v", incident, err)
			continue
		}
		if err := writer.WriteReport(report); err != nil {
			logger.Errorf("Incident %s: report write failed: %v", incident, err)
			continue
		}
		if timelineWriter != nil {
			if err := timelineWriter.WriteTimeline(incident, report.Timeline); err != nil {
				logger.Errorf("Incident %s: timeline export failed: %v", incident, err)
			}
		}
		delete(dirty, incident)
	}
}

func runAnalyze(args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	input := fs.String("input", "", "Security event JSONL input path (overrides config)")
	output := fs.String("output", "", "Incident report JSONL output path (overrides config)")
	incident := fs.String("incident", "incident-1", "Incident identifier for the reconstruction")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadConfig(findConfigFile(*configArg))
	if err != nil {
		// The analyze mode works without a config file.
		cfg = &config.Config{}
	}
	applyDefaults(cfg)
	if *input != "" {
		cfg.IncidentGraph.Input.File.Path = *input
	}
	if *output != "" {
		cfg.IncidentGraph.Output.Mode = "file"
		cfg.IncidentGraph.Output.File.Path = *output
	}
	if cfg.IncidentGraph.Input.File.Path == "" {
		fmt.Fprintln(os.Stderr, "no input file: set -input or input.file.path")
		return 2
	}

	lc := cfg.IncidentGraph.Logging
	if err := logger.Init(lc.Enabled, lc.Level, lc.File, lc.Console); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	rec, err := reconstructor.New(engineConfig(cfg), catalog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create reconstructor: %v\n", err)
		return 1
	}
	seedAssets(cfg, rec)

	events, rejected, err := inputjsonl.LoadEvents(cfg.IncidentGraph.Input.File.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load events: %v\n", err)
		return 1
	}
	if engine := newSigmaEngine(cfg); engine != nil {
		events = engine.EnrichEvents(events)
	}

	if n, err := rec.AddEvents(*incident, events); err != nil {
		logger.Warnf("Incident %s: %v", *incident, err)
		rejected += n
	}

	report, err := rec.Reconstruct(*incident, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconstruction failed: %v\n", err)
		return 1
	}

	writer, err := newReportWriter(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer writer.Close()
	if err := writer.WriteReport(report); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
		return 1
	}

	completeness := 0.0
	if report.KillChain != nil {
		completeness = report.KillChain.Completeness
	}
	fmt.Printf("reconstructed incident=%s events=%d rejected=%d timeline=%d movements=%d completeness=%.2f%%\n",
		*incident, len(events), rejected, len(report.Timeline), len(report.Movements), completeness)
	return 0
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "analyze":
			os.Exit(runAnalyze(os.Args[2:]))
		default:
			// Backward-compatible mode: first arg is config path.
			runServe(os.Args[1:])
			return
		}
	}

	runServe(nil)
}
