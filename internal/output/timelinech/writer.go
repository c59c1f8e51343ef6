package timelinech

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"incidentgraph/pkg/models"
)

// Config configures the ClickHouse HTTP writer.
type Config struct {
	URL      string
	Database string
	Table    string
	Username string
	Password string
	Timeout  time.Duration
	Headers  map[string]string
}

// Writer sends reconstructed timeline events to ClickHouse via HTTP
// JSONEachRow, one row per timeline event tagged with its incident.
type Writer struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
}

type timelineRow struct {
	IncidentID  string   `json:"incident_id"`
	EventID     string   `json:"event_id"`
	Timestamp   string   `json:"timestamp"`
	Phase       string   `json:"phase"`
	Severity    string   `json:"severity"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description"`
	Techniques  []string `json:"techniques"`
	Assets      []string `json:"assets"`
	Indicators  []string `json:"indicators"`
	SourceIDs   []string `json:"source_ids"`
}

// NewWriter creates a ClickHouse HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clickhouse URL is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "timeline_events"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	q := fmt.Sprintf("INSERT INTO %s.%s FORMAT JSONEachRow", quoteIdent(cfg.Database), quoteIdent(cfg.Table))
	base := strings.TrimRight(cfg.URL, "/")
	endpoint := base + "/?query=" + url.QueryEscape(q)

	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Username != "" {
		headers["X-ClickHouse-User"] = cfg.Username
	}
	if cfg.Password != "" {
		headers["X-ClickHouse-Key"] = cfg.Password
	}

	return &Writer{
		endpoint: endpoint,
		headers:  headers,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// WriteTimeline sends a reconstructed timeline as a batch of rows.
func (w *Writer) WriteTimeline(incidentID string, timeline []models.TimelineEvent) error {
	if len(timeline) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for i := range timeline {
		te := &timeline[i]
		row := timelineRow{
			IncidentID:  incidentID,
			EventID:     te.ID,
			Timestamp:   te.Timestamp.UTC().Format(time.RFC3339Nano),
			Phase:       te.Phase,
			Severity:    te.Severity,
			Confidence:  te.Confidence,
			Description: te.Description,
			Techniques:  te.TechniqueIDs(),
			Assets:      te.Assets,
			Indicators:  te.Indicators,
			SourceIDs:   te.EventIDs,
		}
		if err := enc.Encode(&row); err != nil {
			return fmt.Errorf("failed to marshal timeline row: %w", err)
		}
	}

	req, err := http.NewRequest(http.MethodPost, w.endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("clickhouse request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("clickhouse request failed with status %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Close releases resources.
func (w *Writer) Close() error {
	return nil
}

func quoteIdent(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "`", "")
	return "`" + v + "`"
}
