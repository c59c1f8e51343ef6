package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"incidentgraph/internal/logger"
	"incidentgraph/pkg/models"
)

// LoadEvents reads security events from a JSONL file. Malformed lines and
// events failing boundary validation are dropped with a warning; the second
// return value counts rejected records.
func LoadEvents(path string) ([]*models.SecurityEvent, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	events := make([]*models.SecurityEvent, 0, 4096)
	rejected := 0

	s := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	s.Buffer(buf, 8*1024*1024)

	line := 0
	for s.Scan() {
		line++
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}
		var ev models.SecurityEvent
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			logger.Warnf("skipping line %d: %v", line, err)
			rejected++
			continue
		}
		if err := ev.Validate(); err != nil {
			logger.Warnf("skipping line %d: %v", line, err)
			rejected++
			continue
		}
		events = append(events, &ev)
	}
	if err := s.Err(); err != nil {
		return nil, rejected, fmt.Errorf("scan input: %w", err)
	}
	return events, rejected, nil
}

// LoadAssets reads an asset inventory from a JSONL file. Entries without an
// identifier are dropped with a warning.
func LoadAssets(path string) ([]*models.Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open assets: %w", err)
	}
	defer f.Close()

	assets := make([]*models.Asset, 0, 64)

	s := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 1024*1024)

	line := 0
	for s.Scan() {
		line++
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}
		var a models.Asset
		if err := json.Unmarshal([]byte(text), &a); err != nil {
			logger.Warnf("skipping asset line %d: %v", line, err)
			continue
		}
		if a.ID == "" && a.Hostname == "" && a.IP == "" {
			logger.Warnf("skipping asset line %d: no identifier", line)
			continue
		}
		assets = append(assets, &a)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan assets: %w", err)
	}
	return assets, nil
}
