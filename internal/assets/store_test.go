package assets

import (
	"testing"
	"time"

	"incidentgraph/pkg/models"
)

func TestEnsureClassifiesHostnamesAndIPs(t *testing.T) {
	s := NewStore()

	host := s.Ensure("host-a")
	if host == nil || host.Hostname != "host-a" || host.IP != "" {
		t.Fatalf("unexpected hostname asset: %+v", host)
	}
	ip := s.Ensure("10.0.0.5")
	if ip == nil || ip.IP != "10.0.0.5" || ip.Hostname != "" {
		t.Fatalf("unexpected ip asset: %+v", ip)
	}
	if s.Ensure("") != nil {
		t.Fatalf("empty key must not create an asset")
	}
	if again := s.Ensure("host-a"); again != host {
		t.Fatalf("repeated Ensure must return the same asset")
	}
}

func TestMarkCompromisedFirstWriterWins(t *testing.T) {
	s := NewStore()
	t1 := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	s.MarkCompromised("host-a", t1)
	s.MarkCompromised("host-a", t2)

	a := s.Get("host-a")
	if a == nil || !a.Compromised() {
		t.Fatalf("asset must be compromised")
	}
	if !a.CompromisedAt.Equal(t1) {
		t.Fatalf("first compromise time must win, got %v", a.CompromisedAt)
	}
}

func TestSeedKeepsExistingEntries(t *testing.T) {
	s := NewStore()
	s.Seed([]*models.Asset{{ID: "host-a", Hostname: "host-a", Criticality: "critical"}})
	s.Seed([]*models.Asset{{ID: "host-a", Hostname: "host-a", Criticality: "low"}})

	if got := s.Get("host-a"); got.Criticality != "critical" {
		t.Fatalf("seed must not overwrite, got %s", got.Criticality)
	}

	s.Seed([]*models.Asset{nil, {ID: "  "}})
	if len(s.All()) != 1 {
		t.Fatalf("invalid seed entries must be dropped, got %d assets", len(s.All()))
	}
}

func TestSeedCopiesInput(t *testing.T) {
	s := NewStore()
	src := &models.Asset{ID: "host-a", Hostname: "host-a"}
	s.Seed([]*models.Asset{src})
	src.Criticality = "mutated"

	if got := s.Get("host-a"); got.Criticality == "mutated" {
		t.Fatalf("seed must store a copy")
	}
}

func TestGetMatchesByHostnameAndIP(t *testing.T) {
	s := NewStore()
	s.Seed([]*models.Asset{{ID: "srv-1", Hostname: "web-01", IP: "10.0.0.9"}})

	if s.Get("web-01") == nil {
		t.Fatalf("expected hostname match")
	}
	if s.Get("10.0.0.9") == nil {
		t.Fatalf("expected ip match")
	}
	if s.Get("srv-1") == nil {
		t.Fatalf("expected id match")
	}
	if s.Get("unknown") != nil {
		t.Fatalf("expected miss for unknown key")
	}
}

func TestAllSortsByID(t *testing.T) {
	s := NewStore()
	s.Ensure("zeta")
	s.Ensure("alpha")
	s.Ensure("mike")

	got := s.All()
	if len(got) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(got))
	}
	if got[0].ID != "alpha" || got[1].ID != "mike" || got[2].ID != "zeta" {
		t.Fatalf("unexpected order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}
