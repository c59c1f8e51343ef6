package catalog

import (
	"testing"

	"incidentgraph/pkg/models"
)

func TestNewRejectsDuplicateTechniqueIDs(t *testing.T) {
	_, err := New([]models.MitreTechnique{
		{ID: "T1059.001", Name: "PowerShell"},
		{ID: "T1059.001", Name: "PowerShell again"},
	}, nil)
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestNewRejectsInvalidActorProfiles(t *testing.T) {
	if _, err := New(nil, []ActorProfile{{Name: ""}}); err == nil {
		t.Fatalf("expected error for unnamed actor")
	}
	if _, err := New(nil, []ActorProfile{{Name: "Ghost"}}); err == nil {
		t.Fatalf("expected error for actor without techniques")
	}
}

func TestResolveKeepsUnknownIDs(t *testing.T) {
	c := Default()

	got := c.Resolve([]string{"T1059.001", "T9999"})
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Name != "PowerShell" || got[0].Tactic != "execution" {
		t.Fatalf("expected seeded entry first, got %+v", got[0])
	}
	if got[1].ID != "T9999" || got[1].Name != "T9999" {
		t.Fatalf("unknown id must degrade to a bare entry, got %+v", got[1])
	}

	if got := c.Resolve(nil); got != nil {
		t.Fatalf("empty input must resolve to nil, got %v", got)
	}
}

func TestDefaultCoversMatcherTechniques(t *testing.T) {
	c := Default()
	for _, id := range []string{"T1059.001", "T1003.001", "T1021.001", "T1021.002", "T1055", "T1486"} {
		if _, ok := c.Lookup(id); !ok {
			t.Fatalf("seed catalog is missing %s", id)
		}
	}
	if c.Size() == 0 {
		t.Fatalf("seed catalog must not be empty")
	}
	if len(c.Actors()) == 0 {
		t.Fatalf("seed catalog must carry actor profiles")
	}
}

func TestActorsReturnsACopy(t *testing.T) {
	c := Default()
	actors := c.Actors()
	actors[0].Name = "mutated"
	if c.Actors()[0].Name == "mutated" {
		t.Fatalf("Actors must not expose internal state")
	}
}
