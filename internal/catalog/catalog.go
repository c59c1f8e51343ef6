package catalog

import (
	"fmt"

	"incidentgraph/pkg/models"
)

// Catalog is an immutable technique registry. It is constructed once at
// startup and injected; lookups return copies so callers cannot mutate it.
type Catalog struct {
	techniques map[string]models.MitreTechnique
	actors     []ActorProfile
}

// ActorProfile is a static threat-actor seed used for attribution scoring.
type ActorProfile struct {
	Name            string   `json:"name"`
	Aliases         []string `json:"aliases,omitempty"`
	KnownTechniques []string `json:"known_techniques"`
}

// New builds a catalog from technique entries and actor profiles.
// Duplicate technique IDs are rejected.
func New(techniques []models.MitreTechnique, actors []ActorProfile) (*Catalog, error) {
	byID := make(map[string]models.MitreTechnique, len(techniques))
	for _, t := range techniques {
		if t.ID == "" {
			return nil, fmt.Errorf("technique entry with empty id")
		}
		if _, ok := byID[t.ID]; ok {
			return nil, fmt.Errorf("duplicate technique id %s", t.ID)
		}
		byID[t.ID] = t
	}
	for _, a := range actors {
		if a.Name == "" || len(a.KnownTechniques) == 0 {
			return nil, fmt.Errorf("actor profile must have a name and at least one technique")
		}
	}
	return &Catalog{
		techniques: byID,
		actors:     append([]ActorProfile(nil), actors...),
	}, nil
}

// Lookup returns the catalog entry for a technique ID.
func (c *Catalog) Lookup(id string) (models.MitreTechnique, bool) {
	t, ok := c.techniques[id]
	return t, ok
}

// Resolve returns catalog entries for the given IDs in input order. Unknown
// IDs degrade to a bare entry so downstream consumers never lose the ID.
func (c *Catalog) Resolve(ids []string) []models.MitreTechnique {
	if len(ids) == 0 {
		return nil
	}
	out := make([]models.MitreTechnique, 0, len(ids))
	for _, id := range ids {
		if t, ok := c.techniques[id]; ok {
			out = append(out, t)
			continue
		}
		out = append(out, models.MitreTechnique{ID: id, Name: id})
	}
	return out
}

// Actors returns a copy of the seeded actor profiles.
func (c *Catalog) Actors() []ActorProfile {
	return append([]ActorProfile(nil), c.actors...)
}

// Size returns the number of technique entries.
func (c *Catalog) Size() int {
	return len(c.techniques)
}
