package sim

import (
	"time"

	"github.com/kilianp07/nbhdsim/core/model"
)

// Entity identifies one household for a co-simulation driver.
type Entity struct {
	EID  string              `json:"eid"`
	Type model.HouseholdType `json:"type"`
}

// Meta describes what a neighborhood exposes to a driver.
type Meta struct {
	NeighborhoodID    string        `json:"neighborhood_id"`
	Resolution        time.Duration `json:"resolution"`
	Start             time.Time     `json:"start"`
	Entities          []Entity      `json:"entities"`
	HouseholdAttrs    []string      `json:"household_attrs"`
	NeighborhoodAttrs []string      `json:"neighborhood_attrs"`
	InputAttrs        []string      `json:"input_attrs"`
}

// Meta returns the entity list and readable attributes.
func (n *Neighborhood) Meta() Meta {
	ents := make([]Entity, len(n.households))
	for i := range n.households {
		ents[i] = Entity{EID: n.households[i].eid, Type: n.households[i].desc.Type}
	}
	return Meta{
		NeighborhoodID:    n.id,
		Resolution:        n.period.Resolution,
		Start:             n.period.Start,
		Entities:          ents,
		HouseholdAttrs:    HouseholdAttrs(),
		NeighborhoodAttrs: NeighborhoodAttrs(),
		InputAttrs:        []string{model.AttrGenerationMW, model.AttrLoadMW, model.AttrNetMW},
	}
}

// Snapshot is the latest state of a neighborhood.
type Snapshot struct {
	NeighborhoodID string            `json:"neighborhood_id"`
	Steps          int64             `json:"steps"`
	Time           time.Time         `json:"time"`
	Households     []HouseholdOutput `json:"households"`
	Aggregate      Aggregate         `json:"aggregate"`
}

// Snapshot copies the latest household outputs and aggregate.
func (n *Neighborhood) Snapshot() Snapshot {
	return Snapshot{
		NeighborhoodID: n.id,
		Steps:          n.steps,
		Time:           n.Now(),
		Households:     n.Households(),
		Aggregate:      n.last,
	}
}
