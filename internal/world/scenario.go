package world

import (
	"encoding/json"
	"fmt"
	"os"
)

// Scenario is a hand-authored world layout loaded in place of random
// generation. Tiles are addressed by column and row; health left unset
// on a structure means full health for its kind.
type Scenario struct {
	Obstacles  []ScenarioObstacle  `json:"obstacles"`
	Structures []ScenarioStructure `json:"structures"`
	Containers []ScenarioContainer `json:"containers"`
}

type ScenarioObstacle struct {
	Kind string `json:"kind,omitempty"`
	Col  int    `json:"col"`
	Row  int    `json:"row"`
}

type ScenarioStructure struct {
	ID     string   `json:"id,omitempty"`
	Kind   string   `json:"kind"`
	Col    int      `json:"col"`
	Row    int      `json:"row"`
	Health *float64 `json:"health,omitempty"`
}

type ScenarioContainer struct {
	ID    string `json:"id,omitempty"`
	Col   int    `json:"col"`
	Row   int    `json:"row"`
	Packs int    `json:"packs"`
}

// LoadScenario reads and decodes a scenario file.
func LoadScenario(path string) (Scenario, error) {
	var scenario Scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return scenario, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &scenario); err != nil {
		return scenario, fmt.Errorf("scenario: decode %s: %w", path, err)
	}
	return scenario, nil
}

// validate checks the scenario against the world dimensions and the
// known structure kinds.
func (s Scenario) validate(width, height float64, kinds []StructureKind) error {
	byKind := make(map[string]StructureKind, len(kinds))
	for _, kind := range kinds {
		byKind[kind.Kind] = kind
	}

	inWorld := func(col, row int) bool {
		return col >= 0 && row >= 0 && col < int(width) && row < int(height)
	}

	for i, obs := range s.Obstacles {
		if !inWorld(obs.Col, obs.Row) {
			return fmt.Errorf("scenario: obstacle %d outside world at (%d,%d)", i, obs.Col, obs.Row)
		}
	}
	seen := make(map[string]struct{})
	for i, st := range s.Structures {
		if !inWorld(st.Col, st.Row) {
			return fmt.Errorf("scenario: structure %d outside world at (%d,%d)", i, st.Col, st.Row)
		}
		if _, ok := byKind[st.Kind]; !ok {
			return fmt.Errorf("scenario: structure %d has unknown kind %q", i, st.Kind)
		}
		if st.ID != "" {
			if _, dup := seen[st.ID]; dup {
				return fmt.Errorf("scenario: duplicate structure id %q", st.ID)
			}
			seen[st.ID] = struct{}{}
		}
		if st.Health != nil && *st.Health < 0 {
			return fmt.Errorf("scenario: structure %d has negative health", i)
		}
	}
	for i, c := range s.Containers {
		if !inWorld(c.Col, c.Row) {
			return fmt.Errorf("scenario: container %d outside world at (%d,%d)", i, c.Col, c.Row)
		}
		if c.Packs < 0 {
			return fmt.Errorf("scenario: container %d has negative pack count", i)
		}
	}
	return nil
}
