package catalog

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	world "mendbots/server/internal/world"
)

//go:embed data/structures.json
var embeddedDefinitions embed.FS

// Default provides the structure kinds bundled with the server.
var Default = MustLoad()

// StructureDocument represents a single catalog entry as it appears on disk.
// The struct is exported so tooling (e.g. schema generators) can reflect over
// the configuration contract shared with designers.
type StructureDocument struct {
	ID        string  `json:"id" jsonschema:"title=Structure Kind ID,description=Designer-facing identifier referenced by layouts and repair events.,pattern=^[a-z0-9-]+$,minLength=1,required"`
	Name      string  `json:"name" jsonschema:"title=Display Name,description=Human-readable name shown in dashboards and logs.,minLength=1,required"`
	MaxHealth float64 `json:"maxHealth" jsonschema:"title=Maximum Health,description=Health ceiling the repair bots restore structures of this kind to.,minimum=1,required"`
	Blocking  bool    `json:"blocking,omitempty" jsonschema:"title=Blocks Movement,description=Whether structures of this kind occupy their tile for navigation."`
}

// FileDefinitions represents the contents of catalog/data/structures.json.
// The catalog loader accepts either arrays or objects; the schema models the
// canonical array format authored by designers.
type FileDefinitions []StructureDocument

// Catalog stores resolved structure kinds indexed by their designer ID.
type Catalog struct {
	byID  map[string]StructureDocument
	order []string
}

// MustLoad loads the embedded structure definitions or panics on failure.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(fmt.Errorf("catalog: load embedded definitions: %w", err))
	}
	return c
}

// Load parses the structure definitions bundled with the server binary.
func Load() (*Catalog, error) {
	data, err := embeddedDefinitions.ReadFile("data/structures.json")
	if err != nil {
		return nil, fmt.Errorf("catalog: read embedded definitions: %w", err)
	}
	return parse(data, "data/structures.json")
}

// LoadFile parses structure definitions from an on-disk override. Deployments
// use it to swap the bundled kinds without rebuilding the server.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed loading %s: %w", path, err)
	}
	return parse(data, path)
}

func parse(data []byte, origin string) (*Catalog, error) {
	documents, err := decodeDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed parsing %s: %w", origin, err)
	}

	c := &Catalog{byID: make(map[string]StructureDocument, len(documents))}
	for _, doc := range documents {
		id := strings.TrimSpace(doc.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog: entry missing id in %s", origin)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("catalog: duplicate id %q in %s", id, origin)
		}
		if strings.TrimSpace(doc.Name) == "" {
			return nil, fmt.Errorf("catalog: entry %q missing name", id)
		}
		if doc.MaxHealth <= 0 || math.IsNaN(doc.MaxHealth) || math.IsInf(doc.MaxHealth, 0) {
			return nil, fmt.Errorf("catalog: entry %q has invalid maxHealth %v", id, doc.MaxHealth)
		}
		doc.ID = id
		c.byID[id] = doc
		c.order = append(c.order, id)
	}
	if len(c.order) == 0 {
		return nil, fmt.Errorf("catalog: no structure kinds defined in %s", origin)
	}
	return c, nil
}

func decodeDefinitions(data []byte) ([]StructureDocument, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var documents []StructureDocument
		if err := json.Unmarshal(trimmed, &documents); err != nil {
			return nil, err
		}
		return documents, nil
	case '{':
		var object map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &object); err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(object))
		for id := range object {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		documents := make([]StructureDocument, 0, len(ids))
		for _, id := range ids {
			var doc StructureDocument
			if err := json.Unmarshal(object[id], &doc); err != nil {
				return nil, fmt.Errorf("entry %q: %w", id, err)
			}
			if doc.ID == "" {
				doc.ID = id
			} else if doc.ID != id {
				return nil, fmt.Errorf("entry id %q does not match key %q", doc.ID, id)
			}
			documents = append(documents, doc)
		}
		return documents, nil
	default:
		return nil, fmt.Errorf("unexpected json token %q", string(trimmed[:1]))
	}
}

// Lookup returns the catalog document for the provided kind ID.
func (c *Catalog) Lookup(id string) (StructureDocument, bool) {
	if c == nil {
		return StructureDocument{}, false
	}
	doc, ok := c.byID[id]
	return doc, ok
}

// MaxHealth returns the authored health ceiling for the provided kind.
func (c *Catalog) MaxHealth(kind string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	doc, ok := c.byID[kind]
	if !ok {
		return 0, false
	}
	return doc.MaxHealth, true
}

// Kinds projects the catalog into world generation descriptors in authored
// order.
func (c *Catalog) Kinds() []world.StructureKind {
	if c == nil {
		return nil
	}
	kinds := make([]world.StructureKind, 0, len(c.order))
	for _, id := range c.order {
		doc := c.byID[id]
		kinds = append(kinds, world.StructureKind{
			Kind:      id,
			MaxHealth: doc.MaxHealth,
			Blocking:  doc.Blocking,
		})
	}
	return kinds
}

// IDs returns the kind identifiers in authored order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
