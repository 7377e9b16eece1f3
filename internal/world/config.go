package world

import "strings"

const (
	DefaultSeed   = "prototype"
	DefaultWidth  = 100.0
	DefaultHeight = 100.0

	DefaultObstacleCount  = 140
	DefaultStructureCount = 36
	DefaultContainerCount = 6
	DefaultContainerPacks = 8
	DefaultOwnerPacks     = 4
	DefaultDamagedRatio   = 0.35
	DefaultPackItem       = "repair-pack"
)

type Config struct {
	Seed   string  `json:"seed"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Obstacles      bool `json:"obstacles"`
	ObstacleCount  int  `json:"obstacleCount"`
	Structures     bool `json:"structures"`
	StructureCount int  `json:"structureCount"`
	ContainerCount int  `json:"containerCount"`

	// ContainerPacks is how many repair packs each generated container
	// starts with; OwnerPacks seeds new owner inventories.
	ContainerPacks int    `json:"containerPacks"`
	OwnerPacks     int    `json:"ownerPacks"`
	PackItem       string `json:"packItem"`

	// DamagedRatio is the fraction of generated structures that spawn
	// below full health, in [0, 1].
	DamagedRatio float64 `json:"damagedRatio"`

	// ScenarioPath, when set, loads the layout from a file instead of
	// generating one; the counts above are ignored.
	ScenarioPath string `json:"scenarioPath"`
}

func (cfg Config) normalized() Config {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = DefaultSeed
	}
	if normalized.Width <= 0 {
		normalized.Width = DefaultWidth
	}
	if normalized.Height <= 0 {
		normalized.Height = DefaultHeight
	}
	if normalized.ObstacleCount < 0 {
		normalized.ObstacleCount = 0
	}
	if normalized.StructureCount < 0 {
		normalized.StructureCount = 0
	}
	if normalized.ContainerCount < 0 {
		normalized.ContainerCount = 0
	}
	if normalized.ContainerPacks < 0 {
		normalized.ContainerPacks = 0
	}
	if normalized.OwnerPacks < 0 {
		normalized.OwnerPacks = 0
	}
	normalized.PackItem = strings.TrimSpace(normalized.PackItem)
	if normalized.PackItem == "" {
		normalized.PackItem = DefaultPackItem
	}
	if normalized.DamagedRatio < 0 {
		normalized.DamagedRatio = 0
	}
	if normalized.DamagedRatio > 1 {
		normalized.DamagedRatio = 1
	}
	normalized.ScenarioPath = strings.TrimSpace(normalized.ScenarioPath)
	return normalized
}

func DefaultConfig() Config {
	return Config{
		Seed:           DefaultSeed,
		Width:          DefaultWidth,
		Height:         DefaultHeight,
		Obstacles:      true,
		ObstacleCount:  DefaultObstacleCount,
		Structures:     true,
		StructureCount: DefaultStructureCount,
		ContainerCount: DefaultContainerCount,
		ContainerPacks: DefaultContainerPacks,
		OwnerPacks:     DefaultOwnerPacks,
		PackItem:       DefaultPackItem,
		DamagedRatio:   DefaultDamagedRatio,
	}
}
