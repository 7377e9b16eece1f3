// Package config loads the server's YAML configuration and projects it
// onto the subsystem configs consumed at wiring time.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"mendbots/server/internal/bot"
	"mendbots/server/internal/hub"
	"mendbots/server/internal/sim"
	"mendbots/server/internal/world"
	"mendbots/server/logging"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	World   WorldConfig   `yaml:"world"`
	Bots    BotsConfig    `yaml:"bots"`
	Logging LoggingConfig `yaml:"logging"`
	Journal JournalConfig `yaml:"journal"`
}

type ServerConfig struct {
	Addr             string `yaml:"addr"`
	ClientDir        string `yaml:"client_dir"`
	TickRate         int    `yaml:"tick_rate"`
	CatchupMaxTicks  int    `yaml:"catchup_max_ticks"`
	CommandCapacity  int    `yaml:"command_capacity"`
	PerActorLimit    int    `yaml:"per_actor_limit"`
	QueueWarningStep int    `yaml:"queue_warning_step"`
	BroadcastEvery   uint64 `yaml:"broadcast_every"`
	Pprof            bool   `yaml:"pprof"`
}

type WorldConfig struct {
	Seed           string  `yaml:"seed"`
	Width          float64 `yaml:"width"`
	Height         float64 `yaml:"height"`
	Obstacles      bool    `yaml:"obstacles"`
	ObstacleCount  int     `yaml:"obstacle_count"`
	Structures     bool    `yaml:"structures"`
	StructureCount int     `yaml:"structure_count"`
	ContainerCount int     `yaml:"container_count"`
	ContainerPacks int     `yaml:"container_packs"`
	OwnerPacks     int     `yaml:"owner_packs"`
	PackItem       string  `yaml:"pack_item"`
	DamagedRatio   float64 `yaml:"damaged_ratio"`
	ScenarioPath   string  `yaml:"scenario_path"`
	CatalogPath    string  `yaml:"catalog_path"`
}

type BotsConfig struct {
	UpdateEvery    uint64  `yaml:"update_every"`
	MoveSpeed      float64 `yaml:"move_speed"`
	PlanMargin     int     `yaml:"plan_margin"`
	PatrolRadius   float64 `yaml:"patrol_radius"`
	RepairDistance float64 `yaml:"repair_distance"`
	RepairRadius   float64 `yaml:"repair_radius"`
	PackCapacity   float64 `yaml:"pack_capacity"`
	StepDistance   float64 `yaml:"step_distance"`
	Wear           bool    `yaml:"wear"`
	WearEvery      uint64  `yaml:"wear_every"`
	WearAmount     float64 `yaml:"wear_amount"`
}

type LoggingConfig struct {
	Sinks      []string `yaml:"sinks"`
	BufferSize int      `yaml:"buffer_size"`
	Severity   string   `yaml:"severity"`
	JSONPath   string   `yaml:"json_path"`
	ArchiveDir string   `yaml:"archive_dir"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads the file at path over the built-in defaults. An empty path
// yields the defaults untouched.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			TickRate:        15,
			CatchupMaxTicks: 1,
			CommandCapacity: 256,
			PerActorLimit:   8,
			BroadcastEvery:  1,
		},
		World: WorldConfig{
			Seed:           world.DefaultSeed,
			Width:          world.DefaultWidth,
			Height:         world.DefaultHeight,
			Obstacles:      true,
			ObstacleCount:  world.DefaultObstacleCount,
			Structures:     true,
			StructureCount: world.DefaultStructureCount,
			ContainerCount: world.DefaultContainerCount,
			ContainerPacks: world.DefaultContainerPacks,
			OwnerPacks:     world.DefaultOwnerPacks,
			PackItem:       world.DefaultPackItem,
			DamagedRatio:   world.DefaultDamagedRatio,
		},
		Bots: BotsConfig{
			UpdateEvery: 2,
			MoveSpeed:   0.5,
			PlanMargin:  6,
			Wear:        true,
			WearEvery:   25,
			WearAmount:  4,
		},
		Logging: LoggingConfig{
			Sinks:      []string{"console"},
			BufferSize: 512,
			Severity:   "info",
		},
		Journal: JournalConfig{
			Path: "data/journal.db",
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.TickRate < 1 {
		c.Server.TickRate = 15
	}
	if c.Server.BroadcastEvery < 1 {
		c.Server.BroadcastEvery = 1
	}
	c.World.Seed = strings.TrimSpace(c.World.Seed)
	c.World.PackItem = strings.TrimSpace(c.World.PackItem)
	c.World.ScenarioPath = strings.TrimSpace(c.World.ScenarioPath)
	c.World.CatalogPath = strings.TrimSpace(c.World.CatalogPath)
	c.Logging.Severity = strings.ToLower(strings.TrimSpace(c.Logging.Severity))
	if c.Logging.Severity == "" {
		c.Logging.Severity = "info"
	}
	for i, sink := range c.Logging.Sinks {
		c.Logging.Sinks[i] = strings.ToLower(strings.TrimSpace(sink))
	}
	c.Journal.Path = strings.TrimSpace(c.Journal.Path)
}

func (c Config) Validate() error {
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("world width/height must be > 0")
	}
	if c.World.DamagedRatio < 0 || c.World.DamagedRatio > 1 {
		return fmt.Errorf("world damaged_ratio must be in [0, 1]")
	}
	switch c.Logging.Severity {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging severity %q not one of debug/info/warn/error", c.Logging.Severity)
	}
	for _, sink := range c.Logging.Sinks {
		switch sink {
		case "console", "json", "memory", "archive":
		default:
			return fmt.Errorf("logging sink %q not one of console/json/memory/archive", sink)
		}
		if sink == "json" && c.Logging.JSONPath == "" {
			return fmt.Errorf("logging sink json requires json_path")
		}
		if sink == "archive" && c.Logging.ArchiveDir == "" {
			return fmt.Errorf("logging sink archive requires archive_dir")
		}
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal requires a path when enabled")
	}
	return nil
}

// WorldConfig projects the world section onto the world model's config.
func (c Config) WorldConfig() world.Config {
	return world.Config{
		Seed:           c.World.Seed,
		Width:          c.World.Width,
		Height:         c.World.Height,
		Obstacles:      c.World.Obstacles,
		ObstacleCount:  c.World.ObstacleCount,
		Structures:     c.World.Structures,
		StructureCount: c.World.StructureCount,
		ContainerCount: c.World.ContainerCount,
		ContainerPacks: c.World.ContainerPacks,
		OwnerPacks:     c.World.OwnerPacks,
		PackItem:       c.World.PackItem,
		DamagedRatio:   c.World.DamagedRatio,
		ScenarioPath:   c.World.ScenarioPath,
	}
}

// HubConfig projects the server and bots sections onto the hub's config.
// Zeroed tuning fields fall through to the subsystem defaults.
func (c Config) HubConfig() hub.Config {
	return hub.Config{
		MoveSpeed:      c.Bots.MoveSpeed,
		PlanMargin:     c.Bots.PlanMargin,
		BotEvery:       c.Bots.UpdateEvery,
		Wear:           c.Bots.Wear,
		WearEvery:      c.Bots.WearEvery,
		WearAmount:     c.Bots.WearAmount,
		BroadcastEvery: c.Server.BroadcastEvery,
		Bot: bot.Config{
			PatrolRadius:   c.Bots.PatrolRadius,
			RepairDistance: c.Bots.RepairDistance,
			RepairRadius:   c.Bots.RepairRadius,
			PackCapacity:   c.Bots.PackCapacity,
			Follow:         bot.FollowConfig{StepDistance: c.Bots.StepDistance},
		},
		Sim: sim.Config{
			TickRate:        c.Server.TickRate,
			CatchupMaxTicks: c.Server.CatchupMaxTicks,
			CommandCapacity: c.Server.CommandCapacity,
			PerActorLimit:   c.Server.PerActorLimit,
			WarningStep:     c.Server.QueueWarningStep,
		},
	}
}

// LoggingConfig projects the logging section onto the event router's
// config.
func (c Config) LoggingConfig() logging.Config {
	routerCfg := logging.DefaultConfig()
	routerCfg.EnabledSinks = append([]string(nil), c.Logging.Sinks...)
	if c.Logging.BufferSize > 0 {
		routerCfg.BufferSize = c.Logging.BufferSize
	}
	routerCfg.MinimumSeverity = parseSeverity(c.Logging.Severity)
	routerCfg.JSON.FilePath = c.Logging.JSONPath
	routerCfg.Archive.Dir = c.Logging.ArchiveDir
	return routerCfg
}

func parseSeverity(s string) logging.Severity {
	switch s {
	case "debug":
		return logging.SeverityDebug
	case "warn":
		return logging.SeverityWarn
	case "error":
		return logging.SeverityError
	default:
		return logging.SeverityInfo
	}
}
