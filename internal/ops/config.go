package ops

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"main/internal/schema"
)

const (
	defaultWorkers       = 4
	defaultQueueCapacity = 1024
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Instruments []InstrumentConfig `json:"instruments"`
	Store       StoreConfig        `json:"store"`
	Rebuild     RebuildConfig      `json:"rebuild"`
}

// InstrumentConfig describes one instrument entry.
type InstrumentConfig struct {
	Symbol     string `json:"symbol"`
	PointValue string `json:"pointValue"`
}

// StoreConfig describes the PostgreSQL connection.
type StoreConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// RebuildConfig captures rebuild tuning knobs.
type RebuildConfig struct {
	Workers       int `json:"workers"`
	QueueCapacity int `json:"queueCapacity"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry *schema.InstrumentRegistry
	Store    StoreConfig
	Rebuild  RebuildSpec
}

// RebuildSpec is the resolved rebuild tuning.
type RebuildSpec struct {
	Workers       int
	QueueCapacity int
}

// Load reads a JSON config file and builds the instrument registry.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := sonic.ConfigFastest.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	registry, err := buildRegistry(cfg.Instruments)
	if err != nil {
		return Loaded{}, err
	}
	spec, err := resolveRebuild(cfg.Rebuild)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{
		Registry: registry,
		Store:    cfg.Store,
		Rebuild:  spec,
	}, nil
}

// Default returns the configuration used when no file is given.
func Default() Loaded {
	return Loaded{
		Registry: schema.NewInstrumentRegistry(),
		Rebuild: RebuildSpec{
			Workers:       defaultWorkers,
			QueueCapacity: defaultQueueCapacity,
		},
	}
}

func buildRegistry(instruments []InstrumentConfig) (*schema.InstrumentRegistry, error) {
	registry := schema.NewInstrumentRegistry()
	for _, inst := range instruments {
		raw := inst.PointValue
		if raw == "" {
			raw = "1"
		}
		pointValue, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid point value for %s: %w", inst.Symbol, err)
		}
		if err := registry.AddInstrument(inst.Symbol, pointValue); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func resolveRebuild(cfg RebuildConfig) (RebuildSpec, error) {
	if cfg.Workers < 0 {
		return RebuildSpec{}, fmt.Errorf("rebuild workers must be >= 0")
	}
	if cfg.QueueCapacity < 0 {
		return RebuildSpec{}, fmt.Errorf("rebuild queue capacity must be >= 0")
	}
	spec := RebuildSpec{
		Workers:       cfg.Workers,
		QueueCapacity: cfg.QueueCapacity,
	}
	if spec.Workers == 0 {
		spec.Workers = defaultWorkers
	}
	if spec.QueueCapacity == 0 {
		spec.QueueCapacity = defaultQueueCapacity
	}
	return spec, nil
}
