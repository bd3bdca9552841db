package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/geovector-labs/aedesmap/internal/config"
	"github.com/geovector-labs/aedesmap/internal/gis"
	"github.com/geovector-labs/aedesmap/internal/niche"
	"github.com/geovector-labs/aedesmap/internal/pipeline"
	"github.com/geovector-labs/aedesmap/internal/state"
)

// CommandContext holds the common dependencies of the pipeline commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Store  *state.SQLiteStore
}

// NewCommandContext opens the state store for a command. The returned
// cleanup function must be called, typically via defer.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, nil, fmt.Errorf("configuration not loaded; is there an aedesmap.yaml in this project?")
	}
	logger := config.Logger(cmd.Context())

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, nil, err
	}
	if err := store.InitSchema(); err != nil {
		store.Close()
		return nil, nil, err
	}

	return &CommandContext{Cfg: cfg, Logger: logger, Store: store},
		func() { _ = store.Close() }, nil
}

// configFrom returns the loaded configuration of the command, if any.
func configFrom(cmd *cobra.Command) *config.Config {
	return config.FromContext(cmd.Context())
}

// engines builds the external tool adapters from configuration.
func (c *CommandContext) engines() pipeline.Engines {
	grass := c.Cfg.Engines.Grass
	maxent := c.Cfg.Engines.Maxent
	return pipeline.Engines{
		GIS: gis.NewGRASS(grass.Exe, grass.Mapset,
			time.Duration(grass.TimeoutMinutes)*time.Minute, c.Logger),
		Niche: niche.NewMaxent(maxent.Java, maxent.Jar, maxent.HeapMB,
			time.Duration(maxent.TimeoutMinutes)*time.Minute, c.Logger),
	}
}

// runner assembles the pipeline graph with any resolved decisions.
func (c *CommandContext) runner(dec pipeline.Decisions) (*pipeline.Runner, error) {
	return pipeline.Build(c.Cfg, c.Store, c.Logger, c.engines(), dec)
}
