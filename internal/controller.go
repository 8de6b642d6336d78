package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/minicraftmp/server/internal/core"
	"github.com/minicraftmp/server/internal/core/data"
	"github.com/minicraftmp/server/internal/core/debug"
	"github.com/minicraftmp/server/internal/registry"
	"github.com/minicraftmp/server/internal/world"
)

// Controller is the main entrypoint for the server. It's responsible for initializing
// any shared resources (such as database and logging), defining the listeners, and
// launching everything.
type Controller struct {
	Config *core.Config
	// Logger is created from Config if not set.
	Logger *logrus.Logger

	wg sync.WaitGroup
	db *gorm.DB

	registry *registry.Server
}

// Start initializes everything and blocks until ctx is cancelled and every
// client has disconnected.
func (c *Controller) Start(ctx context.Context) error {
	defer c.Shutdown()
	// Stops any listener that started if a later one fails.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := c.init(ctx); err != nil {
		return err
	}
	c.wg.Wait()
	return nil
}

func (c *Controller) init(ctx context.Context) error {
	var err error
	// Set up the logger, which will be used by everything else.
	if c.Logger == nil {
		if c.Logger, err = core.NewLogger(c.Config); err != nil {
			return fmt.Errorf("error initializing logger: %w", err)
		}
	}

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.Enabled {
		debug.StartUtilities(c.Logger, c.Config.Debugging.PprofPort)
	}

	if c.Config.Database.Engine != "" {
		c.db, err = data.Open(c.Config.Database.Engine, c.dataSource(), c.Config.Debugging.DatabaseLoggingEnabled)
		if err != nil {
			return err
		}
	} else {
		c.Logger.Info("no database engine configured; player index disabled")
	}

	c.registry = &registry.Server{
		Name:   "WORLD",
		Config: c.Config,
		Logger: c.Logger,
		World:  world.NewDefault(),
		DB:     c.db,
	}
	if err := c.registry.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %w", c.registry.Identifier(), err)
	}

	return c.run(ctx)
}

func (c *Controller) dataSource() string {
	if c.Config.Database.Engine == "postgres" {
		return c.Config.DatabaseURL()
	}
	return c.Config.QualifiedPath(c.Config.Database.Filename)
}

func (c *Controller) run(ctx context.Context) error {
	tcp := &frontend{
		Address: c.Config.ListenAddress(c.Config.Port),
		Backend: c.registry,
		Config:  c.Config,
		Logger:  c.Logger,
	}
	if _, err := tcp.Start(ctx, &c.wg); err != nil {
		return fmt.Errorf("error starting %s server: %w", c.registry.Identifier(), err)
	}

	if c.Config.WebSocketPort != 0 {
		ws := &websocketFrontend{
			Address: c.Config.ListenAddress(c.Config.WebSocketPort),
			Backend: c.registry,
			Config:  c.Config,
			Logger:  c.Logger,
		}
		if _, err := ws.Start(ctx, &c.wg); err != nil {
			return fmt.Errorf("error starting %s websocket server: %w", c.registry.Identifier(), err)
		}
	}
	return nil
}

// Shutdown waits for the listeners to stop and releases shared resources.
func (c *Controller) Shutdown() {
	c.wg.Wait()
	if c.db != nil {
		if err := data.Close(c.db); err != nil {
			c.Logger.Warnf("error closing database: %v", err)
		}
		c.db = nil
	}
}
