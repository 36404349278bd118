package agent

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/neuroplastio/psmove-bridge/internal/configsvc"
	"github.com/neuroplastio/psmove-bridge/internal/devicedb"
	"github.com/neuroplastio/psmove-bridge/internal/driver"
	"github.com/neuroplastio/psmove-bridge/internal/psmclient"
	"github.com/neuroplastio/psmove-bridge/pkg/bus"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

type Agent struct {
	config Config
	log    *zap.Logger

	db        *badger.DB
	configSvc *configsvc.Service
	events    *driver.DeviceBus
	store     *devicedb.Store
	provider  *driver.Provider

	debug chan debugRequest
}

type debugRequest struct {
	serial string
	text   string
	reply  chan string
}

func newLogger() (*zap.Logger, error) {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func newDB(config Config, logger *zap.Logger) (*badger.DB, error) {
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	dbOptions := badger.DefaultOptions(filepath.Join(config.DataDir, "db"))
	dbOptions.Logger = &badgerLogger{l: logger.Named("badger")}
	db, err := badger.Open(dbOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return db, nil
}

func defaultSettings() configsvc.Settings {
	s := configsvc.Settings{}
	s.Set("psmoveservice", "server_address", driver.DefaultServerAddress)
	s.Set("psmoveservice", "server_port", driver.DefaultServerPort)
	return s
}

func newSettings(config Config) (configsvc.Settings, error) {
	settings, err := configsvc.Initialize(config.SettingsPath, defaultSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

func newClient(config Config, logger *zap.Logger, settings configsvc.Settings) *psmclient.Client {
	address := driver.ServiceAddress(settings)
	host, port, _ := net.SplitHostPort(address)
	if config.Address != "" {
		host = config.Address
	}
	if config.Port != 0 {
		port = strconv.Itoa(config.Port)
	}
	return psmclient.New(logger.Named("psmclient"), net.JoinHostPort(host, port))
}

func newProvider(config Config, logger *zap.Logger, client *psmclient.Client, settings configsvc.Settings, events *driver.DeviceBus) *driver.Provider {
	opts := []driver.Option{driver.WithDeviceBus(events)}
	if len(config.CompanionCommand) > 0 {
		opts = append(opts, driver.WithCompanion(execCompanion{
			log:     logger.Named("companion"),
			command: config.CompanionCommand,
		}))
	}
	return driver.NewProvider(logger.Named("driver"), client, logHost{log: logger.Named("host")}, settings, opts...)
}

func NewAgent(config Config) (*Agent, error) {
	if config.FrameRate <= 0 {
		config.FrameRate = DefaultFrameRate
	}
	c := dig.New()
	ctors := []any{
		func() Config { return config },
		newLogger,
		newDB,
		newSettings,
		newClient,
		newProvider,
		func(logger *zap.Logger) *configsvc.Service {
			return configsvc.New(logger.Named("config"))
		},
		func(logger *zap.Logger) *driver.DeviceBus {
			return bus.NewBus[driver.DeviceEventType, driver.DeviceEvent](logger.Named("bus"))
		},
		func(logger *zap.Logger, db *badger.DB) *devicedb.Store {
			return devicedb.New(logger.Named("devicedb"), db, time.Now)
		},
	}
	for _, ctor := range ctors {
		if err := c.Provide(ctor); err != nil {
			return nil, fmt.Errorf("failed to register agent component: %w", err)
		}
	}
	a := &Agent{
		config: config,
		debug:  make(chan debugRequest),
	}
	err := c.Invoke(func(logger *zap.Logger, db *badger.DB, configSvc *configsvc.Service, events *driver.DeviceBus, store *devicedb.Store, provider *driver.Provider) {
		a.log = logger
		a.db = db
		a.configSvc = configSvc
		a.events = events
		a.store = store
		a.provider = provider
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build agent: %w", dig.RootCause(err))
	}
	return a, nil
}

func (a *Agent) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger db: %w", err)
	}
	_ = a.log.Sync()
	return nil
}

type badgerLogger struct {
	l *zap.Logger
}

func (l badgerLogger) Errorf(msg string, args ...any) {
	l.l.Error(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Warningf(msg string, args ...any) {
	l.l.Warn(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Infof(msg string, args ...any) {
	l.l.Info(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Debugf(msg string, args ...any) {
	l.l.Debug(fmt.Sprintf(msg, args...))
}

// Run starts the agent and blocks until the context is cancelled.
// Setting changes on disk are picked up by adapters created after the change.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.configSvc.Start(groupCtx)
	})
	group.Go(func() error {
		select {
		case <-groupCtx.Done():
			return nil
		case <-a.configSvc.Ready():
		}
		_, err := configsvc.Register[configsvc.Settings](a.configSvc, a.config.SettingsPath, nil, func(s configsvc.Settings) {
			a.provider.UpdateSettings(s)
		})
		return err
	})
	group.Go(func() error {
		return a.events.Start(groupCtx)
	})
	group.Go(func() error {
		return a.store.Run(groupCtx, a.events.CreateSubscriber())
	})
	group.Go(func() error {
		return a.provider.Start(groupCtx)
	})
	group.Go(func() error {
		return a.runFrames(groupCtx)
	})

	err := group.Wait()
	if err != nil {
		return fmt.Errorf("agent failed: %w", err)
	}
	return nil
}

// runFrames acts as the host frame thread: every provider call except Start happens here.
func (a *Agent) runFrames(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(a.config.FrameRate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.provider.RunFrame()
		case req := <-a.debug:
			req.reply <- a.provider.DebugRequest(req.serial, req.text)
		}
	}
}

// DebugRequest forwards a debug channel command to the device with the given serial.
// The agent must be running.
func (a *Agent) DebugRequest(ctx context.Context, serial, text string) (string, error) {
	req := debugRequest{serial: serial, text: text, reply: make(chan string, 1)}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a.debug <- req:
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case reply := <-req.reply:
		return reply, nil
	}
}

func (a *Agent) Devices() ([]devicedb.Record, error) {
	return a.store.List()
}
