package app

import (
	"context"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/bwmarrin/snowflake"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/oasis-iglesia/oasis/config"
	"github.com/oasis-iglesia/oasis/internal/channel"
	"github.com/oasis-iglesia/oasis/internal/domain"
	"github.com/oasis-iglesia/oasis/internal/notify"
	"github.com/oasis-iglesia/oasis/internal/settings"
	"github.com/oasis-iglesia/oasis/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Settings categories.
const (
	CategoryWhatsApp = "whatsapp"
	CategoryNotify   = "notify"
)

type Application struct {
	appConfig     *config.AppConfig
	gormDB        *gorm.DB
	boltDB        *bolt.DB
	sched         *cron.Cron
	configManager *ConfigManager
	bus           EventBus.Bus
	node          *snowflake.Node

	storesMu sync.Mutex
	stores   map[string]settings.Store

	dispatchPool *channel.PoolScheduler
	recorder     *channel.GormEventRecorder
	manager      *channel.Manager
	notifier     *notify.Notifier
}

// Ensure Application implements all interfaces
var (
	_ DBProvider            = (*Application)(nil)
	_ ConfigProvider        = (*Application)(nil)
	_ SettingsProvider      = (*Application)(nil)
	_ SchedulerProvider     = (*Application)(nil)
	_ ConfigManagerProvider = (*Application)(nil)
	_ ChannelProvider       = (*Application)(nil)
	_ AppContext            = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig, stores: map[string]settings.Store{}}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

func (a *Application) Init(cfg *config.AppConfig) error {
	a.appConfig = cfg
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	initLogger(cfg.Logger)

	if err := cfg.InitDirs(); err != nil {
		return err
	}

	// Initialize metrics with workdir convention
	if err := metrics.InitMetrics(cfg.System.Workdir); err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	// Initialize database connection
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	a.gormDB, err = getDatabase(cfg.Database, cfg.System.Workdir)
	if err != nil {
		return err
	}
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	// Ensure database schema is migrated before loading configs
	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	if cfg.Channel.Store == "bolt" {
		a.boltDB, err = settings.OpenBolt(filepath.Join(cfg.GetDataDir(), "settings.db"))
		if err != nil {
			return err
		}
	}
	a.checkSettings()
	a.configManager = NewConfigManager(a)

	return a.initChannel()
}

func initLogger(cfg config.LogConfig) {
	var zapConfig zap.Config
	if cfg.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	// Build logger with file rotation if enabled
	var logger *zap.Logger
	if cfg.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
}

func (a *Application) initChannel() error {
	var err error
	a.node, err = snowflake.NewNode(1)
	if err != nil {
		return err
	}
	a.bus = EventBus.New()

	store, err := a.SettingsStore(CategoryWhatsApp)
	if err != nil {
		return err
	}
	notifyStore, err := a.SettingsStore(CategoryNotify)
	if err != nil {
		return err
	}

	a.dispatchPool, err = channel.NewPoolScheduler(a.appConfig.Channel.Workers)
	if err != nil {
		return errors.Wrap(err, "dispatch worker pool")
	}
	a.recorder = channel.NewGormEventRecorder(a.gormDB, a.node)
	a.manager = channel.NewManager(store, a.recorder, a.bus,
		channel.NewClientFactory(a.appConfig.Channel.HTTPTimeout), a.dispatchPool)
	if r := a.appConfig.Channel.IgnoredAuditRate; r > 0 {
		a.manager.StateMachine().LimitIgnoredAudit(r, int(r)*4)
	}

	a.notifier = notify.NewNotifier(notifyStore, nil)
	if err := a.notifier.Subscribe(a.bus); err != nil {
		return errors.Wrap(err, "subscribe notifier")
	}
	if err := a.bus.Subscribe(channel.TopicStatus, func(from, to channel.Status) {
		metrics.Incr("channel_status_" + string(to))
	}); err != nil {
		return errors.Wrap(err, "subscribe status metrics")
	}
	return nil
}

// SettingsStore returns the store for a settings category, creating it on
// first use on the configured backend.
func (a *Application) SettingsStore(category string) (settings.Store, error) {
	a.storesMu.Lock()
	defer a.storesMu.Unlock()
	if s, ok := a.stores[category]; ok {
		return s, nil
	}
	var s settings.Store
	if a.boltDB != nil {
		bs, err := settings.NewBoltStore(a.boltDB, category)
		if err != nil {
			return nil, err
		}
		s = bs
	} else {
		if a.gormDB == nil {
			return nil, errors.New("database not initialized")
		}
		s = settings.NewGormStore(a.gormDB, category)
	}
	a.stores[category] = s
	return s, nil
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	return db.Migrator().AutoMigrate(domain.Tables...)
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
}

// ConfigMgr returns the configuration manager
func (a *Application) ConfigMgr() *ConfigManager {
	return a.configManager
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) Channel() *channel.Manager {
	return a.manager
}

func (a *Application) Events() *channel.GormEventRecorder {
	return a.recorder
}

func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

// NextID returns a snowflake id for audit rows.
func (a *Application) NextID() int64 {
	return a.node.Generate().Int64()
}

// GetSettingsStringValue retrieves a string configuration value
func (a *Application) GetSettingsStringValue(category, key string) string {
	return a.configManager.GetString(category, key)
}

// GetSettingsInt64Value retrieves an int64 configuration value
func (a *Application) GetSettingsInt64Value(category, key string) int64 {
	return a.configManager.GetInt64(category, key)
}

// GetSettingsBoolValue retrieves a boolean configuration value
func (a *Application) GetSettingsBoolValue(category, key string) bool {
	return a.configManager.GetBool(category, key)
}

// SaveSettings writes category.name keyed values.
func (a *Application) SaveSettings(values map[string]interface{}) error {
	return a.configManager.SaveAll(values)
}

// StartBackgroundJobs starts the cron jobs. ctx is only used to stop them.
func (a *Application) StartBackgroundJobs(ctx context.Context) {
	a.initJob()
	go func() {
		<-ctx.Done()
		<-a.sched.Stop().Done()
	}()
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.bus != nil {
		a.bus.WaitAsync()
	}
	if a.dispatchPool != nil {
		a.dispatchPool.Release()
	}
	if a.boltDB != nil {
		_ = a.boltDB.Close()
	}
	if a.gormDB != nil {
		if sqlDB, err := a.gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = metrics.Close()
	_ = zap.L().Sync()
}
