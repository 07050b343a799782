package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"ordersync/internal/catalog"
	"ordersync/internal/channel"
	"ordersync/internal/config"
	"ordersync/internal/decompose"
	"ordersync/internal/logging"
	"ordersync/internal/pipeline"
	"ordersync/internal/resolver"
	"ordersync/internal/store"
)

// app 子命令共享的已装配依赖
type app struct {
	cfg      *config.AppConfig
	log      *zap.Logger
	dataDir  string
	excluded *store.ExcludedStore
	mappings *store.MappingStore
	colors   *store.ColorStore
	bundles  *store.BundleStore
	runLog   *store.RunLog
}

// newApp 加载配置并初始化持久化存储
func newApp(cfgPath string, verbose bool) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", cfgPath, err)
	}
	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}
	log, err := logging.New(verbose, filepath.Join(dataDir, "logs"))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	excluded, err := store.NewExcludedStore(cfg.ExcludedPath(dataDir), log)
	if err != nil {
		return nil, err
	}
	mappings, err := store.NewMappingStore(cfg.MappingsPath(dataDir), log)
	if err != nil {
		return nil, err
	}
	colors, err := store.NewColorStore(cfg.ColorsPath(dataDir), log)
	if err != nil {
		return nil, err
	}
	bundles, err := store.NewBundleStore(cfg.BundlesPath(dataDir), log)
	if err != nil {
		return nil, err
	}
	runLog, err := store.NewRunLog(cfg.RunLogPath(dataDir))
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		dataDir:  dataDir,
		excluded: excluded,
		mappings: mappings,
		colors:   colors,
		bundles:  bundles,
		runLog:   runLog,
	}, nil
}

// close 释放资源
func (a *app) close() {
	if a.runLog != nil {
		_ = a.runLog.Close()
	}
	_ = a.log.Sync()
}

// lockPath 运行锁文件路径
func (a *app) lockPath() string {
	return filepath.Join(a.dataDir, "sync.lock")
}

// newPipeline 装配同步流程（目录从台账工作簿的目录表加载）
func (a *app) newPipeline(ch channel.Channel, autoMode bool) (*pipeline.Pipeline, error) {
	entries, err := catalog.Load(a.cfg.Catalog.Path, a.cfg.Catalog.Sheet, a.log)
	if err != nil {
		return nil, err
	}
	res := resolver.New(entries, a.mappings, a.colors, ch, a.log, resolver.Options{
		DefaultCategory: a.cfg.Resolve.DefaultCategory,
		PromptTimeout:   time.Duration(a.cfg.Resolve.PromptTimeoutSeconds) * time.Second,
		AutoMode:        autoMode || a.cfg.Resolve.AutoMode,
	})
	engine := decompose.NewEngine(a.bundles, ch, a.log,
		a.cfg.Split.MinUnits, a.cfg.Split.MaxUnits,
		a.cfg.Resolve.DefaultCategory,
		time.Duration(a.cfg.Resolve.PromptTimeoutSeconds)*time.Second)
	return pipeline.New(a.cfg, a.excluded, res, engine, ch, a.runLog, a.log), nil
}
