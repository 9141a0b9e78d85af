package main

import (
	"context"
	"fmt"
	"os"
	"time"

	chaosmonkey "github.com/BBVA/chaos-monkey-engine"
	"github.com/BBVA/chaos-monkey-engine/attacks"
	"github.com/BBVA/chaos-monkey-engine/config"
	"github.com/BBVA/chaos-monkey-engine/manager"
	"github.com/BBVA/chaos-monkey-engine/planners"
	"github.com/BBVA/chaos-monkey-engine/plugin"
	"github.com/BBVA/chaos-monkey-engine/repository/dao"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "chaosmonkey",
	Short:        "Chaos Monkey Engine - 按计划执行破坏性测试",
	Long:         `Chaos Monkey Engine 根据planner生成的计划在指定时间执行attack，计划和执行记录保存在数据库中。`,
	SilenceUsage: true,
}

// 入口函数
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(
		&configPath,
		"config", "c",
		os.Getenv("CHAOSMONKEY_CONFIG"),
		"path to the YAML config file (defaults to CHAOSMONKEY_CONFIG)",
	)

	rootCmd.AddCommand(serveCmd, plansCmd, executorsCmd, attacksCmd, plannersCmd)
}

// app 进程内组装好的各个组件
type app struct {
	cfg       *config.Config
	logger    chaosmonkey.Logger
	zap       *zap.Logger
	store     *dao.Store
	scheduler *chaosmonkey.SchedulerCore
	manager   *manager.Manager
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		cfg := config.DefaultConfig()
		return cfg, cfg.Validate()
	}
	return config.LoadFromFile(configPath)
}

func newZap(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

// openDB 打开数据库连接
var openDB = dao.Open

// newApp 打开数据库、加载插件并创建调度引擎和Manager
// 任意一步失败都会关闭已经打开的数据库连接
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	zl, err := newZap(cfg.Log)
	if err != nil {
		return nil, err
	}
	logger := chaosmonkey.NewZapLogger(zl)

	db, err := openDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	store := dao.NewStore(db, logger.With(chaosmonkey.String("component", "store")))
	a, err := assemble(ctx, cfg, loc, logger, store)
	if err != nil {
		if cerr := store.Shutdown(ctx); cerr != nil {
			logger.Warn("failed to close database", chaosmonkey.Err(cerr))
		}
		_ = zl.Sync()
		return nil, err
	}
	a.zap = zl
	return a, nil
}

func assemble(ctx context.Context, cfg *config.Config, loc *time.Location,
	logger chaosmonkey.Logger, store *dao.Store) (*app, error) {
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	catalog := plugin.NewCatalog(append(planners.Units(), attacks.Units()...)...)
	plannerRegistry := plugin.NewPlannerRegistry(catalog, logger)
	if err := plannerRegistry.Load(cfg.Plugins.PlannersDir); err != nil {
		return nil, err
	}
	attackRegistry := plugin.NewAttackRegistry(catalog, logger)
	if err := attackRegistry.Load(cfg.Plugins.AttacksDir); err != nil {
		return nil, err
	}

	scheduler := chaosmonkey.NewSchedulerCore(store, logger.With(chaosmonkey.String("component", "scheduler")),
		chaosmonkey.WithLocation(loc),
		chaosmonkey.WithLimiter(cfg.Scheduler.MaxConcurrent),
		chaosmonkey.WithMaxWait(cfg.Scheduler.MaxWait),
		chaosmonkey.WithRetryStrategy(chaosmonkey.NewFixedRetryStrategy(
			cfg.Scheduler.RetryInterval, cfg.Scheduler.RetryCount)),
	)

	m, err := manager.NewManager(scheduler, store, plannerRegistry, attackRegistry,
		logger.With(chaosmonkey.String("component", "manager")))
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		scheduler: scheduler,
		manager:   m,
	}, nil
}

// close 关闭调度引擎，同时关闭数据库连接
func (a *app) close(ctx context.Context) error {
	defer func() { _ = a.zap.Sync() }()
	return a.scheduler.Shutdown(ctx)
}

// withApp 子命令的通用包装
func withApp(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		runErr := run(ctx, a, args)
		if err = a.close(context.WithoutCancel(ctx)); err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	}
}
