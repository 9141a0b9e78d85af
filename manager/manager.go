package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	chaosmonkey "github.com/BBVA/chaos-monkey-engine"
	"github.com/BBVA/chaos-monkey-engine/domain"
	"github.com/BBVA/chaos-monkey-engine/metrics"
	"github.com/BBVA/chaos-monkey-engine/plugin"
	"github.com/BBVA/chaos-monkey-engine/repository"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DispatchTarget 执行attack的ExecutorFunc名称
const DispatchTarget = "attack"

var (
	ErrPlugin     = errors.New("invalid plugin")
	ErrValidation = errors.New("invalid payload")
)

// RequestError 对外暴露的请求错误，Kind为ErrPlugin或ErrValidation
type RequestError struct {
	Kind error
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Manager 连接调度引擎、存储和插件注册中心
// 本身不持有任何状态
type Manager struct {
	scheduler chaosmonkey.Scheduler
	repo      repository.PlanRepository
	planners  *plugin.Registry[plugin.PlannerFactory]
	attacks   *plugin.Registry[plugin.AttackFactory]
	logger    chaosmonkey.Logger
}

var _ plugin.PlanScheduler = (*Manager)(nil)

// NewManager 创建Manager并在调度引擎上注册attack的执行方法
func NewManager(
	scheduler chaosmonkey.Scheduler,
	repo repository.PlanRepository,
	planners *plugin.Registry[plugin.PlannerFactory],
	attacks *plugin.Registry[plugin.AttackFactory],
	logger chaosmonkey.Logger) (*Manager, error) {
	m := &Manager{
		scheduler: scheduler,
		repo:      repo,
		planners:  planners,
		attacks:   attacks,
		logger:    logger,
	}

	if err := scheduler.Register(DispatchTarget, m.dispatch); err != nil {
		return nil, err
	}
	logger.Debug("manager configured")
	return m, nil
}

func (m *Manager) Location() *time.Location {
	return m.scheduler.Location()
}

// ExecutePlan 校验planner和attack的完整配置后交给planner创建Executor
// 校验失败时不会创建任何Plan
func (m *Manager) ExecutePlan(ctx context.Context, name string,
	plannerConfig, attackConfig domain.PluginConfig) error {
	plannerType, err := m.planners.Get(plannerConfig.Ref)
	if err != nil {
		return &RequestError{Kind: ErrPlugin, Err: err}
	}
	attackType, err := m.attacks.Get(attackConfig.Ref)
	if err != nil {
		return &RequestError{Kind: ErrPlugin, Err: err}
	}

	plannerDoc, err := plannerConfig.Document()
	if err != nil {
		return &RequestError{Kind: ErrValidation, Err: err}
	}
	if err = plannerType.Validate(plannerConfig.Ref, plannerDoc); err != nil {
		return &RequestError{Kind: ErrValidation, Err: err}
	}
	attackDoc, err := attackConfig.Document()
	if err != nil {
		return &RequestError{Kind: ErrValidation, Err: err}
	}
	if err = attackType.Validate(attackConfig.Ref, attackDoc); err != nil {
		return &RequestError{Kind: ErrValidation, Err: err}
	}

	m.logger.Info("execute plan",
		chaosmonkey.String("name", name),
		chaosmonkey.String("planner", plannerConfig.Ref),
		chaosmonkey.String("attack", attackConfig.Ref))
	planner := plannerType.New(name, m)
	return planner.Plan(ctx, plannerConfig, attackConfig)
}

func (m *Manager) AddPlan(ctx context.Context, name string) (domain.Plan, error) {
	plan, err := m.repo.AddPlan(ctx, name)
	if err != nil {
		return domain.Plan{}, err
	}
	metrics.PlansCreated.Inc()
	return plan, nil
}

func (m *Manager) GetPlan(ctx context.Context, id string) (domain.Plan, error) {
	return m.repo.GetPlan(ctx, id)
}

func (m *Manager) GetPlans(ctx context.Context, showAll bool) ([]domain.Plan, error) {
	return m.repo.GetPlans(ctx, showAll)
}

// DeletePlan 删除Plan以及所有的Executor
func (m *Manager) DeletePlan(ctx context.Context, id string) error {
	return m.repo.DeletePlan(ctx, id)
}

func (m *Manager) GetExecutor(ctx context.Context, id string) (domain.Executor, error) {
	return m.repo.GetExecutor(ctx, id)
}

func (m *Manager) GetExecutors(ctx context.Context, executed bool) ([]domain.Executor, error) {
	return m.repo.GetExecutors(ctx, executed)
}

func (m *Manager) GetExecutorsForPlan(ctx context.Context, planID string) ([]domain.Executor, error) {
	return m.repo.GetExecutorsForPlan(ctx, planID)
}

// AddExecutor 在date执行一次attack，Executor由调度引擎通过存储持久化
func (m *Manager) AddExecutor(ctx context.Context, date time.Time, name string,
	attackConfig domain.PluginConfig, planID string) (domain.Executor, error) {
	args, err := json.Marshal(attackConfig)
	if err != nil {
		return domain.Executor{}, fmt.Errorf("encode attack config: %w", err)
	}

	m.logger.Debug("add scheduled job",
		chaosmonkey.String("name", name),
		chaosmonkey.Field{Key: "date", Val: date})
	job, err := m.scheduler.AddJob(ctx, chaosmonkey.JobSpec{
		Name:    name,
		Func:    DispatchTarget,
		PlanID:  planID,
		Args:    args,
		Trigger: chaosmonkey.NewDateTrigger(date),
	})
	if err != nil {
		return domain.Executor{}, err
	}
	return jobToExecutor(job), nil
}

// UpdateExecutorTrigger 修改Executor的触发时间，不存在时返回ErrJobNotFound
func (m *Manager) UpdateExecutorTrigger(ctx context.Context, id string,
	trigger chaosmonkey.Trigger) (domain.Executor, error) {
	job, err := m.scheduler.RescheduleJob(ctx, id, trigger)
	if err != nil {
		return domain.Executor{}, err
	}
	return jobToExecutor(job), nil
}

// RemoveExecutor 从调度引擎移除后再物理删除记录
func (m *Manager) RemoveExecutor(ctx context.Context, id string) error {
	if err := m.scheduler.RemoveJob(ctx, id); err != nil {
		return err
	}
	return m.repo.HardRemoveJob(ctx, id)
}

func (m *Manager) AttackList() []plugin.Descriptor {
	return m.attacks.Descriptors()
}

func (m *Manager) PlannerList() []plugin.Descriptor {
	return m.planners.Descriptors()
}

// dispatch Job到期后执行attack
// attack执行失败只记录日志，Job依然视为已执行
func (m *Manager) dispatch(ctx context.Context, job *chaosmonkey.Job) error {
	logger := m.logger.With(chaosmonkey.String("plan", job.PlanID), chaosmonkey.String("executor", job.ID))

	var attackConfig domain.PluginConfig
	if err := json.Unmarshal(job.Args, &attackConfig); err != nil {
		metrics.Dispatches.WithLabelValues("", metrics.OutcomeUnresolved).Inc()
		return fmt.Errorf("decode attack config: %w", err)
	}

	attackType, err := m.attacks.Get(attackConfig.Ref)
	if err != nil {
		logger.Error("attack ref not loaded in the registry", chaosmonkey.String("ref", attackConfig.Ref))
		metrics.Dispatches.WithLabelValues(attackConfig.Ref, metrics.OutcomeUnresolved).Inc()
		return &RequestError{Kind: ErrPlugin, Err: err}
	}

	start := time.Now()
	outcome := metrics.OutcomeSuccess
	defer func() {
		metrics.DispatchDuration.WithLabelValues(attackConfig.Ref).Observe(time.Since(start).Seconds())
		metrics.Dispatches.WithLabelValues(attackConfig.Ref, outcome).Inc()
	}()

	attack, err := attackType.New(attackConfig.Args)
	if err != nil {
		outcome = metrics.OutcomeFailure
		logger.Error("failed to create attack", chaosmonkey.String("ref", attackConfig.Ref), chaosmonkey.Err(err))
		return nil
	}

	logger.Info("running attack", chaosmonkey.String("ref", attackConfig.Ref))
	if err = runAttack(ctx, attack); err != nil {
		outcome = metrics.OutcomeFailure
		logger.Error("attack failed", chaosmonkey.String("ref", attackConfig.Ref), chaosmonkey.Err(err))
	}
	return nil
}

func runAttack(ctx context.Context, attack plugin.Attack) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("attack panicked: %v", r)
		}
	}()
	return attack.Run(ctx)
}

func jobToExecutor(job *chaosmonkey.Job) domain.Executor {
	return domain.Executor{
		ID:          job.ID,
		NextRunTime: job.NextRunTime,
		PlanID:      job.PlanID,
	}
}
