package chaosmonkey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	_const "github.com/BBVA/chaos-monkey-engine/const"
	"golang.org/x/sync/semaphore"
)

var (
	ErrSchedulerRunning     = errors.New("scheduler already running")
	ErrExecutorFuncNotFound = errors.New("executor func not found")
)

type Scheduler interface {
	// Start 开启调度循环
	Start(ctx context.Context) error
	// Shutdown 停止调度循环，等待执行中的Job结束后关闭存储
	Shutdown(ctx context.Context) error
	// Register 注册执行器方法
	Register(name string, executorFunc ExecutorFunc) error
	AddJob(ctx context.Context, spec JobSpec) (*Job, error)
	RescheduleJob(ctx context.Context, id string, trigger Trigger) (*Job, error)
	RemoveJob(ctx context.Context, id string) error
	GetJob(ctx context.Context, id string) (*Job, error)
	GetJobs(ctx context.Context) ([]*Job, error)
	// Location 调度使用的时区
	Location() *time.Location
}

type Options func(core *SchedulerCore)

func WithRetryStrategy(retry RetryStrategy) Options {
	return func(c *SchedulerCore) {
		c.retry = retry
	}
}

// WithLimiter 设置节点并发执行的Job数量
func WithLimiter(limiter int64) Options {
	return func(c *SchedulerCore) {
		c.limiter = semaphore.NewWeighted(limiter)
	}
}

// WithMaxWait 设置调度循环两次检查之间的最长间隔
func WithMaxWait(d time.Duration) Options {
	return func(c *SchedulerCore) {
		c.maxWait = d
	}
}

func WithMinWait(d time.Duration) Options {
	return func(c *SchedulerCore) {
		c.minWait = d
	}
}

func WithLocation(loc *time.Location) Options {
	return func(c *SchedulerCore) {
		c.location = loc
	}
}

func WithClock(now func() time.Time) Options {
	return func(c *SchedulerCore) {
		c.now = now
	}
}

type SchedulerCore struct {
	logger Logger
	store  JobStore
	mu     sync.RWMutex
	// 本地的执行器注册中心
	execCenter map[string]ExecutorFunc
	// 存储访问失败的重试策略
	retry RetryStrategy
	// 限流
	limiter  *semaphore.Weighted
	maxWait  time.Duration
	minWait  time.Duration
	location *time.Location
	now      func() time.Time
	// 唤醒调度循环，新增/修改Job或者Job执行结束时触发
	wakeup chan struct{}
	// 执行中的Job，同一个Job同时只允许一个实例执行
	runningMu sync.Mutex
	running   map[string]struct{}

	cancel     context.CancelFunc
	done       chan struct{}
	dispatches sync.WaitGroup
}

func NewSchedulerCore(store JobStore, logger Logger, opts ...Options) *SchedulerCore {
	scheduler := &SchedulerCore{
		logger:     logger,
		store:      store,
		execCenter: map[string]ExecutorFunc{},
		maxWait:    _const.DefaultMaxWait,
		minWait:    _const.DefaultMinWait,
		location:   time.UTC,
		now:        time.Now,
		wakeup:     make(chan struct{}, 1),
		running:    map[string]struct{}{},
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	if scheduler.logger == nil {
		scheduler.logger = NewNopLogger()
	}
	if scheduler.limiter == nil {
		scheduler.limiter = semaphore.NewWeighted(_const.DefaultLimiter)
	}
	if scheduler.retry == nil {
		scheduler.retry = NewFixedRetryStrategy(_const.DefaultRetryInterval, _const.DefaultRetryCount)
	}

	return scheduler
}

func (s *SchedulerCore) Register(name string, executorFunc ExecutorFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.execCenter[name]; ok {
		return fmt.Errorf("%w: %s", ErrExecutorFuncRegistered, name)
	}
	s.execCenter[name] = executorFunc
	return nil
}

func (s *SchedulerCore) Location() *time.Location {
	return s.location
}

func (s *SchedulerCore) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrSchedulerRunning
	}

	lctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(lctx, s.done)
	s.logger.Info("scheduler started", Field{Key: "location", Val: s.location.String()})
	return nil
}

func (s *SchedulerCore) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cancel != nil
}

func (s *SchedulerCore) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// 等待执行中的Job结束
	waitCh := make(chan struct{})
	go func() {
		s.dispatches.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("scheduler stopped")
	return s.store.Shutdown(ctx)
}

func (s *SchedulerCore) AddJob(ctx context.Context, spec JobSpec) (*Job, error) {
	if spec.Trigger == nil {
		return nil, fmt.Errorf("%w: missing trigger", ErrInvalidTrigger)
	}
	if _, ok := s.lookup(spec.Func); !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutorFuncNotFound, spec.Func)
	}

	next, ok := spec.Trigger.Next(time.Time{}, s.now())
	if !ok {
		return nil, fmt.Errorf("%w: %s never fires", ErrInvalidTrigger, spec.Trigger)
	}

	job := &Job{
		ID:          NewID(),
		Name:        spec.Name,
		Func:        spec.Func,
		PlanID:      spec.PlanID,
		Args:        spec.Args,
		Trigger:     spec.Trigger,
		NextRunTime: next.UTC(),
	}
	if err := s.store.AddJob(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Debug("job added", String("job", job.ID), String("trigger", job.Trigger.String()))
	s.wake()
	return job, nil
}

func (s *SchedulerCore) RescheduleJob(ctx context.Context, id string, trigger Trigger) (*Job, error) {
	if trigger == nil {
		return nil, fmt.Errorf("%w: missing trigger", ErrInvalidTrigger)
	}

	job, err := s.store.LookupJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	next, ok := trigger.Next(time.Time{}, s.now())
	if !ok {
		return nil, fmt.Errorf("%w: %s never fires", ErrInvalidTrigger, trigger)
	}
	job.Trigger = trigger
	job.NextRunTime = next.UTC()
	if err = s.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Debug("job rescheduled", String("job", job.ID), String("trigger", trigger.String()))
	s.wake()
	return job, nil
}

func (s *SchedulerCore) RemoveJob(ctx context.Context, id string) error {
	if err := s.store.RemoveJob(ctx, id); err != nil {
		return err
	}
	s.wake()
	return nil
}

func (s *SchedulerCore) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.store.LookupJob(ctx, id)
}

func (s *SchedulerCore) GetJobs(ctx context.Context) ([]*Job, error) {
	return s.store.GetAllJobs(ctx)
}

func (s *SchedulerCore) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-s.wakeup:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		timer.Reset(s.processDueJobs(ctx))
	}
}

// processDueJobs 执行所有到期的Job，返回下次检查前的等待时间
func (s *SchedulerCore) processDueJobs(ctx context.Context) time.Duration {
	now := s.now()
	lctx, cancel := context.WithTimeout(ctx, _const.DefaultStoreTimeout)
	jobs, err := s.store.GetDueJobs(lctx, now)
	cancel()
	if err != nil {
		return s.backoff("failed to get due jobs", err)
	}

	saturated := false
	for _, job := range jobs {
		if ctx.Err() != nil {
			return s.maxWait
		}

		if s.isRunning(job.ID) {
			s.logger.Debug("job still running, skip", String("job", job.ID))
			continue
		}

		fn, ok := s.lookup(job.Func)
		if !ok {
			// 没有执行程序
			s.logger.Error("failed to find executor function",
				String("job", job.ID), String("func", job.Func))
		} else {
			if !s.limiter.TryAcquire(1) {
				s.logger.Warn("max concurrent dispatches reached", String("job", job.ID))
				saturated = true
				break
			}

			s.markRunning(job.ID)
			s.dispatches.Add(1)
			dispatched := *job
			go s.dispatch(ctx, fn, &dispatched)
		}

		if err = s.finalize(ctx, job, now); err != nil {
			return s.backoff("failed to finalize job", err)
		}
	}
	s.retry.Reset()

	if saturated {
		// 执行结束后会唤醒调度循环
		return s.maxWait
	}

	lctx, cancel = context.WithTimeout(ctx, _const.DefaultStoreTimeout)
	next, ok, err := s.store.GetNextRunTime(lctx)
	cancel()
	if err != nil {
		return s.backoff("failed to get next run time", err)
	}
	if !ok {
		return s.maxWait
	}
	if len(jobs) == 0 && !next.After(now) {
		// 到期的记录无法恢复，等待新增Job或超时后再检查
		s.logger.Warn("due jobs could not be restored", Field{Key: "next_run_time", Val: next})
		return s.maxWait
	}

	wait := next.Sub(s.now())
	switch {
	case wait <= 0:
		return s.minWait
	case wait > s.maxWait:
		return s.maxWait
	default:
		return wait
	}
}

// finalize 计算Job的下次执行时间，没有下次执行时间的Job从调度中移除
// 已经开始执行的Job不受调度循环退出的影响
func (s *SchedulerCore) finalize(ctx context.Context, job *Job, now time.Time) error {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), _const.DefaultStoreTimeout)
	defer cancel()

	next, ok := job.Trigger.Next(job.NextRunTime, now)
	if ok {
		job.NextRunTime = next.UTC()
		return s.store.UpdateJob(lctx, job)
	}
	return s.store.RemoveJob(lctx, job.ID)
}

func (s *SchedulerCore) dispatch(ctx context.Context, fn ExecutorFunc, job *Job) {
	defer s.dispatches.Done()
	defer s.wake()
	defer s.unmarkRunning(job.ID)
	defer s.limiter.Release(1)

	logger := s.logger.With(String("job", job.ID), String("func", job.Func))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("executor func panicked", Field{Key: "panic", Val: r})
		}
	}()

	logger.Debug("dispatching job", Field{Key: "next_run_time", Val: job.NextRunTime})
	if err := fn(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("failed to execute job", Err(err))
	}
}

func (s *SchedulerCore) backoff(msg string, err error) time.Duration {
	s.logger.Error(msg, Err(err))
	interval, rerr := s.retry.Next()
	if rerr != nil {
		s.logger.Warn("store retry budget exhausted", Err(rerr))
		s.retry.Reset()
		return s.maxWait
	}
	return interval
}

func (s *SchedulerCore) lookup(name string) (ExecutorFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.execCenter[name]
	return fn, ok
}

func (s *SchedulerCore) wake() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

func (s *SchedulerCore) isRunning(id string) bool {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	_, ok := s.running[id]
	return ok
}

func (s *SchedulerCore) markRunning(id string) {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	s.running[id] = struct{}{}
}

func (s *SchedulerCore) unmarkRunning(id string) {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	delete(s.running, id)
}
