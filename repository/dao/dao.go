package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	chaosmonkey "github.com/BBVA/chaos-monkey-engine"
	"github.com/BBVA/chaos-monkey-engine/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPlanNotFound = errors.New("plan not found")
	// ErrExecutorNotFound Executor即调度引擎中的Job
	ErrExecutorNotFound = chaosmonkey.ErrJobNotFound
	ErrMissingPlanID    = errors.New("job has no plan id")
)

// Store Plan和Executor的持久化，同时实现调度引擎的JobStore
// Executor不会被物理删除，调度引擎移除Job时只标记为已执行
type Store struct {
	db     *gorm.DB
	logger chaosmonkey.Logger
}

var _ chaosmonkey.JobStore = (*Store)(nil)

func NewStore(db *gorm.DB, logger chaosmonkey.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate 创建表结构
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Plan{}, &Executor{})
}

func (s *Store) LookupJob(ctx context.Context, id string) (*chaosmonkey.Job, error) {
	var executor Executor
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&executor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", chaosmonkey.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if len(executor.JobState) == 0 {
		return nil, nil
	}
	return chaosmonkey.DecodeJob(executor.JobState)
}

func (s *Store) GetDueJobs(ctx context.Context, now time.Time) ([]*chaosmonkey.Job, error) {
	return s.getJobs(ctx, "next_run_time <= ?", now.UTC())
}

func (s *Store) GetNextRunTime(ctx context.Context) (time.Time, bool, error) {
	var executors []Executor
	err := s.db.WithContext(ctx).
		Where("executed = ?", false).
		Order("next_run_time").
		Limit(1).
		Find(&executors).Error
	if err != nil {
		return time.Time{}, false, err
	}
	if len(executors) == 0 {
		return time.Time{}, false, nil
	}
	return executors[0].NextRunTime, true, nil
}

func (s *Store) GetAllJobs(ctx context.Context) ([]*chaosmonkey.Job, error) {
	return s.getJobs(ctx)
}

func (s *Store) AddJob(ctx context.Context, job *chaosmonkey.Job) error {
	if job.PlanID == "" {
		return fmt.Errorf("%w: %s", ErrMissingPlanID, job.ID)
	}

	state, err := chaosmonkey.EncodeJob(job)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockPlan(tx, job.PlanID); err != nil {
			return err
		}
		err := tx.Create(&Executor{
			ID:          job.ID,
			NextRunTime: job.NextRunTime.UTC(),
			JobState:    state,
			PlanID:      job.PlanID,
			Executed:    false,
		}).Error
		if err != nil {
			return err
		}
		return s.checkPlanExecuted(tx, job.PlanID)
	})
}

func (s *Store) UpdateJob(ctx context.Context, job *chaosmonkey.Job) error {
	state, err := chaosmonkey.EncodeJob(job)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&Executor{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"next_run_time": job.NextRunTime.UTC(),
			"job_state":     state,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", chaosmonkey.ErrJobNotFound, job.ID)
	}
	return nil
}

// RemoveJob 标记为已执行而不是删除，保留执行记录
func (s *Store) RemoveJob(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var executor Executor
		err := tx.Where("id = ?", id).First(&executor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", chaosmonkey.ErrJobNotFound, id)
		}
		if err != nil {
			return err
		}

		err = tx.Model(&Executor{}).Where("id = ?", id).Update("executed", true).Error
		if err != nil {
			return err
		}
		return s.checkPlanExecuted(tx, executor.PlanID)
	})
}

// HardRemoveJob 物理删除Executor，用于彻底移除或修复损坏的数据
func (s *Store) HardRemoveJob(ctx context.Context, id string) error {
	s.logger.Debug("hard remove job", chaosmonkey.String("job", id))
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var executor Executor
		err := tx.Where("id = ?", id).First(&executor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", chaosmonkey.ErrJobNotFound, id)
		}
		if err != nil {
			return err
		}

		if err = tx.Where("id = ?", id).Delete(&Executor{}).Error; err != nil {
			return err
		}
		return s.checkPlanExecuted(tx, executor.PlanID)
	})
}

func (s *Store) RemoveAllJobs(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&Executor{}).Error
}

func (s *Store) Shutdown(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// getJobs 只返回未执行的Job，反序列化失败的记录跳过且保留
func (s *Store) getJobs(ctx context.Context, conds ...interface{}) ([]*chaosmonkey.Job, error) {
	query := s.db.WithContext(ctx).Where("executed = ?", false)
	if len(conds) > 0 {
		query = query.Where(conds[0], conds[1:]...)
	}

	var executors []Executor
	if err := query.Order("next_run_time").Find(&executors).Error; err != nil {
		return nil, err
	}

	jobs := make([]*chaosmonkey.Job, 0, len(executors))
	for _, executor := range executors {
		job, err := chaosmonkey.DecodeJob(executor.JobState)
		if err != nil {
			s.logger.Error("unable to restore job, skip",
				chaosmonkey.String("job", executor.ID), chaosmonkey.Err(err))
			metrics.SkippedJobs.Inc()
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// checkPlanExecuted 重新计算Plan的执行状态，需要和Executor的修改在同一个事务中
// 先锁定Plan记录，保证并发完成同一Plan的Executor时状态正确
func (s *Store) checkPlanExecuted(tx *gorm.DB, planID string) error {
	plan, err := lockPlan(tx, planID)
	if err != nil {
		return err
	}

	var pending int64
	err = tx.Model(&Executor{}).
		Where("plan_id = ? AND executed = ?", planID, false).
		Count(&pending).Error
	if err != nil {
		return err
	}

	executed := pending == 0
	s.logger.Debug("check plan executed",
		chaosmonkey.String("plan", planID),
		chaosmonkey.Field{Key: "pending", Val: pending})
	if plan.Executed == executed {
		return nil
	}
	return tx.Model(&Plan{}).Where("id = ?", planID).Update("executed", executed).Error
}

func lockPlan(tx *gorm.DB, planID string) (Plan, error) {
	var plan Plan
	err := forUpdate(tx).Where("id = ?", planID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	return plan, err
}

// forUpdate sqlite不支持行锁，依赖单连接串行化事务
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
