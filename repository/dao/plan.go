package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	chaosmonkey "github.com/BBVA/chaos-monkey-engine"
	"github.com/BBVA/chaos-monkey-engine/domain"
	"gorm.io/gorm"
)

func (s *Store) AddPlan(ctx context.Context, name string) (domain.Plan, error) {
	plan := Plan{
		ID:      chaosmonkey.NewID(),
		Name:    name,
		Created: time.Now().UTC(),
	}
	s.logger.Debug("create plan", chaosmonkey.String("plan", plan.ID), chaosmonkey.String("name", name))
	if err := s.db.WithContext(ctx).Create(&plan).Error; err != nil {
		return domain.Plan{}, err
	}
	return plan.toDomain(), nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (domain.Plan, error) {
	var res domain.Plan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan Plan
		err := tx.Where("id = ?", id).First(&plan).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrPlanNotFound, id)
		}
		if err != nil {
			return err
		}

		plans, err := s.summarize(tx, []Plan{plan})
		if err != nil {
			return err
		}
		res = plans[0]
		return nil
	})
	return res, err
}

// GetPlans 返回Plan以及Executor数量和最早的待执行时间，showAll为false时只返回未执行完的Plan
func (s *Store) GetPlans(ctx context.Context, showAll bool) ([]domain.Plan, error) {
	var res []domain.Plan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Order("created")
		if !showAll {
			query = query.Where("executed = ?", false)
		}

		var plans []Plan
		if err := query.Find(&plans).Error; err != nil {
			return err
		}

		var err error
		res, err = s.summarize(tx, plans)
		return err
	})
	return res, err
}

// DeletePlan 删除Plan以及所有的Executor
func (s *Store) DeletePlan(ctx context.Context, id string) error {
	s.logger.Debug("delete plan", chaosmonkey.String("plan", id))
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("plan_id = ?", id).Delete(&Executor{})
		if res.Error != nil {
			return res.Error
		}

		res = tx.Where("id = ?", id).Delete(&Plan{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrPlanNotFound, id)
		}
		return nil
	})
}

func (s *Store) GetExecutor(ctx context.Context, id string) (domain.Executor, error) {
	var executor Executor
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&executor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Executor{}, fmt.Errorf("%w: %s", ErrExecutorNotFound, id)
	}
	if err != nil {
		return domain.Executor{}, err
	}
	return executor.toDomain(), nil
}

func (s *Store) GetExecutors(ctx context.Context, executed bool) ([]domain.Executor, error) {
	var executors []Executor
	err := s.db.WithContext(ctx).
		Where("executed = ?", executed).
		Order("next_run_time").
		Find(&executors).Error
	if err != nil {
		return nil, err
	}
	return toDomainExecutors(executors), nil
}

func (s *Store) GetExecutorsForPlan(ctx context.Context, planID string) ([]domain.Executor, error) {
	var executors []Executor
	err := s.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("next_run_time").
		Find(&executors).Error
	if err != nil {
		return nil, err
	}
	return toDomainExecutors(executors), nil
}

type executorCount struct {
	PlanID string
	Total  int
}

// summarize 统计每个Plan的Executor数量和最早的待执行时间
// 时间字段不在SQL中聚合，避免不同方言对聚合结果类型的差异
func (s *Store) summarize(tx *gorm.DB, plans []Plan) ([]domain.Plan, error) {
	res := make([]domain.Plan, 0, len(plans))
	if len(plans) == 0 {
		return res, nil
	}

	ids := make([]string, 0, len(plans))
	for _, plan := range plans {
		ids = append(ids, plan.ID)
	}

	var counts []executorCount
	err := tx.Model(&Executor{}).
		Select("plan_id, COUNT(*) AS total").
		Where("plan_id IN ?", ids).
		Group("plan_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int, len(counts))
	for _, c := range counts {
		totals[c.PlanID] = c.Total
	}

	var pending []Executor
	err = tx.Select("plan_id", "next_run_time").
		Where("plan_id IN ? AND executed = ?", ids, false).
		Order("next_run_time").
		Find(&pending).Error
	if err != nil {
		return nil, err
	}
	next := make(map[string]time.Time, len(pending))
	for _, executor := range pending {
		if _, ok := next[executor.PlanID]; !ok {
			next[executor.PlanID] = executor.NextRunTime
		}
	}

	for _, plan := range plans {
		p := plan.toDomain()
		p.ExecutorsCount = totals[plan.ID]
		if t, ok := next[plan.ID]; ok {
			p.NextExecution = &t
		}
		res = append(res, p)
	}
	return res, nil
}

func toDomainExecutors(executors []Executor) []domain.Executor {
	res := make([]domain.Executor, 0, len(executors))
	for _, executor := range executors {
		res = append(res, executor.toDomain())
	}
	return res
}
