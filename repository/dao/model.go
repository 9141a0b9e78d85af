package dao

import (
	"time"

	"github.com/BBVA/chaos-monkey-engine/domain"
)

type Plan struct {
	// ID 128位随机ID的十六进制表示
	ID string `gorm:"column:id;type:varchar(80);primaryKey" json:"id"`
	// Name Plan名称，不要求唯一
	Name string `gorm:"column:name;type:varchar(200);not null" json:"name"`
	// Created 创建时间，创建后不再修改
	Created time.Time `gorm:"column:created;not null" json:"created"`
	// Executed 所有Executor执行完毕后为true
	Executed bool `gorm:"column:executed;not null;index" json:"executed"`
	// Executors 删除Plan时级联删除
	Executors []Executor `gorm:"foreignKey:PlanID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Plan) TableName() string {
	return "cme_plans"
}

func (p Plan) toDomain() domain.Plan {
	return domain.Plan{
		ID:       p.ID,
		Name:     p.Name,
		Created:  p.Created,
		Executed: p.Executed,
	}
}

type Executor struct {
	// ID 由调度引擎生成
	ID string `gorm:"column:id;type:varchar(80);primaryKey" json:"id"`
	// NextRunTime 下次等待调度的时间
	NextRunTime time.Time `gorm:"column:next_run_time;not null;index" json:"next_run_time"`
	// JobState 调度引擎序列化后的Job，存储层不解析
	JobState []byte `gorm:"column:job_state;not null" json:"-"`
	// PlanID 所属的Plan
	PlanID string `gorm:"column:plan_id;type:varchar(80);not null;index" json:"plan_id"`
	// Executed 已执行或已取消
	Executed bool `gorm:"column:executed;not null;index" json:"executed"`
}

func (Executor) TableName() string {
	return "cme_executors"
}

func (e Executor) toDomain() domain.Executor {
	return domain.Executor{
		ID:          e.ID,
		NextRunTime: e.NextRunTime,
		PlanID:      e.PlanID,
		Executed:    e.Executed,
	}
}
