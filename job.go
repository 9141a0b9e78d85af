package chaosmonkey

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_const "github.com/BBVA/chaos-monkey-engine/const"
	jsoniter "github.com/json-iterator/go"
)

var (
	ErrJobNotFound            = errors.New("job not found")
	ErrUnsupportedJobState    = errors.New("unsupported job state version")
	ErrExecutorFuncRegistered = errors.New("executor func already registered")
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Job 调度引擎中的任务
type Job struct {
	// ID Job的唯一标识，由调度引擎生成
	ID string
	// Name Job的名称
	Name string
	// Func 到期后执行的ExecutorFunc名称
	Func string
	// PlanID 所属的Plan
	PlanID string
	// Args 调用参数，调度引擎不解析其内容
	Args json.RawMessage
	// Trigger 触发器
	Trigger Trigger
	// NextRunTime 下次等待调度的时间
	NextRunTime time.Time
}

// JobSpec 新增Job时的描述信息
type JobSpec struct {
	Name    string
	Func    string
	PlanID  string
	Args    json.RawMessage
	Trigger Trigger
}

type jobState struct {
	Version     int             `json:"version"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Func        string          `json:"func"`
	PlanID      string          `json:"plan_id"`
	Args        json.RawMessage `json:"args,omitempty"`
	Trigger     triggerState    `json:"trigger"`
	NextRunTime time.Time       `json:"next_run_time"`
}

// EncodeJob 序列化Job，结果作为job_state持久化
func EncodeJob(job *Job) ([]byte, error) {
	if job.Trigger == nil {
		return nil, fmt.Errorf("%w: job %s has no trigger", ErrInvalidTrigger, job.ID)
	}

	return codec.Marshal(jobState{
		Version:     _const.JobStateVersion,
		ID:          job.ID,
		Name:        job.Name,
		Func:        job.Func,
		PlanID:      job.PlanID,
		Args:        job.Args,
		Trigger:     job.Trigger.state(),
		NextRunTime: job.NextRunTime,
	})
}

// DecodeJob 反序列化job_state
func DecodeJob(data []byte) (*Job, error) {
	var st jobState
	if err := codec.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode job state: %w", err)
	}
	if st.Version != _const.JobStateVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedJobState, st.Version)
	}

	trigger, err := st.Trigger.trigger()
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          st.ID,
		Name:        st.Name,
		Func:        st.Func,
		PlanID:      st.PlanID,
		Args:        st.Args,
		Trigger:     trigger,
		NextRunTime: st.NextRunTime,
	}, nil
}
