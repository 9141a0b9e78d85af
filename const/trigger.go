package _const

// TriggerKind 触发器类型，持久化在job_state中
type TriggerKind string

const (
	TriggerDate TriggerKind = "date" // 指定时间执行一次
	TriggerCron TriggerKind = "cron" // 按cron表达式周期执行
)
