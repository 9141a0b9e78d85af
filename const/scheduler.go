package _const

import "time"

const (
	// DefaultLimiter 默认并发执行的dispatch数量
	DefaultLimiter = 10
	// DefaultMaxWait 没有待执行Job时调度循环的最长休眠时间
	DefaultMaxWait = time.Minute
	// DefaultMinWait 存在到期但无法执行的Job时的最短休眠时间，防止空转
	DefaultMinWait = 500 * time.Millisecond
	// DefaultRetryInterval 存储层访问失败后的重试间隔
	DefaultRetryInterval = time.Second
	// DefaultRetryCount 存储层访问失败的最大连续重试次数
	DefaultRetryCount = 5
	// JobStateVersion job_state序列化格式版本
	JobStateVersion = 1
)

// DefaultStoreTimeout 调度循环中单次存储访问的超时时间
const DefaultStoreTimeout = 5 * time.Second
