package chaosmonkey

import (
	"errors"
	"time"
)

var ErrOverMaxCount = errors.New("over max count")

// RetryStrategy 存储层访问失败时的重试策略
type RetryStrategy interface {
	// Next 返回下一次重试前的等待时间，超过最大次数返回ErrOverMaxCount
	Next() (time.Duration, error)
	// Reset 访问成功后重置计数
	Reset()
}

type FixedRetryStrategy struct {
	// 固定时间间隔
	interval time.Duration
	// 最大连续重试次数
	maxCount int
	// 当前已经重试的次数
	counter int
}

func NewFixedRetryStrategy(interval time.Duration, maxCount int) *FixedRetryStrategy {
	return &FixedRetryStrategy{
		interval: interval,
		maxCount: maxCount,
	}
}

func (s *FixedRetryStrategy) Next() (time.Duration, error) {
	if s.counter >= s.maxCount {
		return 0, ErrOverMaxCount
	}
	s.counter++
	return s.interval, nil
}

func (s *FixedRetryStrategy) Reset() {
	s.counter = 0
}
