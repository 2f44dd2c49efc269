// Package testutil 测试公共工具
package testutil

import (
	"sync"
	"time"
)

// StepClock 每次调用 Now 前进固定步长的确定性时钟
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepClock 创建从 start 开始、每次前进 step 的时钟
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{now: start, step: step}
}

// Now 返回当前时间并前进一步
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}
