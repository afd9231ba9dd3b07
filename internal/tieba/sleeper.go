package tieba

import (
	"context"
	"math/rand"
	"time"
)

// Sleeper 抽象所有退避与节奏延时，让测试可以模拟时间流逝。
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// RealSleeper 用真实时钟延时，可被 context 取消。
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Jitter 返回 [min, max) 区间内的随机时长，用于模拟人工操作节奏。
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
