package bucket

import (
	"context"
	"time"
)

// TimeMeter 补充计算和阻塞等待使用的时钟
type TimeMeter interface {
	// CurrentTimeNanos 当前纳秒读数，只有差值有意义
	CurrentTimeNanos() int64

	// ParkNanos 阻塞指定时长，ctx 先结束时返回 ctx.Err()
	ParkNanos(ctx context.Context, nanos int64) error
}

var (
	// SystemMilliseconds 毫秒精度墙上时钟。
	// 跨进程可比较，共享存储中的 bucket 必须使用。
	SystemMilliseconds TimeMeter = millisecondMeter{}

	// SystemNanotime 纳秒精度单调时钟，仅用于本地 bucket
	SystemNanotime TimeMeter = nanotimeMeter{origin: time.Now()}
)

type millisecondMeter struct{}

func (millisecondMeter) CurrentTimeNanos() int64 {
	return time.Now().UnixMilli() * int64(time.Millisecond)
}

func (millisecondMeter) ParkNanos(ctx context.Context, nanos int64) error {
	return park(ctx, nanos)
}

func (millisecondMeter) String() string { return "SystemMilliseconds" }

type nanotimeMeter struct {
	origin time.Time
}

func (m nanotimeMeter) CurrentTimeNanos() int64 {
	// time.Since 使用单调时钟读数
	return int64(time.Since(m.origin))
}

func (nanotimeMeter) ParkNanos(ctx context.Context, nanos int64) error {
	return park(ctx, nanos)
}

func (nanotimeMeter) String() string { return "SystemNanotime" }

func park(ctx context.Context, nanos int64) error {
	if nanos <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(nanos))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
