// Package scheduler drives periodic refreshes. Two modes are supported:
// a fixed-interval loop that fires immediately and then on every interval,
// and a fixed-time-of-day loop whose next activation is computed from a
// cron schedule (so "02:00" requested at 03:00 means tomorrow at 02:00).
// Stopping a runner prevents future invocations without interrupting one
// already in flight.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job 是调度器驱动的刷新动作，错误处理由 Job 内部完成。
type Job func(context.Context)

// Runner 按策略反复触发 Job。触发之间只存在一个定时器等待，
// 不存在并发触发同一 Job 的可能。
type Runner struct {
	job       Job
	next      func(time.Time) time.Time
	immediate bool
	logger    *logrus.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewIntervalRunner 构建固定间隔模式：启动后立即执行一次，此后每隔
// interval 执行一次。间隔从上一次执行结束起算，长期漂移是可接受的。
func NewIntervalRunner(job Job, interval time.Duration, logger *logrus.Logger) (*Runner, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	return newRunner(job, logger, true, func(now time.Time) time.Time {
		return now.Add(interval)
	}), nil
}

// NewDailyRunner 构建每日定点模式：在本地时间 hour:minute 执行，
// 若今天该时刻已过则顺延到明天。
func NewDailyRunner(job Job, hour, minute int, logger *logrus.Logger) (*Runner, error) {
	schedule, err := DailySchedule(hour, minute)
	if err != nil {
		return nil, err
	}
	return newRunner(job, logger, false, schedule.Next), nil
}

// DailySchedule 将 hour:minute 转换为 cron 调度，Next 自动处理“已过今天”
// 以及夏令时切换等壁钟语义。
func DailySchedule(hour, minute int) (cronlib.Schedule, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid wall-clock time %02d:%02d", hour, minute)
	}
	return cronlib.ParseStandard(fmt.Sprintf("%d %d * * *", minute, hour))
}

func newRunner(job Job, logger *logrus.Logger, immediate bool, next func(time.Time) time.Time) *Runner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{
		job:       job,
		next:      next,
		immediate: immediate,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start 在独立 goroutine 中进入调度循环，ctx 取消等价于 Stop。
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx)
}

// Stop 阻止后续触发。在途的 Job 不会被打断，完成后循环退出。
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}

// Done 在调度循环完全退出后关闭，供优雅停机等待。
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	if r.immediate {
		if r.stopped(ctx) {
			return
		}
		r.invoke(ctx)
	}

	for {
		now := time.Now()
		delay := r.next(now).Sub(now)
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)

		select {
		case <-timer.C:
			r.invoke(ctx)
		case <-r.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (r *Runner) stopped(ctx context.Context) bool {
	select {
	case <-r.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (r *Runner) invoke(ctx context.Context) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.WithFields(logrus.Fields{
				"action": "scheduled_refresh",
				"error":  fmt.Sprintf("panic: %v", recovered),
			}).Error("refresh_panic")
		}
	}()
	r.job(ctx)
}
