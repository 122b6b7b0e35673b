package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"qa-service/internal/util"
)

// Task is a unit of periodic work. Run errors are logged and the task keeps
// its schedule.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each task on its own ticker until the context is cancelled.
type Scheduler struct {
	clock  clockwork.Clock
	logger *zap.Logger
	tasks  []Task
	wg     sync.WaitGroup
}

func New(clk clockwork.Clock, logger *zap.Logger, tasks ...Task) *Scheduler {
	return &Scheduler{clock: clk, logger: logger, tasks: tasks}
}

// Start launches one goroutine per task with a positive interval.
func (s *Scheduler) Start(ctx context.Context) {
	for _, task := range s.tasks {
		if task.Interval <= 0 || task.Run == nil {
			s.logger.Info("scheduled task disabled", util.String("task", task.Name))
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, task)
	}
}

// Wait blocks until every task loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(task.Interval)
	defer ticker.Stop()

	s.logger.Info("scheduled task started",
		util.String("task", task.Name),
		util.Duration("interval", task.Interval),
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.runOnce(ctx, task)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, task Task) {
	start := s.clock.Now()
	if err := task.Run(ctx); err != nil {
		s.logger.Warn("scheduled task failed",
			util.String("task", task.Name),
			util.ErrorField(err),
		)
		return
	}
	s.logger.Debug("scheduled task finished",
		util.String("task", task.Name),
		util.Duration("took", s.clock.Since(start)),
	)
}
