package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

// PollOrderArgs schedules an active status query for a pending order.
type PollOrderArgs struct {
	TradeNo   string    `json:"trade_no"`
	CreatedAt time.Time `json:"created_at"`
}

func (PollOrderArgs) Kind() string { return "poll_order" }

// OrderPoller defines the contract the worker needs to settle an order.
// settled is true once the order no longer needs polling.
type OrderPoller interface {
	PollOrder(ctx context.Context, tradeNo string) (settled bool, err error)
}

// PollOrderWorker queries the gateway for a pending order until it is paid
// or the polling window has passed.
type PollOrderWorker struct {
	river.WorkerDefaults[PollOrderArgs]
	poller   OrderPoller
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func NewPollOrderWorker(poller OrderPoller, interval, window time.Duration, log *slog.Logger) *PollOrderWorker {
	if log == nil {
		log = slog.Default()
	}
	return &PollOrderWorker{poller: poller, interval: interval, window: window, now: time.Now, log: log}
}

func (w *PollOrderWorker) Work(ctx context.Context, job *river.Job[PollOrderArgs]) error {
	args := job.Args
	settled, err := w.poller.PollOrder(ctx, args.TradeNo)
	if err != nil {
		return fmt.Errorf("poll order %s: %w", args.TradeNo, err)
	}
	if settled {
		return nil
	}
	if w.now().Sub(args.CreatedAt) >= w.window {
		w.log.Info("order still pending after poll window", "trade_no", args.TradeNo)
		return nil
	}
	return river.JobSnooze(w.interval)
}
