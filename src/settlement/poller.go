package settlement

import (
	"context"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"hlexecutor/src/model"
)

// BalanceReader produces one balance observation. Implementations degrade
// read failures to an Unknown reading instead of returning an error; the
// poll loop never aborts on a single bad read.
type BalanceReader func(ctx context.Context) model.BalanceReading

// Poller is a bounded retry loop with a fixed interval. Sleep is injectable
// so tests run against a scripted reading sequence with no wall-clock delay.
type Poller struct {
	Attempts int
	Interval time.Duration
	Sleep    func(ctx context.Context, d time.Duration) error
}

// Run reads until done reports success or the attempt budget is spent.
// It returns the last reading, the number of reads performed, and
// ErrConfirmationTimeout when the budget runs out first.
func (p Poller) Run(ctx context.Context, read BalanceReader, done func(model.BalanceReading) bool) (model.BalanceReading, int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var last model.BalanceReading
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		last = read(ctx)
		if !last.Known {
			logger.WithField("attempt", attempt).Warn("Balance read failed, continuing poll")
		}
		if done(last) {
			return last, attempt, nil
		}
		if attempt < p.Attempts {
			if err := sleep(ctx, p.Interval); err != nil {
				return last, attempt, fmt.Errorf("%w: %v", model.ErrConfirmationTimeout, err)
			}
		}
	}
	return last, p.Attempts, fmt.Errorf("%w: no confirmation after %d attempts", model.ErrConfirmationTimeout, p.Attempts)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
