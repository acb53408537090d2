package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// Archiver exports the order ledger and market data snapshots to cold
// storage on a schedule.
type Archiver struct {
	blobArchiver domain.Archiver
	now          func() time.Time
	logger       *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(blobArchiver domain.Archiver, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver: blobArchiver,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive run: every order created before now and the
// current market data snapshot.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.now().UTC()
	a.logger.Info("starting archive run", slog.Time("cutoff", cutoff))

	ordersArchived, err := a.blobArchiver.ArchiveOrders(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving orders before %v: %w", cutoff, err)
	}

	snapshots, err := a.blobArchiver.ArchiveMarketData(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving market data at %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete",
		slog.Int64("orders_archived", ordersArchived),
		slog.Int64("snapshots_archived", snapshots),
	)
	return nil
}

// RunCron runs the archiver on a cron schedule until ctx is cancelled.
// "0 3 * * *" archives daily at 03:00 UTC.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, a.now().UTC())
		if err != nil {
			return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
		}

		waitDuration := time.Until(next)
		a.logger.Info("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronSpec is a parsed 5-field cron expression. Each field is a bitmask of
// the values it accepts.
type cronSpec struct {
	minute, hour, dom, month, dow uint64
	// domStar and dowStar record a literal "*" so that a restricted
	// day-of-month and day-of-week are OR-ed, as in classic cron.
	domStar, dowStar bool
}

var cronBounds = [5]struct{ min, max int }{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // day of week, Sunday = 0
}

// parseCron parses "minute hour day-of-month month day-of-week". Each field
// accepts "*", a value, a range "a-b", a step "*/n" or "a-b/n", and comma
// separated lists of those.
func parseCron(expr string) (cronSpec, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return cronSpec{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	var masks [5]uint64
	for i, f := range fields {
		m, err := parseCronField(f, cronBounds[i].min, cronBounds[i].max)
		if err != nil {
			return cronSpec{}, fmt.Errorf("cron field %d %q: %w", i+1, f, err)
		}
		masks[i] = m
	}
	return cronSpec{
		minute:  masks[0],
		hour:    masks[1],
		dom:     masks[2],
		month:   masks[3],
		dow:     masks[4],
		domStar: fields[2] == "*",
		dowStar: fields[4] == "*",
	}, nil
}

func parseCronField(field string, lo, hi int) (uint64, error) {
	var mask uint64
	for _, part := range strings.Split(field, ",") {
		rng, stepStr, hasStep := strings.Cut(part, "/")
		step := 1
		if hasStep {
			n, err := strconv.Atoi(stepStr)
			if err != nil || n < 1 {
				return 0, fmt.Errorf("bad step %q", stepStr)
			}
			step = n
		}

		from, to := lo, hi
		switch {
		case rng == "*":
		case strings.Contains(rng, "-"):
			a, b, _ := strings.Cut(rng, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return 0, fmt.Errorf("bad range start %q", a)
			}
			if to, err = strconv.Atoi(b); err != nil {
				return 0, fmt.Errorf("bad range end %q", b)
			}
		default:
			v, err := strconv.Atoi(rng)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", rng)
			}
			from = v
			to = v
			if hasStep {
				to = hi
			}
		}
		if from < lo || to > hi || from > to {
			return 0, fmt.Errorf("%d-%d outside %d-%d", from, to, lo, hi)
		}
		for v := from; v <= to; v += step {
			mask |= 1 << uint(v)
		}
	}
	return mask, nil
}

func (c cronSpec) matches(t time.Time) bool {
	has := func(mask uint64, v int) bool { return mask&(1<<uint(v)) != 0 }
	if !has(c.minute, t.Minute()) || !has(c.hour, t.Hour()) || !has(c.month, int(t.Month())) {
		return false
	}
	domOK := has(c.dom, t.Day())
	dowOK := has(c.dow, int(t.Weekday()))
	if c.domStar || c.dowStar {
		return domOK && dowOK
	}
	return domOK || dowOK
}

// nextCronTime returns the first minute strictly after 'after' matching
// cronExpr, looking at most a year ahead.
func nextCronTime(cronExpr string, after time.Time) (time.Time, error) {
	spec, err := parseCron(cronExpr)
	if err != nil {
		return time.Time{}, err
	}

	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)
	for candidate.Before(limit) {
		if spec.matches(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time found within one year for %q", cronExpr)
}
