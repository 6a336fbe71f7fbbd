package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/logging"
)

// Stop asks pid to exit and waits up to timeout (the configured stop
// timeout when zero). A process that is already gone is a success.
func (c *Controller) Stop(ctx context.Context, pid int, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.cfg.StopTimeout
	}
	return c.stop(ctx, "lifecycle.Stop", pid, timeout, false)
}

// ForceStop kills pid and waits up to timeout (the configured force timeout
// when zero).
func (c *Controller) ForceStop(ctx context.Context, pid int, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.cfg.ForceTimeout
	}
	return c.stop(ctx, "lifecycle.ForceStop", pid, timeout, true)
}

// StopWithRetry escalates to ForceStop once when the graceful stop times out.
func (c *Controller) StopWithRetry(ctx context.Context, pid int, timeout time.Duration) error {
	err := c.Stop(ctx, pid, timeout)
	if !apperr.Is(err, apperr.KindStopTimedOut) {
		return err
	}
	logging.Warnf("[lifecycle] pid=%d ignored graceful stop, killing", pid)
	return c.ForceStop(ctx, pid, c.cfg.ForceTimeout)
}

func (c *Controller) stop(ctx context.Context, op apperr.Op, pid int, timeout time.Duration, force bool) error {
	if !c.reg.Alive(pid) {
		return nil
	}
	c.tracker.setPID(EventStopping, pid, StateStopping, nil)

	table := c.reg.Table()
	signal := table.Terminate
	if force {
		signal = table.Kill
	}
	if err := signal(pid); err != nil {
		err = apperr.E(op, fmt.Sprintf("signal pid %d", pid), err)
		c.tracker.setPID(EventStopFailed, pid, StateRunning, err)
		return err
	}

	alive, err := c.waitGone(ctx, []int{pid}, timeout)
	if err != nil {
		c.tracker.setPID(EventStopFailed, pid, StateRunning, err)
		return err
	}
	if len(alive) > 0 {
		err := apperr.StopTimedOut(op, alive)
		c.tracker.setPID(EventStopFailed, pid, StateRunning, err)
		return err
	}
	c.tracker.setPID(EventStopped, pid, StateStopped, nil)
	logging.Infof("[lifecycle] stopped pid=%d", pid)
	return nil
}

// CloseMany stops every process running on any of dirs ("" is the default
// directory) with one scan. All are signalled, then waited on together;
// survivors are killed and waited on for the force timeout.
func (c *Controller) CloseMany(ctx context.Context, dirs []string, timeout time.Duration) error {
	const op apperr.Op = "lifecycle.CloseMany"
	if timeout <= 0 {
		timeout = c.cfg.StopTimeout
	}

	pids, err := c.reg.ResolveAll(ctx, dirs)
	if err != nil {
		return apperr.E(op, err)
	}
	if len(pids) == 0 {
		return nil
	}

	table := c.reg.Table()
	for _, pid := range pids {
		c.tracker.setPID(EventStopping, pid, StateStopping, nil)
		if err := table.Terminate(pid); err != nil {
			logging.Warnf("[lifecycle] terminate pid=%d: %v", pid, err)
		}
	}

	alive, err := c.waitGone(ctx, pids, timeout)
	if err != nil {
		return err
	}
	if len(alive) > 0 {
		logging.Warnf("[lifecycle] %d process(es) ignored graceful stop, killing: %v", len(alive), alive)
		for _, pid := range alive {
			if err := table.Kill(pid); err != nil {
				logging.Warnf("[lifecycle] kill pid=%d: %v", pid, err)
			}
		}
		if alive, err = c.waitGone(ctx, alive, c.cfg.ForceTimeout); err != nil {
			return err
		}
	}

	stuck := make(map[int]bool, len(alive))
	for _, pid := range alive {
		stuck[pid] = true
	}
	for _, pid := range pids {
		if !stuck[pid] {
			c.tracker.setPID(EventStopped, pid, StateStopped, nil)
		}
	}
	if len(alive) > 0 {
		err := apperr.StopTimedOut(op, alive)
		for _, pid := range alive {
			c.tracker.setPID(EventStopFailed, pid, StateRunning, err)
		}
		return err
	}
	return nil
}

// waitGone polls until every pid has exited or timeout passes, returning the
// pids still alive.
func (c *Controller) waitGone(ctx context.Context, pids []int, timeout time.Duration) ([]int, error) {
	deadline := time.Now().Add(timeout)
	for {
		var alive []int
		for _, pid := range pids {
			if c.reg.Alive(pid) {
				alive = append(alive, pid)
			}
		}
		if len(alive) == 0 {
			return nil, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return alive, nil
		}

		timer := time.NewTimer(min(c.poll, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return alive, ctx.Err()
		case <-timer.C:
		}
		pids = alive
	}
}
