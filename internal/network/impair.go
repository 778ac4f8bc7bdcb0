package network

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/netimpair/netimpair/internal/types"
)

// unimpairedRate is the effectively-unthrottled tbf rate used while a rate
// impairment is in its disabled phase and when the tbf qdisc is first created.
const unimpairedRate = "1000mbit"

// PhaseRecorder receives each phase transition as the controller applies it.
type PhaseRecorder interface {
	RecordPhase(enabled bool, duration time.Duration)
}

// Controller drives the impairment qdisc through the enabled and disabled
// phases of a toggle schedule. Each phase transition is one blocking tc
// invocation; any failure aborts the run.
type Controller struct {
	runner   *Runner
	recorder PhaseRecorder
	log      logrus.FieldLogger
}

// NewController creates a new impairment controller. recorder may be nil.
func NewController(log logrus.FieldLogger, runner *Runner, recorder PhaseRecorder) *Controller {
	return &Controller{
		runner:   runner,
		recorder: recorder,
		log:      log.WithField("package", "network.controller"),
	}
}

// ApplyNetem creates the netem qdisc under the impaired class and toggles the
// emulation parameters on and off per the schedule. The disabled phase resets
// netem to a neutral parameter set.
func (c *Controller) ApplyNetem(ctx context.Context, binding types.Binding, profile types.EmulationProfile, schedule *types.Schedule) error {
	device := binding.Device()

	if err := c.runner.Run(ctx, MustSucceed, netemCreateArgs(device)...); err != nil {
		return fmt.Errorf("%w: creating netem qdisc on %s: %v", types.ErrApply, device, err)
	}

	return c.toggle(ctx, device, schedule, netemChangeArgs(device, profile), netemResetArgs(device))
}

// ApplyRate creates the tbf qdisc under the impaired class and toggles
// between the profile's rate limit and an effectively-unthrottled rate.
func (c *Controller) ApplyRate(ctx context.Context, binding types.Binding, profile types.RateProfile, schedule *types.Schedule) error {
	device := binding.Device()

	if err := c.runner.Run(ctx, MustSucceed, tbfCreateArgs(device, profile)...); err != nil {
		return fmt.Errorf("%w: creating tbf qdisc on %s: %v", types.ErrApply, device, err)
	}

	return c.toggle(ctx, device, schedule, tbfChangeArgs(device, profile), tbfResetArgs(device, profile))
}

// toggle alternates between the enable and disable commands, holding each
// phase for the next schedule duration. A schedule with an odd number of
// phases ends on an enabled phase without ever disabling.
func (c *Controller) toggle(ctx context.Context, device string, schedule *types.Schedule, enable, disable []string) error {
	for {
		duration, ok := schedule.Next()
		if !ok {
			return nil
		}
		if err := c.applyPhase(ctx, device, true, duration, enable); err != nil {
			return err
		}

		duration, ok = schedule.Next()
		if !ok {
			return nil
		}
		if err := c.applyPhase(ctx, device, false, duration, disable); err != nil {
			return err
		}
	}
}

// applyPhase issues one phase transition and holds it for its duration.
func (c *Controller) applyPhase(ctx context.Context, device string, enabled bool, duration time.Duration, argv []string) error {
	if err := c.runner.Run(ctx, MustSucceed, argv...); err != nil {
		return fmt.Errorf("%w: %v", types.ErrApply, err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	c.log.WithFields(logrus.Fields{
		"device":   device,
		"state":    state,
		"duration": duration,
	}).Info("Impairment phase applied")

	if c.recorder != nil {
		c.recorder.RecordPhase(enabled, duration)
	}

	return c.wait(ctx, duration)
}

// wait blocks for the phase duration unless the run is cancelled first.
func (c *Controller) wait(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", types.ErrInterrupted, ctx.Err())
	}
}

func netemCreateArgs(device string) []string {
	return []string{"tc", "qdisc", "add", "dev", device, "parent", "1:3", "handle", "30:", "netem"}
}

// netemChangeArgs renders the full netem parameter set; every field is
// emitted even when zero.
func netemChangeArgs(device string, p types.EmulationProfile) []string {
	return []string{
		"tc", "qdisc", "change", "dev", device, "parent", "1:3", "handle", "30:", "netem",
		"loss", percent(p.LossPercent), percent(p.LossCorrelation),
		"duplicate", percent(p.DuplicatePercent),
		"delay", millis(p.DelayMillis), millis(p.JitterMillis), percent(p.DelayJitterCorrelation),
		"reorder", percent(p.ReorderPercent), percent(p.ReorderCorrelation),
	}
}

func netemResetArgs(device string) []string {
	return []string{"tc", "qdisc", "change", "dev", device, "parent", "1:3", "handle", "30:", "netem"}
}

func tbfCreateArgs(device string, p types.RateProfile) []string {
	return []string{
		"tc", "qdisc", "add", "dev", device, "parent", "1:3", "handle", "30:", "tbf",
		"rate", unimpairedRate, "buffer", strconv.Itoa(p.BufferBytes), "latency", millis(p.LatencyMillis),
	}
}

func tbfChangeArgs(device string, p types.RateProfile) []string {
	return []string{
		"tc", "qdisc", "change", "dev", device, "parent", "1:3", "handle", "30:", "tbf",
		"rate", strconv.Itoa(p.LimitKbit) + "kbit", "buffer", strconv.Itoa(p.BufferBytes), "latency", millis(p.LatencyMillis),
	}
}

func tbfResetArgs(device string, p types.RateProfile) []string {
	return []string{
		"tc", "qdisc", "change", "dev", device, "parent", "1:3", "handle", "30:", "tbf",
		"rate", unimpairedRate, "buffer", strconv.Itoa(p.BufferBytes), "latency", millis(p.LatencyMillis),
	}
}

func percent(v int) string {
	return strconv.Itoa(v) + "%"
}

func millis(v int) string {
	return strconv.Itoa(v) + "ms"
}
