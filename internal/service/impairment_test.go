package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netimpair/netimpair/internal/config"
	"github.com/netimpair/netimpair/internal/types"
)

// recordingExecutor records every command line and fails the ones failOn
// matches, so a full run can execute without touching kernel state.
type recordingExecutor struct {
	commands []string
	failOn   string
}

func (r *recordingExecutor) CombinedOutput(_ context.Context, name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	r.commands = append(r.commands, line)
	if r.failOn != "" && strings.Contains(line, r.failOn) {
		return []byte("RTNETLINK answers: Operation not permitted\n"), errors.New("exit status 2")
	}
	return nil, nil
}

func newTestService(executor *recordingExecutor) *Service {
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{
		LogLevel:       config.DefaultLogLevel,
		CommandTimeout: time.Second,
		VirtualDevice:  config.DefaultVirtualDevice,
		Exclude:        config.DefaultExcludeSelectors(),
	}
	return NewServiceWithExecutor(cfg, log, executor)
}

func zeroSchedule(t *testing.T, phases int) *types.Schedule {
	t.Helper()

	seconds := make([]int, phases)
	schedule, err := types.NewSchedule(seconds)
	require.NoError(t, err)
	return schedule
}

func TestRunNetemRoundTrip(t *testing.T) {
	t.Parallel()

	executor := &recordingExecutor{}
	svc := newTestService(executor)

	err := svc.Run(context.Background(), Request{
		NIC:       "lo",
		Exclude:   config.DefaultExcludeSelectors(),
		Emulation: &types.EmulationProfile{LossPercent: 5, DelayMillis: 100},
		Schedule:  zeroSchedule(t, 1),
	})
	require.NoError(t, err)

	joined := strings.Join(executor.commands, "\n")
	assert.Contains(t, joined, "tc qdisc add dev lo root handle 1: prio")
	assert.Contains(t, joined, "handle 30: netem loss 5% 0% duplicate 0% delay 100ms 0ms 0% reorder 0% 0%")

	// An empty include list falls back to matching everything.
	assert.Contains(t, joined, "match ip src 0/0")
	assert.Contains(t, joined, "match ip6 src ::/0")

	// Teardown runs last.
	require.NotEmpty(t, executor.commands)
	assert.Equal(t, "tc qdisc del dev lo root", executor.commands[len(executor.commands)-1])
}

func TestRunTearsDownOnceAfterSetupFailure(t *testing.T) {
	t.Parallel()

	executor := &recordingExecutor{failOn: "handle 1: prio"}
	svc := newTestService(executor)

	err := svc.Run(context.Background(), Request{
		NIC:      "lo",
		Rate:     &types.RateProfile{LimitKbit: 512, BufferBytes: 2000, LatencyMillis: 20},
		Schedule: zeroSchedule(t, 1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrProvisioning)

	// Pre-setup cleanup, the failing root qdisc creation, then exactly one
	// teardown. Nothing from the toggle loop runs.
	want := []string{
		"tc qdisc del dev lo root",
		"tc qdisc add dev lo root handle 1: prio",
		"tc qdisc del dev lo root",
	}
	assert.Equal(t, want, executor.commands)
}

func TestRunTearsDownAfterApplyFailure(t *testing.T) {
	t.Parallel()

	executor := &recordingExecutor{failOn: "netem"}
	svc := newTestService(executor)

	err := svc.Run(context.Background(), Request{
		NIC:       "lo",
		Emulation: &types.EmulationProfile{},
		Schedule:  zeroSchedule(t, 1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrApply)

	require.NotEmpty(t, executor.commands)
	assert.Equal(t, "tc qdisc del dev lo root", executor.commands[len(executor.commands)-1])
}

func TestRunTearsDownAfterCancellation(t *testing.T) {
	t.Parallel()

	executor := &recordingExecutor{}
	svc := newTestService(executor)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	schedule, err := types.NewSchedule([]int{1000000})
	require.NoError(t, err)

	err = svc.Run(ctx, Request{
		NIC:       "lo",
		Emulation: &types.EmulationProfile{LossPercent: 1},
		Schedule:  schedule,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInterrupted)

	require.NotEmpty(t, executor.commands)
	assert.Equal(t, "tc qdisc del dev lo root", executor.commands[len(executor.commands)-1])
}

func TestRunRejectsUnknownInterfaceBeforeAnyCommand(t *testing.T) {
	t.Parallel()

	executor := &recordingExecutor{}
	svc := newTestService(executor)

	err := svc.Run(context.Background(), Request{
		NIC:       "definitely-not-a-nic",
		Emulation: &types.EmulationProfile{},
		Schedule:  zeroSchedule(t, 1),
	})
	require.Error(t, err)
	assert.Empty(t, executor.commands, "no command may run against an unvalidated interface")
}

func TestRunRequiresExactlyOneProfile(t *testing.T) {
	t.Parallel()

	executor := &recordingExecutor{}
	svc := newTestService(executor)
	schedule := zeroSchedule(t, 1)

	err := svc.Run(context.Background(), Request{NIC: "lo", Schedule: schedule})
	assert.Error(t, err)

	err = svc.Run(context.Background(), Request{
		NIC:       "lo",
		Emulation: &types.EmulationProfile{},
		Rate:      &types.RateProfile{BufferBytes: 1, LatencyMillis: 1},
		Schedule:  schedule,
	})
	assert.Error(t, err)

	assert.Empty(t, executor.commands)
}
