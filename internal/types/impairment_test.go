package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestEmulationProfileValidate(t *testing.T) {
	t.Parallel()

	tests := getEmulationProfileTestCases()

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.profile.Validate()

			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error for profile %+v, but got none", tt.profile)
				}
				if !errors.Is(err, ErrInvalidProfile) {
					t.Errorf("expected ErrInvalidProfile, got: %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error for profile %+v: %v", tt.profile, err)
			}
		})
	}
}

func getEmulationProfileTestCases() []struct {
	name        string
	profile     EmulationProfile
	expectError bool
} {
	return []struct {
		name        string
		profile     EmulationProfile
		expectError bool
	}{
		{"zero profile", EmulationProfile{}, false},
		{"full profile", EmulationProfile{
			LossPercent:            5,
			LossCorrelation:        25,
			DuplicatePercent:       1,
			DelayMillis:            100,
			JitterMillis:           10,
			DelayJitterCorrelation: 30,
			ReorderPercent:         2,
			ReorderCorrelation:     50,
		}, false},
		{"boundary percentages", EmulationProfile{LossPercent: 100, ReorderCorrelation: 100}, false},
		{"loss over 100", EmulationProfile{LossPercent: 101}, true},
		{"negative loss", EmulationProfile{LossPercent: -1}, true},
		{"correlation over 100", EmulationProfile{DelayJitterCorrelation: 150}, true},
		{"negative delay", EmulationProfile{DelayMillis: -10}, true},
		{"negative jitter", EmulationProfile{JitterMillis: -1}, true},
	}
}

func TestRateProfileValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		profile     RateProfile
		expectError bool
	}{
		{"typical profile", RateProfile{LimitKbit: 500, BufferBytes: 2000, LatencyMillis: 20}, false},
		{"defaults", RateProfile{BufferBytes: DefaultRateBufferBytes, LatencyMillis: DefaultRateLatencyMillis}, false},
		{"negative limit", RateProfile{LimitKbit: -1, BufferBytes: 2000, LatencyMillis: 20}, true},
		{"zero buffer", RateProfile{LimitKbit: 500, BufferBytes: 0, LatencyMillis: 20}, true},
		{"zero latency", RateProfile{LimitKbit: 500, BufferBytes: 2000, LatencyMillis: 0}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.profile.Validate()

			if tt.expectError {
				if !errors.Is(err, ErrInvalidProfile) {
					t.Errorf("expected ErrInvalidProfile for %+v, got: %v", tt.profile, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error for %+v: %v", tt.profile, err)
			}
		})
	}
}

func TestBindingDevice(t *testing.T) {
	t.Parallel()

	outbound := NewBinding("eth0", false, "ifb1")
	if got := outbound.Device(); got != "eth0" {
		t.Errorf("outbound binding should target the real NIC, got %s", got)
	}

	inbound := NewBinding("eth0", true, "ifb1")
	if got := inbound.Device(); got != "ifb1" {
		t.Errorf("inbound binding should target the virtual device, got %s", got)
	}
	if inbound.NIC != "eth0" {
		t.Errorf("inbound binding must keep the real NIC for teardown, got %s", inbound.NIC)
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no error", nil, 0},
		{"apply failure", ErrApply, 5},
		{"wrapped apply failure", fmt.Errorf("netem: %w", ErrApply), 5},
		{"interrupted", fmt.Errorf("%w: context canceled", ErrInterrupted), 5},
		{"provisioning failure", fmt.Errorf("%w: tc exited 2", ErrProvisioning), 1},
		{"root required", ErrRootRequired, 1},
		{"plain error", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
