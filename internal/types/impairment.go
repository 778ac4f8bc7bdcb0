package types

import "fmt"

// Default token bucket parameters for rate impairment
const (
	// DefaultRateBufferBytes is the default token bucket size in bytes
	DefaultRateBufferBytes = 2000
	// DefaultRateLatencyMillis is the default maximum queue time in milliseconds
	DefaultRateLatencyMillis = 20
)

// EmulationProfile holds the netem parameters for one impairment run.
// All percentages and correlation factors are whole percents; delay and
// jitter are milliseconds. The zero value is a neutral, no-impairment profile.
type EmulationProfile struct {
	// LossPercent is the percentage of packets to drop
	LossPercent int
	// LossCorrelation is the correlation factor for random packet loss
	LossCorrelation int
	// DuplicatePercent is the percentage of packets to duplicate
	DuplicatePercent int
	// DelayMillis is the fixed delay added to each packet
	DelayMillis int
	// JitterMillis is the random variation added on top of the delay
	JitterMillis int
	// DelayJitterCorrelation is the correlation factor for the random jitter
	DelayJitterCorrelation int
	// ReorderPercent is the percentage of packets to reorder
	ReorderPercent int
	// ReorderCorrelation is the correlation factor for random reordering
	ReorderCorrelation int
}

// Validate checks that all emulation parameters are inside netem's accepted ranges.
func (p EmulationProfile) Validate() error {
	percentages := map[string]int{
		"loss_ratio":        p.LossPercent,
		"loss_corr":         p.LossCorrelation,
		"dup_ratio":         p.DuplicatePercent,
		"delay_jitter_corr": p.DelayJitterCorrelation,
		"reorder_ratio":     p.ReorderPercent,
		"reorder_corr":      p.ReorderCorrelation,
	}
	for name, value := range percentages {
		if value < 0 || value > 100 {
			return fmt.Errorf("%w: %s must be between 0 and 100, got %d", ErrInvalidProfile, name, value)
		}
	}

	if p.DelayMillis < 0 {
		return fmt.Errorf("%w: delay cannot be negative, got %d", ErrInvalidProfile, p.DelayMillis)
	}
	if p.JitterMillis < 0 {
		return fmt.Errorf("%w: jitter cannot be negative, got %d", ErrInvalidProfile, p.JitterMillis)
	}

	return nil
}

// RateProfile holds the token bucket parameters for one rate-limit run.
type RateProfile struct {
	// LimitKbit is the throttled rate in kbit/s
	LimitKbit int
	// BufferBytes is the token bucket size in bytes
	BufferBytes int
	// LatencyMillis is the maximum time packets may wait in the bucket queue
	LatencyMillis int
}

// Validate checks that all rate parameters are inside tbf's accepted ranges.
func (p RateProfile) Validate() error {
	if p.LimitKbit < 0 {
		return fmt.Errorf("%w: limit cannot be negative, got %d", ErrInvalidProfile, p.LimitKbit)
	}
	if p.BufferBytes <= 0 {
		return fmt.Errorf("%w: buffer must be positive, got %d", ErrInvalidProfile, p.BufferBytes)
	}
	if p.LatencyMillis <= 0 {
		return fmt.Errorf("%w: latency must be positive, got %d", ErrInvalidProfile, p.LatencyMillis)
	}

	return nil
}

// Binding resolves which devices an impairment run acts on. For outbound
// impairment all commands target the real NIC; for inbound impairment the
// real NIC's ingress traffic is redirected to the virtual device and the
// impairment itself targets the virtual device. Teardown needs both names.
type Binding struct {
	// NIC is the real network interface named on the command line
	NIC string
	// VirtualDevice is the IFB device used for inbound impairment
	VirtualDevice string
	// Inbound selects ingress redirection through the virtual device
	Inbound bool
}

// NewBinding builds the device binding for one run.
func NewBinding(nic string, inbound bool, virtualDevice string) Binding {
	return Binding{
		NIC:           nic,
		VirtualDevice: virtualDevice,
		Inbound:       inbound,
	}
}

// Device returns the device impairment commands act on: the virtual device
// when inbound, otherwise the real NIC.
func (b Binding) Device() string {
	if b.Inbound {
		return b.VirtualDevice
	}
	return b.NIC
}
