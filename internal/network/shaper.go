package network

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/netimpair/netimpair/internal/types"
)

// Shaper provisions and removes the qdisc and filter scaffolding that scopes
// impairment on a device: the optional ingress redirect to the virtual
// device, the prio root qdisc, and the include/exclude filter chain.
type Shaper struct {
	runner *Runner
	log    logrus.FieldLogger
}

// NewShaper creates a new traffic control shaper.
func NewShaper(log logrus.FieldLogger, runner *Runner) *Shaper {
	return &Shaper{
		runner: runner,
		log:    log.WithField("package", "network.shaper"),
	}
}

// Setup establishes the impairment scaffolding for the binding. Every
// required step failure aborts setup with a provisioning error; only the
// removal of configuration left over from previous runs is best-effort.
// Traffic matched by include selectors is steered to the impaired class
// (1:3), traffic matched by exclude selectors to the bypass class (1:2)
// at higher filter precedence, so exclusions always win.
func (s *Shaper) Setup(ctx context.Context, binding types.Binding, include, exclude []string) error {
	device := binding.Device()

	s.log.WithFields(logrus.Fields{
		"nic":     binding.NIC,
		"device":  device,
		"inbound": binding.Inbound,
	}).Info("Provisioning traffic control scaffolding")

	if binding.Inbound {
		if err := s.setupIngressRedirect(ctx, binding); err != nil {
			return err
		}
	}

	// Delete network impairments from any previous runs
	_ = s.runner.Run(ctx, BestEffort, "tc", "qdisc", "del", "dev", device, "root")

	// Create prio qdisc so some traffic can be redirected to be unimpaired
	if err := s.runner.Run(ctx, MustSucceed, "tc", "qdisc", "add", "dev", device, "root", "handle", "1:", "prio"); err != nil {
		return fmt.Errorf("%w: creating root qdisc on %s: %v", types.ErrProvisioning, device, err)
	}

	s.log.WithField("selectors", include).Info("Including the following for network impairment")
	includeV4, includeV6 := TranslateSelectors(s.log, include)
	if err := s.attachFilters(ctx, device, includeV4, includeV6, includeFilterClass); err != nil {
		return err
	}

	s.log.WithField("selectors", exclude).Info("Excluding the following from network impairment")
	excludeV4, excludeV6 := TranslateSelectors(s.log, exclude)
	if err := s.attachFilters(ctx, device, excludeV4, excludeV6, excludeFilterClass); err != nil {
		return err
	}

	return nil
}

// Teardown reverses Setup on a best-effort basis. It is safe to call when
// setup partially failed or never ran, and safe to call repeatedly; commands
// acting on already-absent state are ignored. Callers pass a context that is
// not subject to run cancellation so cleanup still happens on abort.
func (s *Shaper) Teardown(ctx context.Context, binding types.Binding) {
	if binding.Inbound {
		_ = s.runner.Run(ctx, BestEffort, "tc", "filter", "del", "dev", binding.NIC, "parent", "ffff:", "protocol", "ip", "prio", "1")
		_ = s.runner.Run(ctx, BestEffort, "tc", "qdisc", "del", "dev", binding.NIC, "ingress")
		_ = s.runner.Run(ctx, BestEffort, "ip", "link", "set", "dev", binding.VirtualDevice, "down")
	}

	_ = s.runner.Run(ctx, BestEffort, "tc", "qdisc", "del", "dev", binding.Device(), "root")

	s.log.WithField("device", binding.Device()).Info("Network impairment teardown complete")
}

// setupIngressRedirect loads the IFB facility and redirects all ingress
// traffic on the real NIC to the virtual device, where the egress-style
// impairment is applied.
func (s *Shaper) setupIngressRedirect(ctx context.Context, binding types.Binding) error {
	steps := [][]string{
		{"modprobe", "ifb"},
		{"ip", "link", "set", "dev", binding.VirtualDevice, "up"},
	}
	if err := s.runner.RunAll(ctx, MustSucceed, steps); err != nil {
		return fmt.Errorf("%w: preparing virtual device %s: %v", types.ErrProvisioning, binding.VirtualDevice, err)
	}

	// Delete any stale ingress binding before trying to add a fresh one
	_ = s.runner.Run(ctx, BestEffort, "tc", "qdisc", "del", "dev", binding.NIC, "ingress")

	redirect := [][]string{
		{"tc", "qdisc", "replace", "dev", binding.NIC, "ingress"},
		{
			"tc", "filter", "replace", "dev", binding.NIC, "parent", "ffff:",
			"protocol", "ip", "prio", "1", "u32", "match", "u32", "0", "0",
			"flowid", "1:1", "action", "mirred", "egress", "redirect", "dev", binding.VirtualDevice,
		},
	}
	if err := s.runner.RunAll(ctx, MustSucceed, redirect); err != nil {
		return fmt.Errorf("%w: redirecting ingress on %s: %v", types.ErrProvisioning, binding.NIC, err)
	}

	return nil
}

// filterClass fixes the priorities and target class for one filter group.
// Exclude filters carry lower priority numbers than include filters so the
// kernel evaluates them first.
type filterClass struct {
	prioV4 string
	prioV6 string
	flowid string
}

var (
	includeFilterClass = filterClass{prioV4: "3", prioV6: "4", flowid: "1:3"}
	excludeFilterClass = filterClass{prioV4: "1", prioV6: "2", flowid: "1:2"}
)

// attachFilters adds one u32 filter per match fragment, steering matched
// traffic to the class's flowid.
func (s *Shaper) attachFilters(ctx context.Context, device string, v4, v6 []string, class filterClass) error {
	for _, fragment := range v4 {
		argv := filterArgs(device, "ip", class.prioV4, fragment, class.flowid)
		if err := s.runner.Run(ctx, MustSucceed, argv...); err != nil {
			return fmt.Errorf("%w: attaching filter on %s: %v", types.ErrProvisioning, device, err)
		}
	}

	for _, fragment := range v6 {
		argv := filterArgs(device, "ipv6", class.prioV6, fragment, class.flowid)
		if err := s.runner.Run(ctx, MustSucceed, argv...); err != nil {
			return fmt.Errorf("%w: attaching filter on %s: %v", types.ErrProvisioning, device, err)
		}
	}

	return nil
}

// filterArgs assembles the tc filter command for one match fragment.
func filterArgs(device, protocol, prio, fragment, flowid string) []string {
	argv := []string{"tc", "filter", "add", "dev", device, "protocol", protocol, "parent", "1:0", "prio", prio, "u32"}
	argv = append(argv, strings.Fields(fragment)...)
	return append(argv, "flowid", flowid)
}
