package cmd

import (
	"github.com/spf13/cobra"

	"github.com/netimpair/netimpair/internal/types"
)

// netemFlags collects the emulation parameters. All percentages and
// correlation factors are whole percents; delay and jitter are milliseconds.
var netemFlags struct { //nolint:gochecknoglobals
	lossRatio       int
	lossCorr        int
	dupRatio        int
	delay           int
	jitter          int
	delayJitterCorr int
	reorderRatio    int
	reorderCorr     int
	toggle          []int
}

var netemCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "netem",
	Short: "Emulate packet loss, delay, jitter, duplication, and reordering",
	Long: `Apply netem-based impairment to the selected interface. The impairment is
toggled on and off following the --toggle schedule and removed on exit.`,
	RunE: runNetem,
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(netemCmd)

	f := netemCmd.Flags()
	f.IntVar(&netemFlags.lossRatio, "loss_ratio", 0, "percentage of packets to drop")
	f.IntVar(&netemFlags.lossCorr, "loss_corr", 0, "correlation factor for random packet loss")
	f.IntVar(&netemFlags.dupRatio, "dup_ratio", 0, "percentage of packets to duplicate")
	f.IntVar(&netemFlags.delay, "delay", 0, "fixed delay per packet in milliseconds")
	f.IntVar(&netemFlags.jitter, "jitter", 0, "random delay variation in milliseconds")
	f.IntVar(&netemFlags.delayJitterCorr, "delay_jitter_corr", 0, "correlation factor for the random jitter")
	f.IntVar(&netemFlags.reorderRatio, "reorder_ratio", 0, "percentage of packets to reorder")
	f.IntVar(&netemFlags.reorderCorr, "reorder_corr", 0, "correlation factor for random reordering")
	f.IntSliceVar(&netemFlags.toggle, "toggle", []int{1000000}, "impairment durations in seconds, alternating on and off starting with on")
}

func runNetem(cmd *cobra.Command, _ []string) error {
	profile := types.EmulationProfile{
		LossPercent:            netemFlags.lossRatio,
		LossCorrelation:        netemFlags.lossCorr,
		DuplicatePercent:       netemFlags.dupRatio,
		DelayMillis:            netemFlags.delay,
		JitterMillis:           netemFlags.jitter,
		DelayJitterCorrelation: netemFlags.delayJitterCorr,
		ReorderPercent:         netemFlags.reorderRatio,
		ReorderCorrelation:     netemFlags.reorderCorr,
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	return runImpairment(cmd, &profile, nil, netemFlags.toggle)
}
