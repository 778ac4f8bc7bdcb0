package cmd

import (
	"github.com/spf13/cobra"

	"github.com/netimpair/netimpair/internal/types"
)

var rateFlags struct { //nolint:gochecknoglobals
	limit   int
	buffer  int
	latency int
	toggle  []int
}

var rateCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "rate",
	Short: "Throttle the interface with a token bucket rate limit",
	Long: `Apply a tbf rate limit to the selected interface. During the off phases of
the --toggle schedule the bucket is widened to an effectively unlimited rate.`,
	RunE: runRate,
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(rateCmd)

	f := rateCmd.Flags()
	f.IntVar(&rateFlags.limit, "limit", 0, "rate limit in kbit/s")
	f.IntVar(&rateFlags.buffer, "buffer", types.DefaultRateBufferBytes, "token bucket size in bytes")
	f.IntVar(&rateFlags.latency, "latency", types.DefaultRateLatencyMillis, "maximum queue time in milliseconds")
	f.IntSliceVar(&rateFlags.toggle, "toggle", []int{1000000}, "impairment durations in seconds, alternating on and off starting with on")
}

func runRate(cmd *cobra.Command, _ []string) error {
	profile := types.RateProfile{
		LimitKbit:     rateFlags.limit,
		BufferBytes:   rateFlags.buffer,
		LatencyMillis: rateFlags.latency,
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	return runImpairment(cmd, nil, &profile, rateFlags.toggle)
}
