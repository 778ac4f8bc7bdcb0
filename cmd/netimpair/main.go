package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/netimpair/netimpair/internal/cmd"
	"github.com/netimpair/netimpair/internal/types"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logrus.WithError(err).Error("netimpair failed")
		os.Exit(types.ExitCode(err))
	}
}
