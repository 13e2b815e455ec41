package main

import (
	"os"

	"github.com/ddr4869/agrichain/common/logger"
	"github.com/ddr4869/agrichain/node/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		logger.Errorf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
