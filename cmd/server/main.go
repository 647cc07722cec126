package main

import (
	"os"

	"github.com/GriffinCanCode/Orbit/backend/internal/cli"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	info := cli.VersionInfo{Version: version, Commit: commit, Date: date}
	if err := cli.Execute(info); err != nil {
		os.Exit(1)
	}
}
