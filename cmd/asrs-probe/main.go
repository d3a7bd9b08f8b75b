package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "asrs-probe",
		Short: "Probe and exercise a SignalR service endpoint",
		Long: `asrs-probe opens server connections to a SignalR service endpoint
and keeps them healthy, exposing what it sees.

  • run   - maintain a connection pool and serve /healthz and /metrics
  • echo  - measure round-trip time with echo pings
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		echoCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
