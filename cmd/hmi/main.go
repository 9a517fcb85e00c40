// cmd/hmi/main.go
//
// HMI runtime – command-line entry point.
//
// Commands
// --------
//
//	hmi serve     – run the view transport (see serve.go)
//	hmi types     – initialize extensions and list announced value types
//	hmi version   – build information
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
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
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hmi",
		Short: "Operator-panel runtime with a popup bridge",
		Long: `hmi serves an operator scene over HTTP and websockets.

Native code raises popups through the popup bridge; every connected
view client renders them and may answer questions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		typesCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hmi %s (%s)\n", version, commit)
		},
	}
}
