package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pickban",
		Short: "Map pick/ban coordination server",
		Long: `pickban runs best-of-N map pick/ban sessions. Two team representatives
take turns banning and picking maps while observers follow along live.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringSlice("env-file", nil, "dotenv files to load (default .env)")

	serve := newServeCmd()
	root.AddCommand(serve, newFormatsCmd())

	// Running the binary bare starts the server.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}
