// Command ddsdemo publishes and subscribes HelloWorld messages and measures
// round trips between two endpoints of one process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
)

var log = logging.Logger("ddsdemo")

var rootCmd = &cobra.Command{
	Use:   "ddsdemo",
	Short: "HelloWorld over DDS",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if opts.debug {
			logging.SetAllLoggers(logging.LevelDebug)
		} else {
			logging.SetAllLoggers(logging.LevelInfo)
		}
	},
	SilenceUsage: true,
}

var opts nodeParams

func init() {
	rootCmd.PersistentFlags().Uint32VarP(&opts.DomainID, "domain", "d", 0, "domain id")
	rootCmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "domain configuration file (yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.MetricsAddr, "metrics", "", "serve reader and writer statistics on this address")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(pubCmd, subCmd, pingCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
