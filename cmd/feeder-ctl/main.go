// Command feeder-ctl controls a fish feeder over its TCP protocol.
//
// Usage:
//
//	feeder-ctl [--addr host[:port]] <command> [args]
//
// Examples:
//
//	# Find feeders on the LAN
//	feeder-ctl discover
//
//	# Show the schedule
//	feeder-ctl --addr 192.168.1.40 list
//
//	# Feed at 08:30 for 800ms using slot 0
//	feeder-ctl --addr 192.168.1.40 set 0 08:30 800ms
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fishfeeder/feeder-go/pkg/client"
)

type globalOptions struct {
	addr    string
	timeout time.Duration
}

func (o *globalOptions) client() *client.Client {
	return client.New(o.addr, client.WithTimeout(o.timeout))
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "feeder-ctl",
		Short: "Control a fish feeder over the network.",
		Long: `feeder-ctl reads and edits the feeding schedule of a fish feeder, ` +
			`starts manual runs, and discovers feeders on the local network.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.addr, "addr", "a", "localhost", "Feeder address (host or host:port)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "Request timeout")

	root.AddCommand(
		newListCmd(opts),
		newSetCmd(opts),
		newEraseCmd(opts),
		newRunCmd(opts),
		newDiscoverCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
