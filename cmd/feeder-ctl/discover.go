package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/fishfeeder/feeder-go/pkg/discovery"
	"github.com/fishfeeder/feeder-go/pkg/version"
)

func newDiscoverCmd() *cobra.Command {
	var (
		wait      time.Duration
		group     string
		iface     string
		useBeacon bool
		useMDNS   bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find feeders on the local network.",
		Long: "Listen for UDP presence beacons and browse mDNS for feeders. " +
			"Each device is listed once per discovery method.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !useBeacon && !useMDNS {
				return fmt.Errorf("nothing to do: enable --beacon or --mdns")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()

			var sources []<-chan discovery.Found
			if useBeacon {
				ch, err := discovery.ListenBeacons(ctx, group)
				if err != nil {
					return fmt.Errorf("listen for beacons: %w", err)
				}
				sources = append(sources, ch)
			}
			if useMDNS {
				ch, err := discovery.NewMDNSBrowser(discovery.BrowserConfig{Interface: iface}).Browse(ctx)
				if err != nil {
					return fmt.Errorf("browse mdns: %w", err)
				}
				sources = append(sources, ch)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Searching for %s...\n", wait)
			n := printFound(cmd.OutOrStdout(), merge(sources...))
			fmt.Fprintf(cmd.OutOrStdout(), "%d found\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVarP(&wait, "wait", "w", 3*time.Second, "How long to listen")
	cmd.Flags().StringVar(&group, "group", discovery.DefaultBeaconGroup, "Beacon multicast group")
	cmd.Flags().StringVar(&iface, "interface", "", "Network interface for mDNS (default all)")
	cmd.Flags().BoolVar(&useBeacon, "beacon", true, "Listen for UDP beacons")
	cmd.Flags().BoolVar(&useMDNS, "mdns", true, "Browse mDNS")
	return cmd
}

// merge fans in several channels. The result closes when all inputs close.
func merge(sources ...<-chan discovery.Found) <-chan discovery.Found {
	out := make(chan discovery.Found)
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range src {
				out <- f
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func printFound(w io.Writer, found <-chan discovery.Found) int {
	n := 0
	for f := range found {
		n++
		name := f.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "  %-6s %-20s %s:%d", f.Via, name, f.Host, f.Port)
		if len(f.Addresses) > 0 {
			fmt.Fprintf(w, "  [%s]", strings.Join(f.Addresses, ", "))
		}
		if f.Version != "" {
			fmt.Fprintf(w, "  v%s", f.Version)
		}
		if ok, err := version.CompatibleWith(f.Protocol); err != nil || !ok {
			fmt.Fprintf(w, "  (protocol %s unsupported)", f.Protocol)
		}
		fmt.Fprintln(w)
	}
	return n
}
