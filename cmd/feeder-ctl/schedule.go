package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fishfeeder/feeder-go/pkg/client"
	"github.com/fishfeeder/feeder-go/pkg/schedule"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the feeding schedule.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sched, err := opts.client().Schedule(cmd.Context())
			if err != nil {
				return err
			}
			printSchedule(cmd.OutOrStdout(), sched, all)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include unused slots")
	return cmd
}

func newSetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <slot> <HH:MM> <duration>",
		Short: "Set a feeding slot.",
		Long: "Set a feeding slot. The duration is a Go duration (800ms, 1.5s) " +
			"or a number of milliseconds, rounded to 100ms and at most 25.4s.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			hour, minute, err := client.ParseClock(args[1])
			if err != nil {
				return err
			}
			d, err := client.ParseDuration(args[2])
			if err != nil {
				return err
			}

			sched, err := opts.client().Set(cmd.Context(), slot, hour, minute, d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Slot %d: %s\n", slot, sched[slot])
			return nil
		},
	}
}

func newEraseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "erase <slot>",
		Short: "Clear a feeding slot.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			if _, err := opts.client().Erase(cmd.Context(), slot); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Slot %d erased\n", slot)
			return nil
		},
	}
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <duration>",
		Short: "Dispense food now.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := client.ParseDuration(args[0])
			if err != nil {
				return err
			}
			if err := opts.client().Run(cmd.Context(), d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run requested for %s\n", d)
			return nil
		},
	}
}

func parseSlot(s string) (int, error) {
	slot, err := strconv.Atoi(s)
	if err != nil || slot < 0 || slot >= schedule.Slots {
		return 0, fmt.Errorf("%w: %q (0-%d)", schedule.ErrOutOfRange, s, schedule.Slots-1)
	}
	return slot, nil
}

func printSchedule(w io.Writer, sched schedule.Schedule, all bool) {
	used := 0
	fmt.Fprintln(w, "Slot  Schedule")
	for i, slot := range sched {
		if slot.IsUsed() {
			used++
		} else if !all {
			continue
		}
		fmt.Fprintf(w, "%4d  %s\n", i, slot)
	}
	fmt.Fprintf(w, "%d of %d slots used\n", used, schedule.Slots)
}
