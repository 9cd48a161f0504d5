package main

import (
	"context"

	"github.com/spf13/cobra"
)

type snapshotFlags struct {
	path    string
	account string
	lockID  string
}

func (f *snapshotFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "snapshot", "s", "", "chain-state snapshot file (yaml or json)")
	cmd.Flags().StringVarP(&f.account, "account", "a", "", "account to evaluate (defaults to the snapshot's account)")
	cmd.Flags().StringVar(&f.lockID, "lock-id", "", "governance balance lock id (defaults to pyconvot)")
	_ = cmd.MarkFlagRequired("snapshot")
}

func runOffline(cmd *cobra.Command, flags *snapshotFlags, eval func(context.Context, *offline) (any, error)) error {
	logger := newLogger(globalFlags.debug)
	defer func() { _ = logger.Sync() }()

	o, err := openSnapshot(flags.path, flags.account, flags.lockID, logger)
	if err != nil {
		return err
	}
	defer o.Close()

	out, err := eval(cmd.Context(), o)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), globalFlags.output, out)
}

func scheduleCommand() *cobra.Command {
	flags := &snapshotFlags{}
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the claim schedule: what is claimable now and what unlocks later",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOffline(cmd, flags, func(ctx context.Context, o *offline) (any, error) {
				return o.schedule(ctx)
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func affectsCommand() *cobra.Command {
	flags := &snapshotFlags{}
	var withCalls bool
	cmd := &cobra.Command{
		Use:   "affects",
		Short: "Print how claiming the current unlock changes the transferable balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOffline(cmd, flags, func(ctx context.Context, o *offline) (any, error) {
				return o.affects(ctx, withCalls)
			})
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&withCalls, "calls", false, "include the runtime calls that perform the claim")
	return cmd
}
