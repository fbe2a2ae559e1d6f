package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/mintbalance/internal/syncclient"
)

func newSyncCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Exchange the ledger with the sync service",
	}
	cmd.AddCommand(newSyncPushCommand(a), newSyncPullCommand(a))
	return cmd
}

func (a *app) syncClient() (*syncclient.Client, error) {
	c, err := syncclient.New(a.cfg.Sync.URL, a.cfg.Sync.Token, nil)
	if err != nil {
		return nil, fmt.Errorf("sync.url and sync.token (or MINTBALANCE_SYNC_URL and MINTBALANCE_SYNC_TOKEN): %w", err)
	}
	return c, nil
}

func newSyncPushCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload the whole ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.syncClient()
			if err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			l, err := st.Snapshot(ctx)
			if err != nil {
				return err
			}
			if err := client.Push(ctx, syncclient.PayloadFrom(l)); err != nil {
				return err
			}

			okColor.Fprintf(cmd.OutOrStdout(), "Pushed %d transaction(s) and %d subscription(s)\n",
				len(l.Transactions), len(l.Subscriptions))
			return nil
		},
	}
}

func newSyncPullCommand(a *app) *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Merge the server's ledger into the local one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sinceTime time.Time
			if since != "" {
				var err error
				if sinceTime, err = time.Parse(time.RFC3339, since); err != nil {
					return fmt.Errorf("--since must be RFC 3339: %w", err)
				}
			}

			client, err := a.syncClient()
			if err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			pulled, err := client.Pull(ctx, sinceTime)
			if err != nil {
				return err
			}
			local, err := st.Snapshot(ctx)
			if err != nil {
				return err
			}
			if err := st.ReplaceAll(ctx, syncclient.Merge(local, pulled)); err != nil {
				return err
			}

			okColor.Fprintf(cmd.OutOrStdout(), "Pulled %d transaction(s) and %d subscription(s)\n",
				len(pulled.Transactions), len(pulled.Subscriptions))
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "only records changed after this RFC 3339 time")
	return cmd
}
