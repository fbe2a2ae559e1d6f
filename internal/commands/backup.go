package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/mintbalance/internal/backup"
)

func newBackupCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the ledger to Cloud Storage and restore it",
	}
	cmd.AddCommand(newBackupCreateCommand(a), newBackupListCommand(a), newBackupRestoreCommand(a))
	return cmd
}

// backupService opens the object store for the configured bucket. It fails
// before touching Cloud Storage when no bucket is set.
func (a *app) backupService(cmd *cobra.Command) (*backup.Service, func(), error) {
	if a.cfg.Backup.Bucket == "" {
		return nil, nil, backup.ErrNoBucket
	}
	objects, closeFn, err := a.objectStore(cmd.Context())
	if err != nil {
		return nil, nil, fmt.Errorf("opening object store: %w", err)
	}
	return backup.NewService(objects, a.cfg.Backup.Bucket, a.cfg.Backup.Prefix), closeFn, nil
}

func newBackupCreateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Upload a snapshot of the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeObjects, err := a.backupService(cmd)
			if err != nil {
				return err
			}
			defer closeObjects()

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
			uri, err := svc.Backup(ctx, l)
			if err != nil {
				return err
			}

			a.log.Info().Str("uri", uri).Int("transactions", len(l.Transactions)).Msg("Backup uploaded")
			okColor.Fprintf(cmd.OutOrStdout(), "Backed up %d transaction(s) and %d subscription(s) to %s\n",
				len(l.Transactions), len(l.Subscriptions), uri)
			return nil
		},
	}
}

func newBackupListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeObjects, err := a.backupService(cmd)
			if err != nil {
				return err
			}
			defer closeObjects()

			uris, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(uris) == 0 {
				warnColor.Fprintln(out, "No backups.")
				return nil
			}
			for _, uri := range uris {
				fmt.Fprintln(out, uri)
			}
			return nil
		},
	}
}

func newBackupRestoreCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <gs://bucket/object>",
		Short: "Replace the whole ledger with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("restore overwrites every transaction, subscription and setting; pass --yes to confirm")
			}

			svc, closeObjects, err := a.backupService(cmd)
			if err != nil {
				return err
			}
			defer closeObjects()

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := svc.Restore(cmd.Context(), args[0], st)
			if err != nil {
				return err
			}

			a.log.Info().Str("uri", args[0]).Time("created_at", snap.CreatedAt).Msg("Backup restored")
			okColor.Fprintf(cmd.OutOrStdout(), "Restored %d transaction(s) and %d subscription(s) from %s\n",
				len(snap.Ledger.Transactions), len(snap.Ledger.Subscriptions), backup.Filename(args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm replacing the local ledger")
	return cmd
}
