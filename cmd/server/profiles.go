package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"hoopsight/internal/core/gallery"
	"hoopsight/internal/db"
	"hoopsight/internal/db/repository"

	"github.com/spf13/cobra"
)

func newProfilesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage enrolled players",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List enrolled players in gallery order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(a.cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close(conn)

			profiles, err := repository.NewSQLiteRepository(conn).ListProfiles(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKEY\tDIM\tPROVIDER\tUPDATED")
			for _, p := range profiles {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.Name, p.Key, p.Dimension, p.Provider, p.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an enrolled player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := gallery.SanitizeName(args[0])
			if key == "" {
				return fmt.Errorf("invalid player name %q", args[0])
			}

			conn, err := db.Open(a.cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close(conn)

			err = repository.NewSQLiteRepository(conn).DeleteProfile(cmd.Context(), key)
			if errors.Is(err, repository.ErrProfileNotFound) {
				return fmt.Errorf("player %q not found", gallery.DisplayName(key))
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s. Running servers pick up the change on the next reload.\n", gallery.DisplayName(key))
			return nil
		},
	})

	return cmd
}
