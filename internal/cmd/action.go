package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	for _, action := range []string{"start", "stop", "restart"} {
		rootCmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("Ask the backend to %s mosdns", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _, err := setup()
				if err != nil {
					return err
				}
				c, err := newClient(cfg)
				if err != nil {
					return err
				}

				msg, err := c.Action(cmd.Context(), action)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			},
		})
	}
}
