package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func checkEmailCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "check-email <email>",
		Short: "Evaluate an address against the configured email policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			policy := newEmailPolicy(cfg)
			result := policy.ValidateEmail(args[0])

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if !result.IsValid {
				return fmt.Errorf("%s: %s", result.Code(), result.Reason)
			}
			return nil
		},
	}
}
