package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "👥 List users with recorded sessions",
	Args:  cobra.NoArgs,
	RunE:  runUsers,
}

var usersJSON bool

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.Flags().BoolVar(&usersJSON, "json", false, "Print a JSON array")
}

func runUsers(cmd *cobra.Command, args []string) error {
	svc, policy, err := newAnalytics(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	r := svc.UserNames(cmd.Context(), policy)
	if err := reportSource(cmd, r.Message(), r.HasData()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if usersJSON {
		names := r.Data
		if names == nil {
			names = []string{}
		}
		return json.NewEncoder(out).Encode(names)
	}
	for _, name := range r.Data {
		fmt.Fprintln(out, name)
	}
	return nil
}
