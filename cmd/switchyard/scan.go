package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neboloop/switchyard/internal/proc"
	"github.com/neboloop/switchyard/internal/target"
)

// ScanCmd dumps what the process registry sees
func ScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List running main processes of the target and their data directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := target.Get(targetName)
			if err != nil {
				return err
			}
			reg := proc.NewRegistry(t)
			entries, err := reg.Scan(cmd.Context())
			if err != nil {
				return err
			}
			def, _ := reg.DefaultDir()
			if len(entries) == 0 {
				fmt.Printf("No %s processes.\n", t.DisplayName)
				return nil
			}
			for _, e := range entries {
				dir := e.Dir
				if dir == "" || dir == def {
					dir = "(default) " + def
				}
				fmt.Printf("%7d  %s\n         %s\n", e.PID, dir, e.Exe)
			}
			return nil
		},
	}
}
