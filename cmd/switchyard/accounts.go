package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neboloop/switchyard/internal/engine"
	"github.com/neboloop/switchyard/internal/identity"
	"github.com/neboloop/switchyard/internal/target"
)

// AccountsCmd manages stored accounts
func AccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage stored accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openAccounts()
			if err != nil {
				return err
			}
			accounts, err := r.Store().List(cmd.Context())
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Println("No accounts stored.")
				return nil
			}
			for _, a := range accounts {
				fmt.Printf("%-36s  %-10s  %s\n", a.ID, a.Provider, a.Label())
				if len(a.Tags) > 0 {
					fmt.Printf("      Tags: %s\n", strings.Join(a.Tags, ", "))
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import [file]",
		Short: "Add or update accounts from an OAuth payload (JSON object or array)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			payloads, err := parsePayloads(data)
			if err != nil {
				return err
			}
			r, err := openAccounts()
			if err != nil {
				return err
			}
			for _, p := range payloads {
				a, created, err := r.Upsert(cmd.Context(), p)
				if err != nil {
					return err
				}
				verb := "Updated"
				if created {
					verb = "Created"
				}
				fmt.Printf("%s %s (%s)\n", verb, a.ID, a.Label())
			}
			return nil
		},
	})

	var prefer string
	dedupe := &cobra.Command{
		Use:   "dedupe",
		Short: "Merge duplicate accounts and rebind instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openAccounts()
			if err != nil {
				return err
			}
			e := engine.New(AppConfig, r.Store())
			ctx := cmd.Context()

			if prefer == "" {
				if s, err := storeFor(e); err == nil {
					if d, err := s.Defaults(ctx); err == nil {
						prefer = d.BoundAccountID
					}
				}
			}
			res, err := r.Deduplicate(ctx, prefer)
			if err != nil {
				return err
			}
			if len(res.Merged) == 0 {
				fmt.Println("No duplicates.")
				return nil
			}
			for dup, primary := range res.Merged {
				fmt.Printf("Merged %s into %s\n", dup, primary)
			}
			for _, name := range target.Names() {
				c, err := e.Components(name)
				if err != nil {
					return err
				}
				n, err := c.Store.RebindAccounts(ctx, res.Merged)
				if err != nil {
					return fmt.Errorf("rebind %s instances: %w", name, err)
				}
				if n > 0 {
					fmt.Printf("Rebound %d %s instance(s)\n", n, name)
				}
			}
			return nil
		},
	}
	dedupe.Flags().StringVar(&prefer, "prefer", "", "Account id to keep as primary (default: bound to the default instance)")
	cmd.AddCommand(dedupe)

	return cmd
}

func parsePayloads(data []byte) ([]identity.Account, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var out []identity.Account
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("parse accounts: %w", err)
		}
		return out, nil
	}
	var a identity.Account
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse account: %w", err)
	}
	return []identity.Account{a}, nil
}

