package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/neboloop/switchyard/internal/instance"
)

// InstancesCmd manages the instance list of a target
func InstancesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instances",
		Aliases: []string{"instance", "i"},
		Short:   "Manage instances",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			s, err := storeFor(e)
			if err != nil {
				return err
			}
			refs, err := s.Refs(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range refs {
				printRef(r)
			}
			return nil
		},
	})

	var req instance.CreateRequest
	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			s, err := storeFor(e)
			if err != nil {
				return err
			}
			req.Name = args[0]
			if req.CopyFrom != "" {
				if req.CopyFrom, err = resolveID(cmd.Context(), s, req.CopyFrom); err != nil {
					return err
				}
			}
			p, err := s.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s (%s)\n  %s\n", p.Name, p.ID, p.UserDataDir)
			return nil
		},
	}
	create.Flags().StringVar(&req.UserDataDir, "dir", "", "Data directory (default: a new one under the profiles dir)")
	create.Flags().StringVar(&req.ExtraArgs, "args", "", "Extra launch arguments")
	create.Flags().StringVar(&req.BoundAccountID, "account", "", "Account to bind")
	create.Flags().StringVar(&req.CopyFrom, "copy-from", "", "Instance whose data directory seeds the new one")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "rename [instance] [name]",
		Short: "Rename an instance",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(cmd *cobra.Command, s *instance.Store, args []string) error {
			id, err := resolveID(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			return s.Rename(cmd.Context(), id, args[1])
		}),
	})

	var yes bool
	del := &cobra.Command{
		Use:   "delete [instance]",
		Short: "Delete an instance and its data directory",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, s *instance.Store, args []string) error {
			id, err := resolveID(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			ref, err := s.Resolve(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("this removes %s; rerun with --yes", ref.Dir)
			}
			return s.Delete(cmd.Context(), id)
		}),
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	cmd.AddCommand(del)

	cmd.AddCommand(&cobra.Command{
		Use:   "bind [instance] [account-id]",
		Short: "Bind an account to an instance (empty id unbinds)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withStore(func(cmd *cobra.Command, s *instance.Store, args []string) error {
			id, err := resolveID(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			account := ""
			if len(args) == 2 {
				account = args[1]
			}
			return s.Bind(cmd.Context(), id, account)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "args [instance] [args]",
		Short: "Set extra launch arguments",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withStore(func(cmd *cobra.Command, s *instance.Store, args []string) error {
			id, err := resolveID(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			extra := ""
			if len(args) == 2 {
				extra = args[1]
			}
			return s.SetExtraArgs(cmd.Context(), id, extra)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print the instance list whenever it changes",
		RunE: withStore(func(cmd *cobra.Command, s *instance.Store, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			fmt.Printf("Watching %s\n", s.Path())
			return s.Watch(ctx, func(profiles []instance.Profile) {
				fmt.Printf("%d instance(s):\n", len(profiles))
				for _, p := range profiles {
					fmt.Printf("  %s  %s\n", p.ID, p.Name)
				}
			})
		}),
	})

	return cmd
}

func withStore(fn func(cmd *cobra.Command, s *instance.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		s, err := storeFor(e)
		if err != nil {
			return err
		}
		return fn(cmd, s, args)
	}
}

func printRef(r instance.Ref) {
	account := r.BoundAccountID
	if account == "" {
		account = "-"
	}
	fmt.Printf("%-36s  %-20s  account=%s\n", r.ID, r.Name, account)
	fmt.Printf("  %s\n", r.Dir)
	if r.ExtraArgs != "" {
		fmt.Printf("  args: %s\n", r.ExtraArgs)
	}
}
