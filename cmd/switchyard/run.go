package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neboloop/switchyard/internal/engine"
	"github.com/neboloop/switchyard/internal/notify"
)

func withEngine(fn func(cmd *cobra.Command, e *engine.Engine, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		return fn(cmd, e, args)
	}
}

// StartCmd launches an instance, focusing it when already running
func StartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [instance]",
		Short: "Start an instance (focus it if it is running)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withEngine(func(cmd *cobra.Command, e *engine.Engine, args []string) error {
			s, err := storeFor(e)
			if err != nil {
				return err
			}
			id, err := resolveID(cmd.Context(), s, idArg(args))
			if err != nil {
				return err
			}
			pid, err := e.Launch(cmd.Context(), targetName, id)
			if err != nil {
				return err
			}
			fmt.Printf("Running (pid %d)\n", pid)
			return nil
		}),
	}
}

// StopCmd stops an instance
func StopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop [instance]",
		Short: "Stop an instance",
		Args:  cobra.MaximumNArgs(1),
		RunE: withEngine(func(cmd *cobra.Command, e *engine.Engine, args []string) error {
			s, err := storeFor(e)
			if err != nil {
				return err
			}
			id, err := resolveID(cmd.Context(), s, idArg(args))
			if err != nil {
				return err
			}
			return e.Stop(cmd.Context(), targetName, id)
		}),
	}
}

// SwitchCmd restarts instances signed in as their bound accounts
func SwitchCmd() *cobra.Command {
	var notifyDone bool
	cmd := &cobra.Command{
		Use:   "switch [instance...]",
		Short: "Restart instances with their bound account injected",
		RunE: withEngine(func(cmd *cobra.Command, e *engine.Engine, args []string) error {
			s, err := storeFor(e)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{idArg(args)}
			}
			ids, err := resolveIDs(cmd.Context(), s, args)
			if err != nil {
				return err
			}
			if len(ids) == 1 {
				pid, err := e.Switch(cmd.Context(), targetName, ids[0])
				if err != nil {
					return err
				}
				fmt.Printf("Switched (pid %d)\n", pid)
				if notifyDone {
					notify.Send("Switchyard", "Instance switched and restarted")
				}
				return nil
			}
			results, err := e.SwitchMany(cmd.Context(), targetName, ids)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Printf("  \033[31m✗\033[0m %s: %v\n", r.ID, r.Err)
				} else {
					fmt.Printf("  \033[32m✓\033[0m %s (pid %d)\n", r.ID, r.PID)
				}
			}
			if notifyDone {
				notify.Send("Switchyard", fmt.Sprintf("%d of %d instances switched", len(results)-failed, len(results)))
			}
			return err
		}),
	}
	cmd.Flags().BoolVar(&notifyDone, "notify", false, "Show a desktop notification when done")
	return cmd
}

// FocusCmd brings an instance to the front
func FocusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "focus [instance]",
		Short: "Bring an instance's window to the front",
		Args:  cobra.MaximumNArgs(1),
		RunE: withEngine(func(cmd *cobra.Command, e *engine.Engine, args []string) error {
			s, err := storeFor(e)
			if err != nil {
				return err
			}
			id, err := resolveID(cmd.Context(), s, idArg(args))
			if err != nil {
				return err
			}
			_, err = e.Focus(cmd.Context(), targetName, id)
			return err
		}),
	}
}

// CloseAllCmd stops every instance of the target
func CloseAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close-all",
		Short: "Stop the default instance and every managed instance",
		Args:  cobra.NoArgs,
		RunE: withEngine(func(cmd *cobra.Command, e *engine.Engine, args []string) error {
			return e.CloseAll(cmd.Context(), targetName)
		}),
	}
}

// StatusCmd lists instances with their running state
func StatusCmd() *cobra.Command {
	var inspect bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which instances are running",
		Args:  cobra.NoArgs,
		RunE: withEngine(func(cmd *cobra.Command, e *engine.Engine, args []string) error {
			statuses, err := e.Status(cmd.Context(), targetName)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "\033[90mstopped\033[0m"
				if s.Running {
					state = fmt.Sprintf("\033[32mrunning\033[0m pid=%d", s.PID)
				}
				fmt.Printf("%-20s  %s\n", s.Name, state)
				if inspect {
					sess, err := e.Inspect(cmd.Context(), targetName, s.ID)
					switch {
					case err != nil:
						fmt.Printf("  signed in: ? (%v)\n", err)
					case sess.SignedIn:
						fmt.Printf("  signed in: %s (%s)\n", sess.Label, sess.Scheme)
					default:
						fmt.Println("  signed in: -")
					}
				}
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&inspect, "inspect", false, "Decrypt and show the signed-in account")
	return cmd
}
