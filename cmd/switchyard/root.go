package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/config"
	"github.com/neboloop/switchyard/internal/credential"
	"github.com/neboloop/switchyard/internal/defaults"
	"github.com/neboloop/switchyard/internal/engine"
	"github.com/neboloop/switchyard/internal/identity"
	"github.com/neboloop/switchyard/internal/instance"
	"github.com/neboloop/switchyard/internal/keyring"
	"github.com/neboloop/switchyard/internal/logging"
)

// Shared CLI flags
var (
	targetName string
	verbose    bool
)

// AppConfig is the loaded configuration (set by main)
var AppConfig *config.Config

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd(c *config.Config) *cobra.Command {
	AppConfig = c

	rootCmd := &cobra.Command{
		Use:   "switchyard",
		Short: "Switchyard - run editor instances side by side",
		Long: `Switchyard manages isolated instances of VS Code and its forks, each with its own
data directory and signed-in account, and switches accounts by restarting an
instance with the account's session injected.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logging.SetLevel("debug")
			} else {
				logging.SetLevel(AppConfig.LogLevel)
			}
			if targetName == "" {
				targetName = AppConfig.DefaultTarget
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&targetName, "target", "t", "", "Editor to act on (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(InstancesCmd())
	rootCmd.AddCommand(StartCmd())
	rootCmd.AddCommand(StopCmd())
	rootCmd.AddCommand(SwitchCmd())
	rootCmd.AddCommand(FocusCmd())
	rootCmd.AddCommand(CloseAllCmd())
	rootCmd.AddCommand(StatusCmd())
	rootCmd.AddCommand(AccountsCmd())
	rootCmd.AddCommand(ScanCmd())

	return rootCmd
}

// openAccounts unlocks the account store with the master key.
func openAccounts() (*identity.Resolver, error) {
	key, err := keyring.MasterKey(AppConfig.DataDir)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	credential.Init(key)
	return identity.NewResolver(identity.NewFileStore(defaults.AccountsFile(AppConfig.DataDir))), nil
}

func newEngine() (*engine.Engine, error) {
	resolver, err := openAccounts()
	if err != nil {
		return nil, err
	}
	return engine.New(AppConfig, resolver.Store()), nil
}

func storeFor(e *engine.Engine) (*instance.Store, error) {
	c, err := e.Components(targetName)
	if err != nil {
		return nil, err
	}
	return c.Store, nil
}

// resolveID accepts an instance id, a name (case-insensitive) or "default".
func resolveID(ctx context.Context, s *instance.Store, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if instance.IsDefault(arg) {
		return instance.DefaultID, nil
	}
	profiles, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range profiles {
		if p.ID == arg {
			return p.ID, nil
		}
	}
	for _, p := range profiles {
		if strings.EqualFold(p.Name, arg) {
			return p.ID, nil
		}
	}
	return "", apperr.NotFound("cli", "instance", arg)
}

func resolveIDs(ctx context.Context, s *instance.Store, args []string) ([]string, error) {
	ids := make([]string, len(args))
	for i, a := range args {
		id, err := resolveID(ctx, s, a)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func idArg(args []string) string {
	if len(args) == 0 {
		return instance.DefaultID
	}
	return args[0]
}
