// Command pipcore is a thin CLI entry point over the configuration surface
// (pkg/config): it takes a single configuration file path plus a sequence
// of "/name[:value]" overrides (§6 "CLI surface"), validates the result,
// and reports the resolved toggles. It does not itself schedule or execute
// pips; it exists so the fingerprinting/caching core can be driven and
// inspected from the command line in isolation.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipforge/pipcore/cmd"
	"github.com/pipforge/pipcore/cmd/profile"
	"github.com/pipforge/pipcore/pkg/buildinfo"
	"github.com/pipforge/pipcore/pkg/config"
	"github.com/pipforge/pipcore/pkg/logging"
)

var rootConfiguration struct {
	version bool
	verbose bool
	profile string
}

var rootCommand = &cobra.Command{
	Use:   "pipcore <configuration-file> [/override ...]",
	Short: "Load and validate a pipcore build configuration",
	Args:  cobra.ArbitraryArgs,
	Run:   cmd.Mainify(rootMain),
}

func init() {
	flags := rootCommand.Flags()
	flags.BoolVarP(&rootConfiguration.version, "version", "V", false, "Show version information")
	flags.BoolVarP(&rootConfiguration.verbose, "verbose", "v", false, "Enable debug-level logging")
	flags.StringVar(&rootConfiguration.profile, "profile", "", "Write CPU and heap profiles with the given name prefix")
}

func rootMain(command *cobra.Command, arguments []string) error {
	if rootConfiguration.version {
		fmt.Println(buildinfo.Version)
		return nil
	}

	if len(arguments) == 0 {
		return command.Help()
	}

	if rootConfiguration.profile != "" {
		p, err := profile.New(rootConfiguration.profile)
		if err != nil {
			return fmt.Errorf("unable to start profiling: %w", err)
		}
		defer func() {
			if err := p.Finalize(); err != nil {
				cmd.Warning(fmt.Sprintf("unable to finalize profile: %v", err))
			}
		}()
	}

	level := logging.LevelInfo
	if rootConfiguration.verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewRootLogger(level)

	cfg, err := config.Load(arguments[0])
	if err != nil {
		return err
	}

	for _, override := range arguments[1:] {
		if err := config.ApplyOverride(cfg, override); err != nil {
			return err
		}
	}

	if err := cfg.EnsureValid(); err != nil {
		return err
	}

	logger.Infof(
		"configuration loaded: filesystem-mode=%s membership-policy=%s defer-materialization=%t",
		cfg.FilesystemModeName, cfg.MembershipPolicyName, cfg.DeferMaterialization,
	)
	return nil
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		cmd.Fatal(err)
	}
}
