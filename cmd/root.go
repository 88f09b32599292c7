package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dayfold/dayfold/internal/config"
	"github.com/dayfold/dayfold/internal/engine"
	"github.com/dayfold/dayfold/internal/gitx"
	"github.com/dayfold/dayfold/internal/output"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui  *output.UI
	cfg *config.Config

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "dayfold",
	Short: "Unattended commit and branch rollover for agent-driven repos",
	Long: `dayfold watches a git working tree, commits agent work against a
message file, and folds daily branches toward trunk through version
branches. Run it from inside the repository you want it to manage.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context())
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/dayfold/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "dayfold")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DAYFOLD")
	viper.AutomaticEnv()

	defaults := config.Default()
	viper.SetDefault("static_branch", defaults.StaticBranch)
	viper.SetDefault("daily_prefix", defaults.DailyPrefix)
	viper.SetDefault("timezone", defaults.Timezone)
	viper.SetDefault("date_style", string(defaults.DateStyle))
	viper.SetDefault("trunk", defaults.Trunk)
	viper.SetDefault("auto_push", defaults.AutoPush)
	viper.SetDefault("force_upstream_fallback", defaults.ForceUpstreamFallback)
	viper.SetDefault("require_message", defaults.RequireMessage)
	viper.SetDefault("require_message_after_change", defaults.RequireMessageAfterChange)
	viper.SetDefault("min_header_bytes", defaults.MinHeaderBytes)
	viper.SetDefault("header_pattern", defaults.HeaderPattern)
	viper.SetDefault("message_file", defaults.MessageFile)
	viper.SetDefault("trigger_on_message", defaults.TriggerOnMessage)
	viper.SetDefault("message_debounce", defaults.MessageDebounce)
	viper.SetDefault("quiet_period", defaults.QuietPeriod)
	viper.SetDefault("clear_message", string(defaults.ClearMessage))
	viper.SetDefault("auto_confirm", defaults.AutoConfirm)
	viper.SetDefault("rollover_prompt", defaults.RolloverPrompt)
	viper.SetDefault("force_rollover", defaults.ForceRollover)
	viper.SetDefault("version_prefix", defaults.VersionPrefix)
	viper.SetDefault("start_minor", defaults.StartMinor)
	viper.SetDefault("minor_step", defaults.MinorStep)
	viper.SetDefault("base_ref", defaults.BaseRef)
	viper.SetDefault("ignore_dirs", defaults.IgnoreDirs)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.SetVerbose(verbose)
	ui.DryRun = dryRun
}

// loadConfig builds the immutable runtime configuration from viper.
// Nothing below cmd touches viper or the environment directly.
func loadConfig() (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}

	c := config.Default()
	if err := viper.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg = c
	return cfg, nil
}

// newEngine resolves the repository from the working directory and
// wires the engine. Exits commands early when not inside a git repo.
func newEngine() (*engine.Engine, error) {
	c, err := loadConfig()
	if err != nil {
		return nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if !gitx.IsRepository(wd) {
		return nil, fmt.Errorf("not inside a git repository: %s", wd)
	}

	runner := gitx.NewExecRunner(wd, ui)
	repo := gitx.NewRepo(runner)
	root, ok := repo.RepoRoot(rootCmd.Context())
	if !ok {
		return nil, fmt.Errorf("cannot resolve repository root from %s", wd)
	}

	return engine.New(c, ui, gitx.NewRepo(gitx.NewExecRunner(root, ui)), root), nil
}
