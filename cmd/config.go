package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "dayfold"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage dayfold configuration.

Running bare 'dayfold config' is the same as 'dayfold config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# dayfold configuration
# See: dayfold config show (for effective values and sources)

# Commit to a single fixed branch instead of daily branches (default: off)
# static_branch: agents/shared

# Daily branch prefix (default: "{{ .DailyPrefix }}")
# daily_prefix: {{ .DailyPrefix }}

# Version branch prefix and numbering (defaults: "{{ .VersionPrefix }}", {{ .StartMinor }}, {{ .MinorStep }})
# version_prefix: {{ .VersionPrefix }}
# start_minor: {{ .StartMinor }}
# minor_step: {{ .MinorStep }}

# Trunk branch that version branches fold into (default: "{{ .Trunk }}")
# trunk: {{ .Trunk }}

# Ref new version branches start from (default: "{{ .BaseRef }}")
# base_ref: {{ .BaseRef }}

# Timezone for the daily date, IANA name or "Local" (default: "{{ .Timezone }}")
# timezone: {{ .Timezone }}

# Commit message file path; empty means auto-detect (default: auto)
# message_file: COMMIT_MESSAGE.md

# Require a well-formed message before committing (default: {{ .RequireMessage }})
# require_message: {{ .RequireMessage }}

# Debounce after a message file change before committing (default: {{ .MessageDebounce }})
# message_debounce: {{ .MessageDebounce }}

# Push after every commit (default: {{ .AutoPush }})
# auto_push: {{ .AutoPush }}

# Allow a forced push as the last upstream fallback (default: {{ .ForceUpstreamFallback }}).
# Leave off when multiple agents share the remote.
# force_upstream_fallback: {{ .ForceUpstreamFallback }}

# When to truncate the message file: push, commit, or never (default: {{ .ClearMessage }})
# clear_message: {{ .ClearMessage }}

# Directories the watcher ignores
# ignore_dirs:
#   - .git
#   - node_modules
#   - vendor
`

type configTemplateData struct {
	DailyPrefix           string
	VersionPrefix         string
	StartMinor            int
	MinorStep             int
	Trunk                 string
	BaseRef               string
	Timezone              string
	RequireMessage        bool
	MessageDebounce       string
	AutoPush              bool
	ForceUpstreamFallback bool
	ClearMessage          string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		DailyPrefix:           viper.GetString("daily_prefix"),
		VersionPrefix:         viper.GetString("version_prefix"),
		StartMinor:            viper.GetInt("start_minor"),
		MinorStep:             viper.GetInt("minor_step"),
		Trunk:                 viper.GetString("trunk"),
		BaseRef:               viper.GetString("base_ref"),
		Timezone:              viper.GetString("timezone"),
		RequireMessage:        viper.GetBool("require_message"),
		MessageDebounce:       viper.GetDuration("message_debounce").String(),
		AutoPush:              viper.GetBool("auto_push"),
		ForceUpstreamFallback: viper.GetBool("force_upstream_fallback"),
		ClearMessage:          viper.GetString("clear_message"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "static_branch", EnvVar: "DAYFOLD_STATIC_BRANCH"},
	{Key: "daily_prefix", EnvVar: "DAYFOLD_DAILY_PREFIX"},
	{Key: "version_prefix", EnvVar: "DAYFOLD_VERSION_PREFIX"},
	{Key: "start_minor", EnvVar: "DAYFOLD_START_MINOR"},
	{Key: "minor_step", EnvVar: "DAYFOLD_MINOR_STEP"},
	{Key: "trunk", EnvVar: "DAYFOLD_TRUNK"},
	{Key: "base_ref", EnvVar: "DAYFOLD_BASE_REF"},
	{Key: "timezone", EnvVar: "DAYFOLD_TIMEZONE"},
	{Key: "date_style", EnvVar: "DAYFOLD_DATE_STYLE"},
	{Key: "message_file", EnvVar: "DAYFOLD_MESSAGE_FILE"},
	{Key: "require_message", EnvVar: "DAYFOLD_REQUIRE_MESSAGE"},
	{Key: "min_header_bytes", EnvVar: "DAYFOLD_MIN_HEADER_BYTES"},
	{Key: "trigger_on_message", EnvVar: "DAYFOLD_TRIGGER_ON_MESSAGE"},
	{Key: "message_debounce", EnvVar: "DAYFOLD_MESSAGE_DEBOUNCE"},
	{Key: "quiet_period", EnvVar: "DAYFOLD_QUIET_PERIOD"},
	{Key: "auto_push", EnvVar: "DAYFOLD_AUTO_PUSH"},
	{Key: "force_upstream_fallback", EnvVar: "DAYFOLD_FORCE_UPSTREAM_FALLBACK"},
	{Key: "clear_message", EnvVar: "DAYFOLD_CLEAR_MESSAGE"},
	{Key: "rollover_prompt", EnvVar: "DAYFOLD_ROLLOVER_PROMPT"},
	{Key: "auto_confirm", EnvVar: "DAYFOLD_AUTO_CONFIRM"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-26s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set, set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'dayfold config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
