package cmd

import (
	"context"
	"fmt"
	"os"

	"codedojo/internal/app"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "codedojo",
	Short: "Work through a Go curriculum one failing test at a time",
	Long: "codedojo runs the tests of each exercise unit, shows which ones pass, " +
		"reveals hints on request and remembers your progress between sessions.",
	SilenceUsage: true,
	RunE:         runTUI,
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default .codedojo.yaml)")
	flags.StringP("workspace", "w", ".", "workspace directory; relative paths resolve against it")
	flags.String("curriculum", "", "curriculum directory the tests run in (default: workspace)")
	flags.String("store", app.StoreJSON, "progress backend: json or sqlite")
	flags.String("progress-path", "", "progress file location")
	flags.String("log-path", "", "write JSON logs to this file")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("toolchain", "", "test command template; {package} and {unit} are replaced")
	flags.Duration("idle-timeout", 0, "kill a test run that prints nothing for this long")
	flags.Bool("watch", false, "re-run the selected unit when its sources change")
	flags.Bool("ascii", false, "ASCII-only rendering")

	bind := map[string]string{
		"workspace":     "workspace",
		"curriculum":    "curriculum",
		"store":         "store",
		"progress_path": "progress-path",
		"log_path":      "log-path",
		"log_level":     "log-level",
		"toolchain":     "toolchain",
		"idle_timeout":  "idle-timeout",
		"watch":         "watch",
		"ascii":         "ascii",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".codedojo")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("CODEDOJO")
	viper.AutomaticEnv()

	// No config file is fine; defaults apply.
	_ = viper.ReadInConfig()
}

func loadConfig() (app.Config, error) {
	return app.LoadConfig(viper.GetViper())
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(cmd.Context())
}
