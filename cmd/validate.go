package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"codedojo/internal/app"
	"codedojo/internal/runner"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the curriculum definitions and the toolchain",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return validateCurriculum(cmd.Context(), cmd.OutOrStdout(), cfg, cfg.RunnerConfig())
}

func validateCurriculum(ctx context.Context, out io.Writer, cfg app.Config, rc runner.Config) error {
	cat, err := app.LoadCatalog(cfg)
	if err != nil {
		return err
	}
	tests := 0
	for _, u := range cat.Units() {
		tests += len(u.Tests)
	}
	fmt.Fprintf(out, "curriculum %q: %d units, %d tests\n", cat.Name, cat.Len(), tests)
	fmt.Fprintf(out, "order: %s\n", strings.Join(cat.Order(), " -> "))

	info, err := runner.NewManager(rc, nil).Detect(ctx)
	if err != nil {
		return fmt.Errorf("toolchain: %w", err)
	}
	fmt.Fprintf(out, "toolchain: %s (%s)\n", info.Version, info.Path)
	return nil
}
