// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ollama/constfold/envconfig"
	"github.com/ollama/constfold/logutil"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-30s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "constfold",
		Short:         "Fold constant tensor content with deferred transformations",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
			slog.Debug("constfold config", "env", envconfig.Values())
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	foldCmd := newFoldCmd()
	addCmd := newAddCmd()
	describeCmd := newDescribeCmd()
	envCmd := newEnvCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	for _, cmd := range []*cobra.Command{foldCmd, addCmd, describeCmd} {
		appendEnvDocs(cmd, []envconfig.EnvVar{
			envVars["CONSTFOLD_DEBUG"],
			envVars["CONSTFOLD_BACKGROUND_FOLDING"],
			envVars["CONSTFOLD_FOLD_WORKERS"],
			envVars["CONSTFOLD_WAIT_PENDING"],
			envVars["CONSTFOLD_RESOURCE_DIR"],
		})
	}

	rootCmd.AddCommand(
		foldCmd,
		addCmd,
		describeCmd,
		envCmd,
	)

	return rootCmd
}
