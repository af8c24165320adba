// cmd_env.go - env Command
// Hauptfunktionen: EnvHandler, newEnvCmd
package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ollama/constfold/envconfig"
)

// EnvHandler - Listet alle Environment-Variablen mit aktuellem Wert
func EnvHandler(cmd *cobra.Command, args []string) error {
	vars := envconfig.AsMap()

	var data [][]string
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		v := vars[name]
		data = append(data, []string{v.Name, fmt.Sprintf("%v", v.Value), v.Description})
	}

	table := newTable(cmd.OutOrStdout(), []string{"NAME", "VALUE", "DESCRIPTION"})
	table.AppendBulk(data)
	table.Render()

	return nil
}

// newEnvCmd - Erstellt den env Command
func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show configuration environment variables",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}
}
