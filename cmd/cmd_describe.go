// cmd_describe.go - describe Command
// Hauptfunktionen: DescribeHandler, newDescribeCmd
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ollama/constfold/codec"
)

// DescribeHandler - Gibt Cache-Schluessel und kanonische Beschreibung eines Werts aus
func DescribeHandler(cmd *cobra.Command, args []string) error {
	c, err := newContext(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	attr, err := parseAttr(cmd, c, args[0])
	if err != nil {
		return err
	}

	data, err := attr.MarshalCBOR()
	if err != nil {
		return err
	}

	diag, err := codec.Diagnose(data)
	if err != nil {
		return err
	}

	table := newTable(cmd.OutOrStdout(), []string{"KEY", "TYPE", "SPLAT", "TRANSFORMATIONS"})
	table.Append([]string{attr.Key().String(), attr.Type().String(), fmt.Sprint(attr.IsSplat()), fmt.Sprint(len(attr.Transformations()))})
	table.Render()

	fmt.Fprintln(cmd.OutOrStdout(), diag)
	return nil
}

// newDescribeCmd - Erstellt den describe Command
func newDescribeCmd() *cobra.Command {
	describeCmd := &cobra.Command{
		Use:   "describe ATTR|-",
		Short: "Show the cache key and canonical encoding of a constant value",
		Args:  cobra.ExactArgs(1),
		RunE:  DescribeHandler,
	}

	describeCmd.Flags().StringArray("resource", nil, "Register a dense_resource blob (name=path)")

	return describeCmd
}
