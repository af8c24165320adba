// cmd_input.go - Eingabe von konstanten Werten
// Hauptfunktionen: readAttr, parseAttr
package cmd

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ollama/constfold/constant"
)

// readAttr - Liest ATTR aus dem Argument oder bei "-" von stdin (UTF-8/UTF-16 mit BOM)
func readAttr(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}

	tr := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(cmd.InOrStdin(), tr))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parseAttr - Liest und parst ATTR im Kontext
func parseAttr(cmd *cobra.Command, c *constant.Context, arg string) (constant.ContentAttr, error) {
	s, err := readAttr(cmd, arg)
	if err != nil {
		return constant.ContentAttr{}, err
	}
	return c.Parse(s)
}
