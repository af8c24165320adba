// cmd_fold.go - fold und add Commands
// Hauptfunktionen: FoldHandler, AddHandler, newFoldCmd, newAddCmd
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ollama/constfold/constant"
	"github.com/ollama/constfold/content"
	"github.com/ollama/constfold/dtype"
	"github.com/ollama/constfold/envconfig"
	"github.com/ollama/constfold/logutil"
	"github.com/ollama/constfold/resource"
	"github.com/ollama/constfold/transform"
)

// loadResources - Registriert Blobs im Format name=pfad
func loadResources(m *resource.Manager, specs []string) error {
	for _, spec := range specs {
		name, path, ok := strings.Cut(spec, "=")
		if !ok || name == "" || path == "" {
			return fmt.Errorf("invalid resource %q, expected name=path", spec)
		}

		if !filepath.IsAbs(path) {
			path = filepath.Join(envconfig.ResourceDir(), path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		if _, err := m.Insert(name, data); err != nil {
			return err
		}
		slog.Debug("loaded resource", "name", name, "path", path, "size", len(data))
	}
	return nil
}

// newContext - Erstellt einen Kontext mit den Ressourcen aus --resource
func newContext(cmd *cobra.Command) (*constant.Context, error) {
	specs, err := cmd.Flags().GetStringArray("resource")
	if err != nil {
		return nil, err
	}

	m := resource.NewManager()
	if err := loadResources(m, specs); err != nil {
		return nil, err
	}

	return constant.NewContext(constant.WithResources(m), constant.WithLogger(slog.Default())), nil
}

// terminalWidth - Breite des Terminals, 0 wenn w kein Terminal ist
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// formatValues - Gibt die gespeicherten Werte aus, bei Splats nur einen
func formatValues(c *content.Content) (string, error) {
	storage := c.StorageElemType()

	var vals []string
	switch {
	case storage == dtype.U64:
		uints, err := c.StoredUint64s()
		if err != nil {
			return "", err
		}
		for _, v := range uints {
			vals = append(vals, strconv.FormatUint(v, 10))
		}
	case storage.IsInt():
		ints, err := c.StoredInt64s()
		if err != nil {
			return "", err
		}
		for _, v := range ints {
			vals = append(vals, strconv.FormatInt(v, 10))
		}
	default:
		floats, err := c.StoredFloat64s()
		if err != nil {
			return "", err
		}
		for _, v := range floats {
			vals = append(vals, strconv.FormatFloat(v, 'g', -1, 64))
		}
	}

	if c.IsSplat() {
		return vals[0], nil
	}
	return "[" + strings.Join(vals, ", ") + "]", nil
}

// FoldHandler - Faltet einen konstanten Wert und gibt das Ergebnis aus
func FoldHandler(cmd *cobra.Command, args []string) error {
	c, err := newContext(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	attr, err := parseAttr(cmd, c, args[0])
	if err != nil {
		return err
	}

	logutil.TraceContext(cmd.Context(), "parsed constant", "attr", attr.String(), "key", attr.Key().Short())

	bypass, err := cmd.Flags().GetBool("bypass-cache")
	if err != nil {
		return err
	}

	res, err := c.FoldContext(cmd.Context(), attr, bypass)
	if err != nil {
		return err
	}

	table := newTable(cmd.OutOrStdout(), []string{"TYPE", "SPLAT", "BYTES", "KEY"})
	table.Append([]string{
		res.Type().String(),
		strconv.FormatBool(res.IsSplat()),
		strconv.Itoa(len(res.RawStorage())),
		attr.Key().Short(),
	})
	table.Render()

	if values, _ := cmd.Flags().GetBool("values"); values {
		s, err := formatValues(res)
		if err != nil {
			return err
		}
		if width := terminalWidth(cmd.OutOrStdout()); width > 0 {
			s = runewidth.Truncate(s, width, "...")
		}
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}

	return nil
}

// AddHandler - Fuegt Transformationen ein und gibt den neuen Wert aus
func AddHandler(cmd *cobra.Command, args []string) error {
	c, err := newContext(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	attr, err := parseAttr(cmd, c, args[0])
	if err != nil {
		return err
	}

	ts := make([]transform.Transformation, 0, len(args)-1)
	for _, arg := range args[1:] {
		t, err := transform.Parse(arg)
		if err != nil {
			return err
		}
		ts = append(ts, t)
	}

	attr, err = c.AddTransformations(attr, ts...)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), attr.String())

	table := newTable(cmd.OutOrStdout(), []string{"TYPE", "SPLAT", "KEY"})
	table.Append([]string{attr.Type().String(), strconv.FormatBool(attr.IsSplat()), attr.Key().Short()})
	table.Render()

	return nil
}

// newFoldCmd - Erstellt den fold Command
func newFoldCmd() *cobra.Command {
	foldCmd := &cobra.Command{
		Use:   "fold ATTR|-",
		Short: "Fold a constant value and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  FoldHandler,
	}

	foldCmd.Flags().Bool("bypass-cache", false, "Do not consult or fill the folding cache")
	foldCmd.Flags().Bool("values", false, "Print the stored values")
	foldCmd.Flags().StringArray("resource", nil, "Register a dense_resource blob (name=path)")

	return foldCmd
}

// newAddCmd - Erstellt den add Command
func newAddCmd() *cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add ATTR|- TRANSFORMATION...",
		Short: "Insert transformations into a constant value",
		Args:  cobra.MinimumNArgs(2),
		RunE:  AddHandler,
	}

	addCmd.Flags().StringArray("resource", nil, "Register a dense_resource blob (name=path)")

	return addCmd
}
