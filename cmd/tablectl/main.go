// Package main contains the tablectl command-line tool. It uses the
// cobra package for CLI wiring, same as the rest of the corpus. tablectl
// is a thin operator/diagnostic surface over package table's handle
// contract — it is not a SQL shell: it never parses a WHERE clause, it
// only exposes create/append/scan/inspect/flush/list as direct calls.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ristrettodb/ristretto-tablev2/internal/config"
	"github.com/ristrettodb/ristretto-tablev2/internal/schema"
	"github.com/ristrettodb/ristretto-tablev2/internal/store"
	"github.com/ristrettodb/ristretto-tablev2/table"
)

type rootFlags struct {
	configPath  string
	storageRoot string
}

func main() {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "tablectl",
		Short: "Operate RistrettoDB Table V2 files directly",
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a tablectl.toml config file")
	root.PersistentFlags().StringVar(&flags.storageRoot, "storage-root", "", "Storage root (overrides config)")

	root.AddCommand(createCmd(flags))
	root.AddCommand(appendCmd(flags))
	root.AddCommand(inspectCmd(flags))
	root.AddCommand(scanCmd(flags))
	root.AddCommand(flushCmd(flags))
	root.AddCommand(listCmd(flags))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveSettings returns the storage root and the table.Options that
// carry the configured flush policy through to table.Create/Open, so a
// tablectl.toml [flush] table actually changes Append's sync behavior
// instead of being parsed and then discarded.
func resolveSettings(flags *rootFlags) (string, []table.Option, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return "", nil, err
		}
		cfg = loaded
	}

	root := cfg.StorageRoot
	if flags.storageRoot != "" {
		root = flags.storageRoot
	}

	interval, err := cfg.FlushInterval()
	if err != nil {
		return "", nil, fmt.Errorf("flush interval: %w", err)
	}
	opts := []table.Option{table.WithFlushPolicy(cfg.Flush.Rows, interval)}

	return root, opts, nil
}

func createCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name> <schema>",
		Short: "Create a new table file from a CREATE TABLE fragment",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			root, opts, err := resolveSettings(flags)
			if err != nil {
				return err
			}
			if err := store.EnsureStorageDir(root); err != nil {
				return err
			}
			tb, err := table.Create(root, args[0], args[1], opts...)
			if err != nil {
				return fmt.Errorf("create %q: %w", args[0], err)
			}
			defer tb.Close()
			stride := 0
			for i := 0; i < tb.ColumnCount(); i++ {
				stride += int(tb.ColumnAt(i).Length)
			}
			fmt.Fprintf(os.Stdout, "created %s (%d columns, row stride %d)\n", args[0], tb.ColumnCount(), stride)
			return nil
		},
	}
	return cmd
}

// appendCmd reads tab-separated rows from stdin, one row per line, and
// appends each as INTEGER/REAL/TEXT values in column order. A bare "-"
// field is treated as NULL. This is a diagnostic loader, not a general
// import tool.
func appendCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append <name>",
		Short: "Append tab-separated rows read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			root, opts, err := resolveSettings(flags)
			if err != nil {
				return err
			}
			tb, err := table.Open(root, args[0], opts...)
			if err != nil {
				return fmt.Errorf("open %q: %w", args[0], err)
			}
			defer tb.Close()

			scanner := bufio.NewScanner(os.Stdin)
			n := 0
			for scanner.Scan() {
				line := scanner.Text()
				if strings.TrimSpace(line) == "" {
					continue
				}
				values, err := parseRow(tb, line)
				if err != nil {
					return fmt.Errorf("line %d: %w", n+1, err)
				}
				if err := tb.Append(values); err != nil {
					return fmt.Errorf("line %d: append: %w", n+1, err)
				}
				n++
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			fmt.Fprintf(os.Stdout, "appended %d rows, table now has %d\n", n, tb.RowCount())
			return nil
		},
	}
	return cmd
}

func parseRow(tb *table.Table, line string) ([]table.Value, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != tb.ColumnCount() {
		return nil, fmt.Errorf("got %d fields, want %d", len(fields), tb.ColumnCount())
	}
	values := make([]table.Value, len(fields))
	for i, f := range fields {
		col := tb.ColumnAt(i)
		if f == "-" {
			values[i] = table.Null()
			continue
		}
		switch col.Type {
		case schema.Integer:
			n, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			values[i] = table.Int(n)
		case schema.Real:
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			values[i] = table.Float(v)
		default:
			values[i] = table.Str([]byte(f))
		}
	}
	return values, nil
}

func inspectCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <name>",
		Short: "Print a table's schema and row count",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			root, _, err := resolveSettings(flags)
			if err != nil {
				return err
			}
			tb, err := table.Open(root, args[0])
			if err != nil {
				return fmt.Errorf("open %q: %w", args[0], err)
			}
			defer tb.Close()

			fmt.Fprintf(os.Stdout, "%s: %d columns, %d rows\n", args[0], tb.ColumnCount(), tb.RowCount())
			for i := 0; i < tb.ColumnCount(); i++ {
				c := tb.ColumnAt(i)
				fmt.Fprintf(os.Stdout, "  %-8s %-8s length %d offset %d\n", c.Name, c.Type, c.Length, c.Offset)
			}
			return nil
		},
	}
	return cmd
}

func scanCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <name>",
		Short: "Print every row in storage order",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			root, _, err := resolveSettings(flags)
			if err != nil {
				return err
			}
			tb, err := table.Open(root, args[0])
			if err != nil {
				return fmt.Errorf("open %q: %w", args[0], err)
			}
			defer tb.Close()

			w := bufio.NewWriter(os.Stdout)
			defer w.Flush()
			return tb.Select("", func(row []table.Value) error {
				fields := make([]string, len(row))
				for i, v := range row {
					fields[i] = formatValue(v)
				}
				_, err := fmt.Fprintln(w, strings.Join(fields, "\t"))
				return err
			})
		},
	}
	return cmd
}

func formatValue(v table.Value) string {
	switch v.Kind {
	case table.KindInteger:
		return strconv.FormatInt(v.I, 10)
	case table.KindReal:
		return strconv.FormatFloat(v.R, 'g', -1, 64)
	case table.KindText:
		return string(v.Text)
	default:
		return "-"
	}
}

func flushCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush <name>",
		Short: "Force an asynchronous durability sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			root, opts, err := resolveSettings(flags)
			if err != nil {
				return err
			}
			tb, err := table.Open(root, args[0], opts...)
			if err != nil {
				return fmt.Errorf("open %q: %w", args[0], err)
			}
			defer tb.Close()
			return tb.Flush()
		},
	}
	return cmd
}

func listCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List table files under the storage root",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			root, _, err := resolveSettings(flags)
			if err != nil {
				return err
			}
			names, err := store.ListTables(root)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(os.Stdout, n)
			}
			return nil
		},
	}
	return cmd
}
