package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/silverstone-i/pg-schemata-sub000/migrate"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the migration state of a database schema",
	Long: `Report the target schema's current version, its applied ledger rows,
and the migration files still pending. Read-only: the command never
creates the ledger table or takes the advisory lock. Pass --dir "" to
report applied state without comparing against local files.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringP("dir", "d", "migrations", "migration directory (empty skips the pending comparison)")
	statusCmd.Flags().StringP("schema", "s", "", "target database schema")
	statusCmd.Flags().String("ledger-table", migrate.DefaultLedgerTable, "ledger table name")
	statusCmd.Flags().StringP("output", "o", "text", "output format (text, json, yaml)")
}

// statusReport is the serializable view of a schema's migration state.
type statusReport struct {
	Schema  string       `json:"schema" yaml:"schema"`
	Current int64        `json:"current_version" yaml:"current_version"`
	Applied []appliedRow `json:"applied" yaml:"applied"`
	Pending []string     `json:"pending" yaml:"pending"`
}

type appliedRow struct {
	Version   int64  `json:"version" yaml:"version"`
	Label     string `json:"label" yaml:"label"`
	Hash      string `json:"content_hash" yaml:"content_hash"`
	AppliedAt string `json:"applied_at" yaml:"applied_at"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, "dir", "schema", "ledger-table", "output")
	logger := newLogger()

	schemaName := viper.GetString("schema")
	if schemaName == "" {
		return errors.New("no target schema: pass --schema or set SCHEMATA_SCHEMA")
	}
	var src migrate.Source
	if dir := viper.GetString("dir"); dir != "" {
		s, err := migrate.NewLocalSource(dir)
		if err != nil {
			return fmt.Errorf("open migration directory: %w", err)
		}
		src = s
	}

	drv, err := openDriver(logger)
	if err != nil {
		return err
	}
	defer drv.Close()

	m := migrate.New(drv,
		migrate.WithLedgerTable(viper.GetString("ledger-table")),
		migrate.WithLogger(logger),
	)
	st, err := m.Status(cmd.Context(), schemaName, src)
	if err != nil {
		return err
	}

	report := statusReport{
		Schema:  schemaName,
		Current: st.Current,
		Pending: st.Pending,
	}
	for _, e := range st.Applied {
		report.Applied = append(report.Applied, appliedRow{
			Version:   e.Version,
			Label:     e.Label,
			Hash:      e.ContentHash,
			AppliedAt: e.AppliedAt.Format(time.RFC3339),
		})
	}
	return outputStatus(report, viper.GetString("output"))
}

func outputStatus(report statusReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(report)
	case "text":
		return outputStatusText(report)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func outputStatusText(report statusReport) error {
	fmt.Printf("Schema:          %s\n", report.Schema)
	fmt.Printf("Current version: %d\n", report.Current)

	if len(report.Applied) > 0 {
		fmt.Println("\nApplied:")
		for _, row := range report.Applied {
			fmt.Printf("  %6d  %-40s  %s\n", row.Version, row.Label, row.AppliedAt)
		}
	}
	if len(report.Pending) > 0 {
		fmt.Println("\nPending:")
		for _, label := range report.Pending {
			fmt.Printf("  %s\n", label)
		}
		return nil
	}
	fmt.Println("\nNo pending migrations.")
	return nil
}
