package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/silverstone-i/pg-schemata-sub000/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations to a database schema",
	Long: `Apply every pending migration file from the migration directory to the
target schema. The run takes a transaction-scoped advisory lock, applies
the pending files in version order, records each in the ledger table,
and commits everything together; any failure rolls the whole run back.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringP("dir", "d", "migrations", "migration directory")
	migrateCmd.Flags().StringP("schema", "s", "", "target database schema")
	migrateCmd.Flags().String("ledger-table", migrate.DefaultLedgerTable, "ledger table name")
	migrateCmd.Flags().Bool("no-lock", false, "skip the advisory lock (single-writer deployments only)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, "dir", "schema", "ledger-table", "no-lock")
	logger := newLogger()

	schemaName := viper.GetString("schema")
	if schemaName == "" {
		return errors.New("no target schema: pass --schema or set SCHEMATA_SCHEMA")
	}
	src, err := migrate.NewLocalSource(viper.GetString("dir"))
	if err != nil {
		return fmt.Errorf("open migration directory: %w", err)
	}

	drv, err := openDriver(logger)
	if err != nil {
		return err
	}
	defer drv.Close()

	opts := []migrate.Option{
		migrate.WithLedgerTable(viper.GetString("ledger-table")),
		migrate.WithLogger(logger),
	}
	if viper.GetBool("no-lock") {
		opts = append(opts, migrate.WithoutLock())
	}
	res, err := migrate.New(drv, opts...).Apply(cmd.Context(), schemaName, src)
	if err != nil {
		return err
	}

	if res.Applied == 0 {
		fmt.Printf("%s is up to date.\n", schemaName)
		return nil
	}
	fmt.Printf("Applied %d migration(s) to %s:\n", res.Applied, schemaName)
	for _, label := range res.Labels {
		fmt.Printf("  %s\n", label)
	}
	return nil
}
