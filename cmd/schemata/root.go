package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/silverstone-i/pg-schemata-sub000/dialect"
	sqld "github.com/silverstone-i/pg-schemata-sub000/dialect/sql"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "schemata",
	Short: "Declarative PostgreSQL table toolkit",
	Long: `schemata renders DDL from declarative YAML table definitions and
applies versioned SQL migrations guarded by an advisory lock and a
tamper-evident ledger.

Settings resolve from flags first, then SCHEMATA_* environment
variables, then schemata.yaml in the working directory.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./schemata.yaml)")
	rootCmd.PersistentFlags().String("dsn", "", "PostgreSQL connection string")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug output and statement logging")

	// Bind global flags to viper
	_ = viper.BindPFlag("dsn", rootCmd.PersistentFlags().Lookup("dsn"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

// initConfig reads in the config file and SCHEMATA_* environment
// variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search the working directory for schemata.yaml.
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("schemata")
	}

	viper.SetEnvPrefix("SCHEMATA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// A missing config file is fine; flags and env cover everything.
	_ = viper.ReadInConfig()
}

// bindFlags rebinds the command's local flags into viper. Sibling
// commands reuse key names (dir, schema, ledger-table), so binding at
// init time would leave viper reading whichever command registered last.
func bindFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		_ = viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}

// newLogger builds the CLI logger: --debug > --verbose > warnings only.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	switch {
	case viper.GetBool("debug"):
		level = slog.LevelDebug
	case viper.GetBool("verbose"):
		level = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// openDriver opens the PostgreSQL driver from the resolved DSN. With
// --debug, every statement is logged through the CLI logger.
func openDriver(logger *slog.Logger) (dialect.Driver, error) {
	dsn := viper.GetString("dsn")
	if dsn == "" {
		return nil, errors.New("no DSN configured: pass --dsn, set SCHEMATA_DSN, or add dsn to schemata.yaml")
	}
	drv, err := sqld.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if viper.GetBool("debug") {
		return sqld.NewDebugDriver(drv, sqld.DebugWithLog(func(_ context.Context, v ...any) {
			logger.Debug(fmt.Sprint(v...))
		})), nil
	}
	return drv, nil
}
