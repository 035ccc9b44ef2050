package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/silverstone-i/pg-schemata-sub000/schema"
)

var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Render CREATE SCHEMA/TABLE/INDEX statements from table definitions",
	Long: `Render deterministic DDL for every table in a YAML definitions file.

Statements are printed in definition order: one CREATE SCHEMA per
distinct schema, then CREATE TABLE per table, then (with --indexes)
the CREATE INDEX statements. The same definitions always render
byte-identical SQL, so the output can be committed as a migration
file.`,
	RunE: runDDL,
}

func init() {
	rootCmd.AddCommand(ddlCmd)

	ddlCmd.Flags().StringP("tables", "t", "", "path to the YAML table definitions")
	ddlCmd.Flags().Bool("indexes", false, "include secondary index statements")
	ddlCmd.Flags().StringP("out", "o", "", "write statements to a file instead of stdout")
}

func runDDL(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, "tables", "indexes", "out")
	logger := newLogger()

	path := viper.GetString("tables")
	if path == "" {
		return errors.New("no table definitions: pass --tables or set SCHEMATA_TABLES")
	}
	tables, err := LoadTables(path)
	if err != nil {
		return err
	}
	logger.Debug("loaded table definitions", "path", path, "tables", len(tables))

	var (
		b       strings.Builder
		schemas = make(map[string]struct{})
	)
	for _, t := range tables {
		if t.Schema != "" {
			if _, ok := schemas[t.Schema]; !ok {
				stmt, err := schema.CreateSchema(t.Schema)
				if err != nil {
					return err
				}
				b.WriteString(stmt + "\n\n")
				schemas[t.Schema] = struct{}{}
			}
		}
		ddl, err := schema.CreateTable(t)
		if err != nil {
			return err
		}
		b.WriteString(ddl + "\n\n")
		if viper.GetBool("indexes") && len(t.Indexes)+len(t.Constraints.Indexes) > 0 {
			idx, err := schema.CreateIndexes(t)
			if err != nil {
				return err
			}
			b.WriteString(idx + "\n\n")
		}
	}
	out := strings.TrimRight(b.String(), "\n") + "\n"

	if dest := viper.GetString("out"); dest != "" {
		if err := os.WriteFile(dest, []byte(out), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		logger.Info("wrote DDL", "path", dest, "tables", len(tables))
		return nil
	}
	fmt.Print(out)
	return nil
}
