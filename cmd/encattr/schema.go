package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hengadev/encattr"
)

func newSchemaCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Check or create the shadow columns of encrypted attributes",
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Report tables and columns missing for the defined models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSchema(cmd.Context(), func(db *gorm.DB, defs []modelSchema) error {
				var missingTotal int
				for _, def := range defs {
					missing := def.missing(db)
					if len(missing) == 0 {
						fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): ok\n", def.model.Name(), def.model.Table())
						continue
					}
					missingTotal += len(missing)
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): missing %s\n",
						def.model.Name(), def.model.Table(), strings.Join(missing, ", "))
				}
				if missingTotal > 0 {
					return fmt.Errorf("%d columns missing, run 'encattr schema migrate'", missingTotal)
				}
				return nil
			})
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and add missing columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withSchema(ctx, func(db *gorm.DB, defs []modelSchema) error {
				for _, def := range defs {
					added, err := def.migrate(db)
					if err != nil {
						return err
					}
					if len(added) > 0 {
						a.logger.InfoContext(ctx, "columns added", "model", def.model.Name(), "table", def.model.Table(), "columns", added)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): added %d columns\n", def.model.Name(), def.model.Table(), len(added))
				}
				return nil
			})
		},
	}

	cmd.AddCommand(check, migrate)
	return cmd
}

// modelSchema pairs a model with the plain columns its definition declares.
type modelSchema struct {
	model   *encattr.Model
	columns []string
}

// column is one expected column and its SQL type.
type column struct {
	name    string
	sqlType string
}

// expected lists the primary key, the plain columns and every shadow column.
func (s modelSchema) expected() []column {
	cols := []column{{name: s.model.PrimaryKey(), sqlType: "TEXT"}}
	for _, c := range s.columns {
		cols = append(cols, column{name: c, sqlType: "TEXT"})
	}
	for _, attr := range s.model.EncryptedAttributes() {
		sqlType := "TEXT"
		if !attr.Encode {
			sqlType = "BLOB"
		}
		for _, c := range attr.ShadowColumns() {
			cols = append(cols, column{name: c, sqlType: sqlType})
		}
	}
	return cols
}

func (s modelSchema) missing(db *gorm.DB) []string {
	migrator := db.Migrator()
	table := s.model.Table()
	if !migrator.HasTable(table) {
		return []string{"table " + table}
	}
	var out []string
	for _, c := range s.expected() {
		if !migrator.HasColumn(table, c.name) {
			out = append(out, c.name)
		}
	}
	return out
}

func (s modelSchema) migrate(db *gorm.DB) ([]string, error) {
	table := s.model.Table()
	var added []string
	if !db.Migrator().HasTable(table) {
		err := db.Exec("CREATE TABLE ? (? TEXT PRIMARY KEY)",
			clause.Table{Name: table}, clause.Column{Name: s.model.PrimaryKey()}).Error
		if err != nil {
			return nil, fmt.Errorf("failed to create table %s: %w", table, err)
		}
		added = append(added, s.model.PrimaryKey())
	}

	for _, c := range s.expected() {
		if db.Migrator().HasColumn(table, c.name) {
			continue
		}
		err := db.Exec("ALTER TABLE ? ADD COLUMN ? "+c.sqlType,
			clause.Table{Name: table}, clause.Column{Name: c.name}).Error
		if err != nil {
			return added, fmt.Errorf("failed to add column %s.%s: %w", table, c.name, err)
		}
		added = append(added, c.name)
	}
	return added, nil
}

// withSchema opens the database and builds the defined models for fn.
func (a *app) withSchema(ctx context.Context, fn func(db *gorm.DB, defs []modelSchema) error) error {
	file, err := a.loadModels()
	if err != nil {
		return err
	}

	defs := make([]modelSchema, 0, len(file.Models))
	for _, def := range file.Models {
		m, err := def.Build(a.logger)
		if err != nil {
			return err
		}
		defs = append(defs, modelSchema{model: m, columns: def.Columns})
	}

	db, err := encattr.OpenDB(a.cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer encattr.CloseDB(db)
	return fn(db.WithContext(ctx), defs)
}
