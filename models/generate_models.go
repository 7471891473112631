package models

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"gorm.io/gen"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

/*
Column report usage:

	blog gen report

Lists, per table, the database columns that no model field maps to through a
`column:` gorm tag. Tables that do not exist yet are reported and skipped.

	--- Table: posts ---
	Found 1 columns not accounted for in model:
	  - legacy_views

	=== SUMMARY ===
	Total mismatched columns across all tables: 1
*/

var errTableMissing = errors.New("table does not exist")

// tableModels maps table names to the model that owns them.
func tableModels() map[string]any {
	return map[string]any{
		"users":      User{},
		"posts":      Post{},
		"tags":       Tag{},
		"categories": Category{},
	}
}

// GenerateModels migrates the schema and writes gorm/gen query helpers to outPath.
func GenerateModels(db *gorm.DB, outPath string, w io.Writer) error {
	if err := db.Exec("SELECT 1").Error; err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}

	db = db.Session(&gorm.Session{
		Logger:                 db.Logger.LogMode(logger.Info),
		SkipDefaultTransaction: true,
	})

	g := gen.NewGenerator(gen.Config{
		OutPath:           outPath,
		Mode:              gen.WithDefaultQuery | gen.WithQueryInterface,
		FieldNullable:     true,
		FieldCoverable:    true,
		FieldWithIndexTag: true,
		FieldWithTypeTag:  true,
	})
	g.UseDB(db)
	g.ApplyBasic(User{}, Post{}, Tag{}, Category{})

	fmt.Fprintln(w, "Migrating models...")
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("migrate models: %w", err)
	}

	if _, err := ColumnMismatchReport(db, w); err != nil {
		return err
	}

	g.Execute()
	fmt.Fprintln(w, "Model generation complete!")
	return nil
}

// ColumnMismatchReport prints database columns not represented in the models and
// returns how many were found.
func ColumnMismatchReport(db *gorm.DB, w io.Writer) (int, error) {
	fmt.Fprintln(w, "=== COLUMN MISMATCH REPORT ===")

	mappings := tableModels()
	tables := make([]string, 0, len(mappings))
	for name := range mappings {
		tables = append(tables, name)
	}
	sort.Strings(tables)

	total := 0
	for _, table := range tables {
		fmt.Fprintf(w, "\n--- Table: %s ---\n", table)

		dbColumns, err := getTableColumns(db, table)
		if errors.Is(err, errTableMissing) {
			fmt.Fprintln(w, "Table does not exist yet (will be created during migration)")
			continue
		}
		if err != nil {
			return total, err
		}

		mismatches := findColumnMismatches(dbColumns, getModelFields(mappings[table]))
		if len(mismatches) == 0 {
			fmt.Fprintln(w, "All columns are accounted for in the model.")
			continue
		}
		fmt.Fprintf(w, "Found %d columns not accounted for in model:\n", len(mismatches))
		for _, col := range mismatches {
			fmt.Fprintf(w, "  - %s\n", col)
		}
		total += len(mismatches)
	}

	fmt.Fprintf(w, "\n=== SUMMARY ===\n")
	fmt.Fprintf(w, "Total mismatched columns across all tables: %d\n", total)
	return total, nil
}

func getTableColumns(db *gorm.DB, tableName string) ([]string, error) {
	migrator := db.Migrator()
	if !migrator.HasTable(tableName) {
		return nil, fmt.Errorf("%s: %w", tableName, errTableMissing)
	}

	columnTypes, err := migrator.ColumnTypes(tableName)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", tableName, err)
	}

	columns := make([]string, 0, len(columnTypes))
	for _, ct := range columnTypes {
		columns = append(columns, ct.Name())
	}
	return columns, nil
}

// getModelFields collects the `column:` names declared on a struct's gorm tags
func getModelFields(model any) []string {
	var fields []string
	t := reflect.TypeOf(model)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			continue
		}
		if columnName := extractColumnNameFromGormTag(field.Tag.Get("gorm")); columnName != "" {
			fields = append(fields, columnName)
		}
	}

	return fields
}

func extractColumnNameFromGormTag(gormTag string) string {
	for _, part := range strings.Split(gormTag, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "column:") {
			return strings.TrimPrefix(part, "column:")
		}
	}
	return ""
}

func findColumnMismatches(dbColumns, modelFields []string) []string {
	modelFieldSet := make(map[string]bool, len(modelFields))
	for _, field := range modelFields {
		modelFieldSet[field] = true
	}

	var mismatches []string
	for _, col := range dbColumns {
		if !modelFieldSet[col] {
			mismatches = append(mismatches, col)
		}
	}
	return mismatches
}
