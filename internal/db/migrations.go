package db

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"

	schema "github.com/pharrrodev/type2lyfe-sub001/migrations"
)

var (
	migrationNamePattern = regexp.MustCompile(`^(\d+)_[a-z0-9_]+\.sql$`)
	addColumnPattern     = regexp.MustCompile(`(?i)^ALTER\s+TABLE\s+(\S+)\s+ADD\s+COLUMN\s+(\S+)`)
)

type migration struct {
	version    int
	name       string
	statements []string
}

// migrate applies every embedded migration not yet recorded in
// schema_migrations and returns the names it applied, in order.
func migrate(database *gorm.DB) ([]string, error) {
	if err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`).Error; err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	pending, err := readMigrations(schema.Files)
	if err != nil {
		return nil, err
	}

	var versions []int
	if err := database.Table("schema_migrations").Pluck("version", &versions).Error; err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}
	done := make(map[int]bool, len(versions))
	for _, version := range versions {
		done[version] = true
	}

	applied := make([]string, 0, len(pending))
	for _, next := range pending {
		if done[next.version] {
			continue
		}
		if err := applyMigration(database, next); err != nil {
			return applied, err
		}
		applied = append(applied, next.name)
	}
	return applied, nil
}

func readMigrations(files fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	migrations := make([]migration, 0, len(entries))
	owners := map[int]string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationNamePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", entry.Name(), err)
		}
		if owner, taken := owners[version]; taken {
			return nil, fmt.Errorf("migration version %d used by %s and %s", version, owner, entry.Name())
		}
		owners[version] = entry.Name()

		body, err := fs.ReadFile(files, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		statements := splitStatements(string(body))
		if len(statements) == 0 {
			return nil, fmt.Errorf("migration %s is empty", entry.Name())
		}
		migrations = append(migrations, migration{version: version, name: entry.Name(), statements: statements})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})
	return migrations, nil
}

func applyMigration(database *gorm.DB, next migration) error {
	return database.Transaction(func(tx *gorm.DB) error {
		for _, statement := range next.statements {
			exists, err := columnAlreadyAdded(tx, statement)
			if err != nil {
				return fmt.Errorf("migration %s: %w", next.name, err)
			}
			if exists {
				continue
			}
			if err := tx.Exec(statement).Error; err != nil {
				return fmt.Errorf("migration %s: %w", next.name, err)
			}
		}
		if err := tx.Exec(`INSERT INTO schema_migrations(version, name) VALUES (?, ?)`, next.version, next.name).Error; err != nil {
			return fmt.Errorf("record migration %s: %w", next.name, err)
		}
		return nil
	})
}

func splitStatements(body string) []string {
	statements := []string{}
	for _, part := range strings.Split(body, ";") {
		if statement := strings.TrimSpace(part); statement != "" {
			statements = append(statements, statement)
		}
	}
	return statements
}

// columnAlreadyAdded lets an ADD COLUMN statement be skipped on databases
// where the column was created out of band.
func columnAlreadyAdded(tx *gorm.DB, statement string) (bool, error) {
	matches := addColumnPattern.FindStringSubmatch(statement)
	if matches == nil {
		return false, nil
	}
	table := strings.Trim(matches[1], "\"`[]")
	column := strings.Trim(matches[2], "\"`[]")

	var columns []struct {
		Name string `gorm:"column:name"`
	}
	query := fmt.Sprintf(`SELECT name FROM pragma_table_info('%s')`, strings.ReplaceAll(table, "'", "''"))
	if err := tx.Raw(query).Scan(&columns).Error; err != nil {
		return false, fmt.Errorf("inspect %s: %w", table, err)
	}
	for _, existing := range columns {
		if strings.EqualFold(existing.Name, column) {
			return true, nil
		}
	}
	return false, nil
}
