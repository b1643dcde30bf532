package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"log"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func runMigrations(db *sql.DB) error {
	const op = "storage.migrations"

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		if err == goose.ErrNoNextVersion {
			log.Println("No migrations to apply.")
			return nil
		}
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}
