package migrate

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	pgdriver "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/mikeydub/erc20-holders-indexer/util"
)

// RunMigrations applies all unapplied migrations in dir to client.
func RunMigrations(client *sql.DB, dir string) error {
	m, err := newMigrateInstance(client, dir)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if err == migrate.ErrNoChange {
		return nil
	}
	return err
}

func newMigrateInstance(client *sql.DB, dir string) (*migrate.Migrate, error) {
	dir, err := util.FindFile(dir, 3)
	if err != nil {
		return nil, err
	}

	d, err := pgdriver.WithInstance(client, &pgdriver.Config{})
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", d)
	if err != nil {
		return nil, err
	}

	m.Log = migrateLog{}

	return m, nil
}

type migrateLog struct{}

func (migrateLog) Printf(format string, v ...any) {
	fmt.Fprintf(os.Stderr, format, v...)
}

func (migrateLog) Verbose() bool {
	return strings.EqualFold(os.Getenv("MIGRATE_VERBOSE"), "true")
}
