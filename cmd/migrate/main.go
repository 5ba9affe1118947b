package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	apiconfig "lumia-advisor/internal/api/config"
	pkgconfig "lumia-advisor/pkg/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var configPath string

func buildDSN(db pkgconfig.Database) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User, db.Password, db.Host, db.Port, db.DBName, db.SSLMode)
}

func newMigrator() (*migrate.Migrate, error) {
	cfg, err := apiconfig.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return migrate.New("file://migrations", buildDSN(cfg.Database))
}

func runMigration(apply func(*migrate.Migrate) error, doneMsg string) error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Printf("Migration source error on close: %v", srcErr)
		}
		if dbErr != nil {
			log.Printf("Migration database error on close: %v", dbErr)
		}
	}()

	if err := apply(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("Database schema is already up to date.")
			return nil
		}
		return err
	}
	fmt.Println(doneMsg)
	return nil
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all available database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(func(m *migrate.Migrate) error { return m.Up() }, "Applied migrations successfully.")
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the last database migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(func(m *migrate.Migrate) error { return m.Steps(-1) }, "Reverted last migration successfully.")
	},
}

func main() {
	rootCmd := &cobra.Command{Use: "migrate", SilenceUsage: true}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-api.yaml", "Path to the configuration file")

	rootCmd.AddCommand(upCmd, downCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
