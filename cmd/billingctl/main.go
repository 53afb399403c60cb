package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"invoicing-backend/internal/db"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var migrationsDir string

var rootCmd = &cobra.Command{
	Use:   "billingctl",
	Short: "Operational CLI for the invoicing backend",
	Long: `billingctl bundles the operational tasks that run outside the API
server: applying the database schema and seeding a demo organization.

The database connection is taken from DATABASE_URL (a .env file in the
working directory is loaded if present).`,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply all SQL migrations in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
		if err != nil {
			return err
		}
		defer pool.Close()

		files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no .sql files found in %s", migrationsDir)
		}
		sort.Strings(files)

		for _, f := range files {
			if err := db.ApplyMigration(ctx, pool, f); err != nil {
				return err
			}
			fmt.Printf("applied %s\n", filepath.Base(f))
		}
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a demo organization with clients and products",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
		if err != nil {
			return err
		}
		defer pool.Close()

		if _, err := pool.Exec(ctx, seedSQL); err != nil {
			return fmt.Errorf("seed failed: %w", err)
		}
		fmt.Println("seeded demo organization DEMO")
		return nil
	},
}

func main() {
	_ = godotenv.Load()

	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "migrations", "directory containing .sql migration files")
	rootCmd.AddCommand(migrateCmd, seedCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
