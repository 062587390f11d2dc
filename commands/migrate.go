package commands

import (
	"log/slog"

	v1 "github.com/concierge-tc/portal-backend/v1"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	var sqlitePath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := v1.NewDatabaseConfig()
			if sqlitePath != "" {
				config.SQLitePath = sqlitePath
			}
			config.RunMigration = true

			db, err := v1.ConnectGormDB(config)
			if err != nil {
				return err
			}
			defer closeDB(db)

			slog.Info("Migration finished", "dialect", db.Dialector.Name())
			return nil
		},
	}
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "use a SQLite database file instead of Postgres")
	return cmd
}
