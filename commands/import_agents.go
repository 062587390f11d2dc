package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	v1 "github.com/concierge-tc/portal-backend/v1"
	"github.com/concierge-tc/portal-backend/v1/services"
	"github.com/spf13/cobra"
)

func newImportAgentsCommand() *cobra.Command {
	var (
		file       string
		sqlitePath string
	)
	cmd := &cobra.Command{
		Use:   "import-agents",
		Short: "Import agents from a CSV roster",
		Long: `Reads a CSV roster with first_name, last_name and email columns
(phone and brokerage are optional) and creates an agent profile per valid row.
Rows whose email already exists are skipped. Use --file - to read stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readRoster(file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			config := v1.NewDatabaseConfig()
			if sqlitePath != "" {
				config.SQLitePath = sqlitePath
			}
			db, err := v1.ConnectGormDB(config)
			if err != nil {
				return err
			}
			defer closeDB(db)

			agents := services.NewAgentService(db, services.NewLocalChangeFeed())
			resp, err := agents.ImportAgents(context.Background(), text)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to import (required)")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "use a SQLite database file instead of Postgres")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readRoster(path string, stdin io.Reader) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read roster: %w", err)
	}
	return string(raw), nil
}
