// main.go
package main

import (
	"fmt"
	"os"

	"github.com/ariebrainware/realty-leads/config"
	"github.com/ariebrainware/realty-leads/model"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "realty-leads",
	Short: "Property listings and lead capture API",
	Long: `realty-leads serves the brokerage website: listings, location pages,
the contact form, the chat assistant and the admin panel API.

Running without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, geoipCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, the logger and a migrated database.
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg := config.LoadConfig()
	util.InitLogger(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)

	db, err := config.ConnectMySQL()
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := model.Migrate(db); err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
