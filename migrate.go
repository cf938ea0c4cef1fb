package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ariebrainware/realty-leads/model"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedCount int
	seedValue int64
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the schema and seed roles",
	Long: `Create or update every table and seed the Admin, Agent and User roles.

Examples:
  # Schema only
  realty-leads migrate

  # Schema plus 50 generated listings
  realty-leads migrate --seed 50`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer util.SyncLogger()
		util.Logger().Info("schema migrated")

		if seedCount <= 0 {
			return nil
		}
		props, err := model.SeedProperties(db, seedCount, seedValue)
		if err != nil {
			return err
		}
		util.Logger().Info("seeded properties", zap.Int("count", len(props)))
		return nil
	},
}

var geoipCmd = &cobra.Command{
	Use:   "geoip",
	Short: "GeoIP database commands",
}

var geoipDownloadCmd = &cobra.Command{
	Use:   "download <url> <dest>",
	Short: "Download a GeoLite2 City database",
	Long:  "Download an MMDB file (optionally .gz) to dest and verify it opens.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		path, err := util.DownloadGeoIP(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if err := util.ValidateGeoIP(path); err != nil {
			return fmt.Errorf("downloaded file is not a valid GeoIP database: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "GeoIP database written to %s\n", path)
		return nil
	},
}

func init() {
	migrateCmd.Flags().IntVar(&seedCount, "seed", 0, "number of fake properties to insert")
	migrateCmd.Flags().Int64Var(&seedValue, "seed-value", time.Now().UnixNano(), "faker seed for repeatable data")
	geoipCmd.AddCommand(geoipDownloadCmd)
}
