package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jgoulah/energydash/internal/dataset"
	"github.com/spf13/cobra"
)

var (
	importEnergy     string
	importAppliances string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the energy and appliance tables into the local database",
	Long: `Reads the energy consumption and appliance power tables (CSV or XLSX) and
replaces the contents of the local SQLite store with them. Re-importing resets
the published flags used by 'energydash publish'.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importEnergy, "energy", "", "energy consumption table (default from config)")
	importCmd.Flags().StringVar(&importAppliances, "appliances", "", "appliance power table (default from config)")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	energyPath := importEnergy
	if energyPath == "" {
		energyPath = cfg.GetEnergyFile()
	}
	appliancePath := importAppliances
	if appliancePath == "" {
		appliancePath = cfg.GetApplianceFile()
	}

	data, err := dataset.Load(energyPath, appliancePath)
	if err != nil {
		return fmt.Errorf("loading tables: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.ReplaceEnergy(data.Energy()); err != nil {
		return fmt.Errorf("storing energy records: %w", err)
	}
	if err := db.ReplaceAppliances(data.Appliances()); err != nil {
		return fmt.Errorf("storing appliance records: %w", err)
	}

	fmt.Printf("✓ Imported %s energy records from %s\n", humanize.Comma(int64(len(data.Energy()))), energyPath)
	fmt.Printf("✓ Imported %s appliance records from %s\n", humanize.Comma(int64(len(data.Appliances()))), appliancePath)
	if info, err := os.Stat(getDBPath()); err == nil {
		fmt.Printf("Database %s is now %s\n", getDBPath(), humanize.Bytes(uint64(info.Size())))
	}
	return nil
}
