package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jgoulah/energydash/internal/dataset"
	"github.com/jgoulah/energydash/pkg/models"
	"github.com/spf13/cobra"
)

var (
	listAppliances bool
	listSince      string
	listUntil      string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored energy data",
	Long:  `Displays the energy consumption (or appliance) records held in the local database.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listAppliances, "appliances", false, "List appliance power records instead")
	listCmd.Flags().StringVar(&listSince, "since", "", "Only list records since this date (YYYY-MM-DD or relative like 7d)")
	listCmd.Flags().StringVar(&listUntil, "until", "", "Only list records until this date (YYYY-MM-DD)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	since, until, err := parseBounds(listSince, listUntil)
	if err != nil {
		return err
	}

	if listAppliances {
		records, err := db.ListAppliances()
		if err != nil {
			return fmt.Errorf("listing appliances: %w", err)
		}
		printAppliances(filterAppliances(records, since, until))
		return nil
	}

	records, err := db.ListEnergy()
	if err != nil {
		return fmt.Errorf("listing energy records: %w", err)
	}
	records = filterEnergy(records, since, until)
	if len(records) == 0 {
		fmt.Println("No energy data found")
		return nil
	}

	fmt.Printf("\nEnergy Consumption Data:\n")
	fmt.Println("----------------------------------------")
	fmt.Printf("%-12s  %10s\n", "Date", "kWh")
	fmt.Println("----------------------------------------")

	var total float64
	for _, record := range records {
		fmt.Printf("%-12s  %10.2f\n", record.Date.Format("2006-01-02"), record.KWh)
		total += record.KWh
	}

	fmt.Println("----------------------------------------")
	fmt.Printf("Total: %s kWh (%s records)\n", humanize.CommafWithDigits(total, 2), humanize.Comma(int64(len(records))))
	return nil
}

func printAppliances(records []models.ApplianceRecord) {
	if len(records) == 0 {
		fmt.Println("No appliance data found")
		return
	}

	fmt.Printf("\nAppliance Power Data:\n")
	fmt.Println("----------------------------------------")
	fmt.Printf("%-20s  %10s  %s\n", "Appliance", "Power", "Date")
	fmt.Println("----------------------------------------")
	for _, record := range records {
		date := "-"
		if record.Dated() {
			date = record.Date.Format("2006-01-02")
		}
		fmt.Printf("%-20s  %10.2f  %s\n", record.Appliance, record.Power, date)
	}
	fmt.Println("----------------------------------------")

	// same grouping the pie chart uses
	totals := dataset.New(nil, records).GroupAppliances(nil)
	for _, t := range totals {
		fmt.Printf("%-20s  %10s\n", t.Appliance, humanize.CommafWithDigits(t.Power, 2))
	}
}

// parseBounds parses optional --since/--until flags
func parseBounds(sinceStr, untilStr string) (since, until *time.Time, err error) {
	if sinceStr != "" {
		t, err := parseDate(sinceStr)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing --since date: %w", err)
		}
		since = &t
	}
	if untilStr != "" {
		t, err := parseDate(untilStr)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing --until date: %w", err)
		}
		until = &t
	}
	return since, until, nil
}

func filterEnergy(records []models.EnergyRecord, since, until *time.Time) []models.EnergyRecord {
	if since == nil && until == nil {
		return records
	}
	filtered := []models.EnergyRecord{}
	for _, record := range records {
		if since != nil && record.Date.Before(*since) {
			continue
		}
		if until != nil && record.Date.After(*until) {
			continue
		}
		filtered = append(filtered, record)
	}
	return filtered
}

// filterAppliances keeps undated rows regardless of the bounds
func filterAppliances(records []models.ApplianceRecord, since, until *time.Time) []models.ApplianceRecord {
	if since == nil && until == nil {
		return records
	}
	filtered := []models.ApplianceRecord{}
	for _, record := range records {
		if record.Dated() {
			if since != nil && record.Date.Before(*since) {
				continue
			}
			if until != nil && record.Date.After(*until) {
				continue
			}
		}
		filtered = append(filtered, record)
	}
	return filtered
}
