package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jgoulah/energydash/internal/config"
	"github.com/jgoulah/energydash/internal/dashboard"
	"github.com/jgoulah/energydash/internal/dataset"
	"github.com/jgoulah/energydash/internal/meter"
	"github.com/jgoulah/energydash/internal/publisher"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serveAddr   string
	serveSource string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard",
	Long: `Loads the energy and appliance tables, then serves the dashboard until
interrupted. Tables come from the configured files (--source csv) or from the
store filled by 'energydash import' (--source sqlite).`,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8050)")
	cmd.Flags().StringVar(&serveSource, "source", "", "data source: csv or sqlite (default from config, csv)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := serveAddr
	if addr == "" {
		addr = cfg.GetAddr()
	}
	source := serveSource
	if source == "" {
		source = cfg.GetSource()
	}

	data, err := loadDataset(source)
	if err != nil {
		return fmt.Errorf("loading data: %w", err)
	}
	lo, hi, _ := data.Bounds()
	log.WithFields(logrus.Fields{
		"source":     source,
		"energy":     len(data.Energy()),
		"appliances": len(data.Appliances()),
		"from":       lo.Format("2006-01-02"),
		"to":         hi.Format("2006-01-02"),
	}).Info("Loaded data")

	pub, err := publisher.New(cfg.MQTT, config.HAConfig{}, log)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	srv, sessions, err := newDashboard(cfg, data, pub, log)
	if err != nil {
		return err
	}

	sched := cron.New()
	if _, err := sessions.ScheduleSweep(sched, cfg.GetIdleTimeout(), log); err != nil {
		return fmt.Errorf("scheduling session sweep: %w", err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, addr)
}

// newDashboard wires the meter store, callbacks, layout and metrics into a server
func newDashboard(cfg *config.Config, data *dataset.Dataset, pub dashboard.TickPublisher, log *logrus.Logger) (*dashboard.Server, *meter.Store, error) {
	lo, hi := cfg.GetIncrementRange()
	sessions := meter.NewStore(meter.Options{
		Initial:      data.TotalPower(),
		IncrementMin: lo,
		IncrementMax: hi,
	})
	metrics := dashboard.NewMetrics(sessions.Len)

	handlers := dashboard.NewHandlers(dashboard.HandlerOptions{
		Data:        data,
		Sessions:    sessions,
		Tariff:      meter.Tariff{PricePerKWh: cfg.GetPricePerKWh(), Currency: cfg.GetCurrency()},
		TrendWindow: cfg.GetTrendWindow(),
		PieByDate:   cfg.Pie.FilterByDate,
		Publisher:   pub,
		Metrics:     metrics,
		Log:         log,
	})

	reg := dashboard.NewRegistry()
	if err := handlers.Register(reg); err != nil {
		return nil, nil, fmt.Errorf("registering callbacks: %w", err)
	}

	srv, err := dashboard.NewServer(dashboard.ServerOptions{
		Registry: reg,
		Layout:   dashboard.NewLayout(data, cfg.GetInterval()),
		Metrics:  metrics,
		Log:      log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	return srv, sessions, nil
}
