package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go.ngs.io/gws-anomaly/internal/adapter/store/dataset"
	"go.ngs.io/gws-anomaly/internal/config"
	"go.ngs.io/gws-anomaly/internal/domain"
	"go.ngs.io/gws-anomaly/internal/observability"
	"go.ngs.io/gws-anomaly/internal/usecase"
)

// Version is the release of the command-line tool.
const Version = "0.1.0"

var (
	configFile string

	cfg      *config.Config
	log      *logrus.Logger
	metrics  *observability.Metrics
	pipeline *usecase.Pipeline
)

// setup loads the configuration and builds the shared collaborators.
func setup() error {
	v, err := config.NewViper(configFile)
	if err != nil {
		return err
	}
	if cfg, err = config.Load(v); err != nil {
		return err
	}
	if log, err = observability.NewLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	stages := usecase.NewStages(dataset.Files{}, log, metrics, cfg.Workers)
	pipeline = usecase.NewPipeline(stages, cfg)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "gws",
	Short: "Groundwater storage anomalies from gravimetry and land-surface models.",
	Long: `gws derives groundwater storage anomalies from satellite gravimetry total
water storage and land-surface model storage components.

The stages run in order: grid, regrid, soilmoisture, align, groundwater.
Each has its own subcommand; "run" executes all of them.

Configuration is read from a TOML file given with --config and can be
overridden with environment variables of the form GWS_<section>_<key>,
e.g. GWS_BASELINE_START=2004-01-01.`,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return setup()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("gws v%s\n", Version)
	},
}

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Extract the reference grid and write its point listing",
	RunE: func(*cobra.Command, []string) error {
		_, err := pipeline.Grid()
		return fail(err)
	},
}

var regridCmd = &cobra.Command{
	Use:   "regrid",
	Short: "Resample gravimetry files onto the reference grid",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ref, err := pipeline.ReferenceGrid()
		if err != nil {
			return fail(err)
		}
		return finish(pipeline.Regrid(cmd.Context(), ref))
	},
}

var soilMoistureCmd = &cobra.Command{
	Use:   "soilmoisture",
	Short: "Sum soil moisture layers into the 0-200 cm column",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return finish(pipeline.SoilMoisture(cmd.Context()))
	},
}

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "Restrict land-surface files to the gravimetry time steps",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return finish(pipeline.Align(cmd.Context()))
	},
}

var groundwaterCmd = &cobra.Command{
	Use:   "groundwater",
	Short: "Compute the groundwater storage anomaly product",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return finish(pipeline.Groundwater(cmd.Context()))
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		log.WithFields(logrus.Fields{
			"baseline": cfg.Period.String(),
			"workers":  cfg.Workers,
		}).Info("starting pipeline")
		return finish(pipeline.Run(cmd.Context()))
	},
}

// finish logs the stage summary and turns err into the command result.
func finish(report *usecase.Report, err error) error {
	if report != nil {
		report.Log(log)
	}
	return fail(err)
}

func fail(err error) error {
	if err == nil {
		return nil
	}
	log.WithFields(logrus.Fields{
		"error": err,
		"fatal": domain.IsFatal(err),
	}).Error("stage failed")
	return fmt.Errorf("gws: %w", err)
}

func init() {
	Root.PersistentFlags().StringVar(&configFile, "config", "", "path to a TOML configuration file")
	Root.AddCommand(versionCmd, gridCmd, regridCmd, soilMoistureCmd, alignCmd, groundwaterCmd, runCmd)
}
