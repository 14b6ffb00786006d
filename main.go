package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/raharper/subiquity/internal/config"
	"github.com/raharper/subiquity/internal/fsatomic"
	"github.com/raharper/subiquity/internal/layout"
	"github.com/raharper/subiquity/internal/model"
	"github.com/raharper/subiquity/internal/probe"
	"github.com/raharper/subiquity/internal/server"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "subiquityd",
		Short: "Storage configuration service",
		Long:  `subiquityd models disks, partitions, RAID arrays, LVM and encryption as a validated in-memory graph and exposes it over HTTP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	var planOut string
	planCmd := &cobra.Command{
		Use:   "plan <layout.yaml>",
		Short: "Validate a layout document and print the resulting plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(args[0], planOut)
		},
	}
	planCmd.Flags().StringVarP(&planOut, "output", "o", "", "write the plan as JSON to this file instead of stdout")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("subiquityd %s (commit: %s)\n", version, commit)
		},
	}

	rootCmd.AddCommand(serveCmd, planCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg := config.FromEnv()
	logger := server.Logger(cfg)

	m, err := seedModel(cfg)
	if err != nil {
		return err
	}
	r := server.NewRouter(cfg, m)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	logger.Info().
		Str("bootloader", m.Bootloader().String()).
		Int("disks", len(m.Devices())).
		Msgf("subiquityd listening on http://%s", addr)

	return http.ListenAndServe(addr, r)
}

// seedModel builds the initial model, populated from the machine's
// block devices when probing is enabled.
func seedModel(cfg config.Config) (*model.Model, error) {
	bl, err := model.ParseBootloader(cfg.Bootloader)
	if err != nil {
		return nil, err
	}
	m := model.New(bl)
	if !cfg.Probe {
		return m, nil
	}
	var disks []probe.Disk
	if probe.Available() {
		disks, err = probe.Collect(context.Background())
		if err != nil {
			return nil, fmt.Errorf("probe block devices: %w", err)
		}
	} else {
		disks = probe.Mock()
	}
	for _, d := range disks {
		serial := d.Serial
		if serial == "" {
			serial = d.Name
		}
		m.AddDisk(serial, d.Size)
	}
	return m, nil
}

func runPlan(path, out string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := layout.Load(data)
	if err != nil {
		return err
	}
	_, plan, err := layout.Apply(doc)
	if err != nil {
		return err
	}
	if out != "" {
		return fsatomic.SaveJSON(out, plan, 0o644)
	}
	for _, step := range plan.Steps {
		marker := " "
		if step.Destructive {
			marker = "!"
		}
		fmt.Printf("%s %-14s %s\n", marker, step.ID, step.Command)
	}
	return nil
}
