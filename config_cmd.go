package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newConfigCmd builds the config command, which prints the effective
// configuration after the full override chain.
func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			cfg := resolvedCfg

			if flagJSON {
				return printJSONValue(out, map[string]any{
					"config_path":     cfg.ConfigPath,
					"server_mode":     cfg.ServerMode,
					"server_url":      cfg.BaseURL(),
					"email":           cfg.Email,
					"media_dirs":      cfg.MediaDirs,
					"restore_dir":     cfg.RestoreDir,
					"restored_album":  cfg.RestoredAlbum,
					"bandwidth_limit": cfg.BandwidthLimit,
					"hash_workers":    cfg.HashWorkers,
					"log_level":       cfg.LogLevel,
					"state_dir":       cfg.StateDir(),
				})
			}

			fmt.Fprintf(out, "Config file: %s\n", cfg.ConfigPath)
			fmt.Fprintf(out, "Server mode: %s\n", cfg.ServerMode)
			fmt.Fprintf(out, "Server URL: %s\n", cfg.BaseURL())
			fmt.Fprintf(out, "Email: %s\n", valueOrUnset(cfg.Email))
			fmt.Fprintf(out, "Media dirs: %s\n", valueOrUnset(strings.Join(cfg.MediaDirs, ", ")))
			fmt.Fprintf(out, "Restore dir: %s\n", valueOrUnset(cfg.RestoreDir))
			fmt.Fprintf(out, "Restored album: %s\n", cfg.RestoredAlbum)
			fmt.Fprintf(out, "Bandwidth limit: %s\n", valueOrUnset(cfg.BandwidthLimit))
			fmt.Fprintf(out, "Hash workers: %d\n", cfg.HashWorkers)
			fmt.Fprintf(out, "Log level: %s\n", cfg.LogLevel)
			fmt.Fprintf(out, "State dir: %s\n", cfg.StateDir())

			return nil
		},
	}
}

func valueOrUnset(v string) string {
	if v == "" {
		return "(not set)"
	}

	return v
}
