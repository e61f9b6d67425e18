package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	syncpkg "github.com/tonimelisma/photosync-go/internal/sync"
)

// newStatusCmd builds the status command: a read-only view of what the next
// backup and restore would do.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local and remote inventory state",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

// statusJSON is the machine-readable status output.
type statusJSON struct {
	LocalFiles       int  `json:"local_files"`
	RemoteFiles      int  `json:"remote_files"`
	PendingUploads   int  `json:"pending_uploads"`
	PendingDownloads int  `json:"pending_downloads"`
	LoggedIn         bool `json:"logged_in"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	env, err := openPass(ctx, resolvedCfg, false)
	if err != nil {
		return err
	}
	defer env.close()

	local, err := env.localSnapshot(ctx, "")
	if err != nil {
		return err
	}

	status := statusJSON{LocalFiles: len(local)}

	// Remote state is best-effort: an unauthenticated status still reports
	// the local side instead of failing.
	var remote []syncpkg.RemoteFile

	if err := env.connectRemote(ctx); err == nil {
		remote, err = env.remoteSnapshot(ctx)
		if err != nil && !errors.Is(err, errReauth) {
			return err
		}

		status.LoggedIn = err == nil
	} else if !errors.Is(err, errReauth) {
		return err
	}

	out := cmd.OutOrStdout()

	if !status.LoggedIn {
		if flagJSON {
			return printJSONValue(out, status)
		}

		fmt.Fprintf(out, "Local files: %d\n", status.LocalFiles)
		fmt.Fprintln(out, "Not logged in — run \"photosync login\" for remote status.")

		return nil
	}

	excluded, err := env.store.AlbumAssetIDs(ctx, env.cfg.RestoredAlbum)
	if err != nil {
		return err
	}

	planner := syncpkg.NewPlanner(env.logger)
	status.RemoteFiles = len(remote)
	status.PendingUploads = len(planner.PlanUpload(local, remote, excluded))
	status.PendingDownloads = len(planner.PlanDownload(local, remote))

	if flagJSON {
		return printJSONValue(out, status)
	}

	fmt.Fprintf(out, "Local files: %d\n", status.LocalFiles)
	fmt.Fprintf(out, "Remote files: %d\n", status.RemoteFiles)
	fmt.Fprintf(out, "Pending uploads: %d\n", status.PendingUploads)
	fmt.Fprintf(out, "Pending downloads: %d\n", status.PendingDownloads)

	return nil
}
