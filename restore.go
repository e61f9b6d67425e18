package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	syncpkg "github.com/tonimelisma/photosync-go/internal/sync"
)

// newRestoreCmd builds the restore command: download every remote file the
// local library is missing and commit it into the restore directory.
func newRestoreCmd() *cobra.Command {
	var flagDryRun bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Download remote media missing from the local library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRestore(cmd, flagDryRun)
		},
	}

	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be downloaded without transferring")

	return cmd
}

func runRestore(cmd *cobra.Command, dryRun bool) error {
	ctx := cmd.Context()

	env, err := openPass(ctx, resolvedCfg, true)
	if err != nil {
		return err
	}
	defer env.close()

	local, err := env.localSnapshot(ctx, "")
	if err != nil {
		return err
	}

	remote, err := env.remoteSnapshot(ctx)
	if err != nil {
		return err
	}

	plan := syncpkg.NewPlanner(env.logger).PlanDownload(local, remote)

	if dryRun {
		return printPlan(cmd.OutOrStdout(), "download", remoteFilenames(plan))
	}

	if env.cfg.RestoreDir == "" {
		return errors.New("no restore directory configured — set library.restore_dir or library.media_dirs in the config file")
	}

	limiter, err := syncpkg.NewBandwidthLimiter(env.cfg.BandwidthLimit, env.logger)
	if err != nil {
		return err
	}

	items := make([]syncpkg.WorkItem, len(plan))
	for i, file := range plan {
		items[i] = syncpkg.DownloadItem(file)
	}

	fns := syncpkg.TransferFuncs{
		Download: func(ctx context.Context, file *syncpkg.RemoteFile) error {
			return downloadFile(ctx, env, limiter, file)
		},
	}

	progress := newProgressPrinter("Downloading")

	report, err := syncpkg.NewOrchestrator(fns, progress.update, env.logger).Execute(ctx, items)
	if err != nil {
		return err
	}

	if err := printReport(cmd.OutOrStdout(), report); err != nil {
		return err
	}

	return runFailure(report)
}

// downloadFile fetches one remote file into the staging directory, then
// commits it into the restore directory and tags it as restored content so
// backup never re-uploads it. A failure at any step leaves the library
// untouched; replanning the next pass picks the file up again.
func downloadFile(ctx context.Context, env *passEnv, limiter *syncpkg.BandwidthLimiter, file *syncpkg.RemoteFile) error {
	stagingDir := env.cfg.StagingDir()
	if err := os.MkdirAll(stagingDir, 0o700); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}

	stagingPath := filepath.Join(stagingDir, filepath.Base(file.Filename)+".partial")

	f, err := os.OpenFile(stagingPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("creating staging file: %w", err)
	}

	_, err = env.client.DownloadFile(ctx, file.Filename, limiter.WrapWriter(ctx, f))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(stagingPath)
		return mapRemoteErr(err)
	}

	asset, err := env.store.CommitDownload(ctx, stagingPath, file.Filename, env.cfg.RestoreDir)
	if err != nil {
		os.Remove(stagingPath)
		return err
	}

	if err := env.store.AddToAlbum(ctx, env.cfg.RestoredAlbum, []string{asset.ID}); err != nil {
		return err
	}

	return nil
}

// remoteFilenames projects a planned remote file list to its filenames.
func remoteFilenames(files []syncpkg.RemoteFile) []string {
	names := make([]string, len(files))
	for i := range files {
		names[i] = files[i].Filename
	}

	return names
}
