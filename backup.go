package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/photosync-go/internal/library"
	syncpkg "github.com/tonimelisma/photosync-go/internal/sync"
)

// newBackupCmd builds the backup command: scan the local library, diff it
// against the remote inventory, and upload everything the server is missing.
func newBackupCmd() *cobra.Command {
	var (
		flagDryRun bool
		flagType   string
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload local media the server is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackup(cmd, flagDryRun, flagType)
		},
	}

	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be uploaded without transferring")
	cmd.Flags().StringVar(&flagType, "type", "all", "media type to back up: all, photos, or videos")

	return cmd
}

func runBackup(cmd *cobra.Command, dryRun bool, mediaTypeArg string) error {
	ctx := cmd.Context()

	mediaType, err := parseMediaType(mediaTypeArg)
	if err != nil {
		return err
	}

	env, err := openPass(ctx, resolvedCfg, true)
	if err != nil {
		return err
	}
	defer env.close()

	local, err := env.localSnapshot(ctx, mediaType)
	if err != nil {
		return err
	}

	remote, err := env.remoteSnapshot(ctx)
	if err != nil {
		return err
	}

	// Restored files came from the server in the first place; exclude them so
	// a restore is never followed by a pointless re-upload.
	excluded, err := env.store.AlbumAssetIDs(ctx, env.cfg.RestoredAlbum)
	if err != nil {
		return err
	}

	plan := syncpkg.NewPlanner(env.logger).PlanUpload(local, remote, excluded)

	if dryRun {
		return printPlan(cmd.OutOrStdout(), "upload", assetFilenames(plan))
	}

	limiter, err := syncpkg.NewBandwidthLimiter(env.cfg.BandwidthLimit, env.logger)
	if err != nil {
		return err
	}

	items := make([]syncpkg.WorkItem, len(plan))
	for i, asset := range plan {
		items[i] = syncpkg.UploadItem(asset)
	}

	fns := syncpkg.TransferFuncs{
		Upload: func(ctx context.Context, asset *syncpkg.LocalAsset) (bool, error) {
			return uploadAsset(ctx, env, limiter, asset)
		},
	}

	progress := newProgressPrinter("Uploading")

	report, err := syncpkg.NewOrchestrator(fns, progress.update, env.logger).Execute(ctx, items)
	if err != nil {
		return err
	}

	if err := printReport(cmd.OutOrStdout(), report); err != nil {
		return err
	}

	return runFailure(report)
}

// uploadAsset streams one asset to the server. The open callback reopens the
// file on every attempt so retries never replay a consumed stream; the
// bandwidth limiter paces each attempt's reads.
func uploadAsset(ctx context.Context, env *passEnv, limiter *syncpkg.BandwidthLimiter, asset *syncpkg.LocalAsset) (bool, error) {
	open := func() (io.ReadCloser, error) {
		f, _, err := library.OpenLocator(asset.ReadableURI)
		if err != nil {
			return nil, err
		}

		return &pacedReadCloser{Reader: limiter.WrapReader(ctx, f), closer: f}, nil
	}

	duplicate, err := env.client.UploadFile(ctx, asset.Filename, open)
	if err != nil {
		return false, mapRemoteErr(err)
	}

	return duplicate, nil
}

// pacedReadCloser pairs a rate-limited reader with the underlying file's
// Close.
type pacedReadCloser struct {
	io.Reader
	closer io.Closer
}

func (p *pacedReadCloser) Close() error {
	return p.closer.Close()
}

// printPlan renders a dry-run plan.
func printPlan(w io.Writer, verb string, filenames []string) error {
	if flagJSON {
		return printJSONValue(w, map[string]any{verb: filenames})
	}

	if len(filenames) == 0 {
		fmt.Fprintf(w, "Nothing to %s.\n", verb)
		return nil
	}

	fmt.Fprintf(w, "Would %s %d file(s):\n", verb, len(filenames))

	for _, name := range filenames {
		fmt.Fprintf(w, "  %s\n", name)
	}

	return nil
}

// parseMediaType maps the --type flag value to a snapshot filter.
func parseMediaType(s string) (syncpkg.MediaType, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return "", nil
	case "photo", "photos":
		return syncpkg.MediaTypePhoto, nil
	case "video", "videos":
		return syncpkg.MediaTypeVideo, nil
	default:
		return "", fmt.Errorf("invalid media type %q (want all, photos, or videos)", s)
	}
}

// assetFilenames projects a planned asset list to its filenames.
func assetFilenames(assets []syncpkg.LocalAsset) []string {
	names := make([]string, len(assets))
	for i := range assets {
		names[i] = assets[i].Filename
	}

	return names
}
