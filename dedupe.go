package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/photosync-go/internal/library"
	syncpkg "github.com/tonimelisma/photosync-go/internal/sync"
)

// newDedupeCmd builds the dedupe command: hash the local library, group
// identical content, and delete every copy except the oldest in each group.
func newDedupeCmd() *cobra.Command {
	var (
		flagYes    bool
		flagDryRun bool
	)

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Find and delete duplicate local files",
		Long:  "Hashes the local library, groups files with identical content, and deletes every copy except the oldest in each group. Deletion requires confirmation unless --yes is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDedupe(cmd, flagYes, flagDryRun)
		},
	}

	cmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "delete without asking for confirmation")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show duplicate groups without deleting")

	return cmd
}

func runDedupe(cmd *cobra.Command, yes, dryRun bool) error {
	ctx := cmd.Context()

	// Duplicate detection is entirely local; no remote connection needed.
	env, err := openPass(ctx, resolvedCfg, false)
	if err != nil {
		return err
	}
	defer env.close()

	local, err := env.localSnapshot(ctx, "")
	if err != nil {
		return err
	}

	detector := syncpkg.NewDetector(env.cfg.HashWorkers, env.logger)

	result, err := detector.Detect(ctx, local, library.HashContent)
	if err != nil {
		return err
	}

	// Cache the fresh hashes so the next pass only hashes new files.
	if err := env.store.SaveContentHashes(ctx, result.Hashes); err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(result.Groups) == 0 {
		if flagJSON {
			return printJSONValue(out, dedupeJSON(result))
		}

		fmt.Fprintln(out, "No duplicates found.")

		return nil
	}

	if flagJSON {
		if err := printJSONValue(out, dedupeJSON(result)); err != nil {
			return err
		}
	} else {
		printGroups(out, result)
	}

	if dryRun {
		return nil
	}

	items := result.DeleteItems()

	if !yes {
		ok, err := confirm(cmd, fmt.Sprintf("Delete %d file(s)? [y/N] ", len(items)))
		if err != nil {
			return err
		}

		if !ok {
			return errAborted
		}
	}

	fns := syncpkg.TransferFuncs{
		Delete: env.store.DeleteAssets,
	}

	progress := newProgressPrinter("Deleting")

	report, err := syncpkg.NewOrchestrator(fns, progress.update, env.logger).Execute(ctx, items)
	if err != nil {
		return err
	}

	if err := printReport(out, report); err != nil {
		return err
	}

	return runFailure(report)
}

// printGroups renders duplicate groups for review before deletion.
func printGroups(w io.Writer, result *syncpkg.DedupeResult) {
	for _, group := range result.Groups {
		fmt.Fprintf(w, "%s (keeping %s):\n", shortHash(group.Hash), group.Retained.Filename)

		for _, asset := range group.Discard {
			fmt.Fprintf(w, "  delete %s\n", asset.Filename)
		}
	}

	fmt.Fprintf(w, "%d group(s), %d file(s) to delete (%d hashed, %d skipped)\n",
		len(result.Groups), len(result.DeleteItems()), result.Hashed, result.SkippedTotal())
}

// shortHash abbreviates a content hash for display.
func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}

	return hash
}

// dedupeGroupJSON is one duplicate group in --json output.
type dedupeGroupJSON struct {
	Hash     string   `json:"hash"`
	Retained string   `json:"retained"`
	Delete   []string `json:"delete"`
}

// dedupeResultJSON is the machine-readable detection outcome.
type dedupeResultJSON struct {
	Groups     []dedupeGroupJSON `json:"groups"`
	Candidates int               `json:"candidates"`
	Hashed     int               `json:"hashed"`
	Skipped    int               `json:"skipped"`
}

func dedupeJSON(result *syncpkg.DedupeResult) dedupeResultJSON {
	out := dedupeResultJSON{
		Groups:     make([]dedupeGroupJSON, 0, len(result.Groups)),
		Candidates: result.Candidates,
		Hashed:     result.Hashed,
		Skipped:    result.SkippedTotal(),
	}

	for _, group := range result.Groups {
		g := dedupeGroupJSON{
			Hash:     group.Hash,
			Retained: group.Retained.Filename,
		}

		for _, asset := range group.Discard {
			g.Delete = append(g.Delete, asset.Filename)
		}

		out.Groups = append(out.Groups, g)
	}

	return out
}

// confirm asks a yes/no question on the command's streams and reports the
// answer. Anything other than "y"/"yes" declines.
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	answer, err := promptLine(cmd, prompt)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
