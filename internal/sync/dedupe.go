package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ErrUnreadableLocator is returned (wrapped) by hash functions when an
// asset's locator exists but is not an openable file — for example an opaque
// platform reference with no filesystem path. Detect counts such assets under
// SkipUnreadableLocator instead of SkipHashFailure.
var ErrUnreadableLocator = errors.New("locator is not a readable file")

// SkipReason explains why an asset was excluded from duplicate grouping.
type SkipReason string

// Skip reasons reported by Detect. An asset that cannot be hashed is counted
// under exactly one of these — it never silently counts as unique or as a
// duplicate.
const (
	SkipMissingURI        SkipReason = "missing-uri"
	SkipUnreadableLocator SkipReason = "unreadable-locator"
	SkipHashFailure       SkipReason = "hash-failure"
)

// HashFunc computes the content hash of the asset behind a locator.
type HashFunc func(ctx context.Context, locator string) (string, error)

// DuplicateGroup is a set of assets sharing one content hash, cardinality ≥ 2.
// Retained is the member kept on device; Discard members become
// delete-duplicate work items.
type DuplicateGroup struct {
	Hash     string
	Retained LocalAsset
	Discard  []LocalAsset
}

// Size returns the group cardinality including the retained member.
func (g *DuplicateGroup) Size() int {
	return len(g.Discard) + 1
}

// DedupeResult is the outcome of one detection pass. The accounting closes:
// Hashed + sum(Skipped) == Candidates.
type DedupeResult struct {
	Groups     []DuplicateGroup
	Candidates int
	Hashed     int
	Skipped    map[SkipReason]int

	// Hashes holds the content hashes computed this pass, keyed by asset ID.
	// Assets that arrived with a cached hash are not repeated here, so the
	// caller can persist exactly the new work.
	Hashes map[string]string
}

// SkippedTotal returns the number of assets excluded from grouping.
func (r *DedupeResult) SkippedTotal() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}

	return total
}

// DeleteItems flattens all discard members into delete-duplicate work items,
// preserving group order and within-group order.
func (r *DedupeResult) DeleteItems() []WorkItem {
	var items []WorkItem

	for i := range r.Groups {
		for _, asset := range r.Groups[i].Discard {
			items = append(items, DeleteItem(asset))
		}
	}

	return items
}

// Detector finds duplicate content within a local inventory snapshot. It
// never compares against remote content — deduplication is local-only.
type Detector struct {
	workers int
	logger  *slog.Logger
}

// NewDetector creates a Detector hashing on up to workers goroutines.
// workers < 1 means sequential hashing.
func NewDetector(workers int, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}

	if workers < 1 {
		workers = 1
	}

	return &Detector{workers: workers, logger: logger}
}

// Detect hashes every asset with a usable locator, groups by content hash,
// and returns groups of two or more. Assets carrying a cached ContentHash
// are taken at their word and skip hashing. The retained member of each
// group is the one with the minimum CreationTime; ties keep the earliest
// asset in snapshot order. Hashing runs on a bounded pool, but results land
// in a slice indexed by snapshot position, so grouping order never depends
// on scheduling.
func (d *Detector) Detect(ctx context.Context, assets []LocalAsset, hashFn HashFunc) (*DedupeResult, error) {
	result := &DedupeResult{
		Candidates: len(assets),
		Skipped:    make(map[SkipReason]int),
		Hashes:     make(map[string]string),
	}

	hashes := make([]string, len(assets))
	skips := make([]SkipReason, len(assets))
	cached := make([]bool, len(assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i := range assets {
		if assets[i].ContentHash != "" {
			hashes[i] = assets[i].ContentHash
			cached[i] = true

			continue
		}

		if assets[i].ReadableURI == "" {
			skips[i] = SkipMissingURI
			continue
		}

		g.Go(func() error {
			hash, err := hashFn(gctx, assets[i].ReadableURI)
			if err != nil {
				if gctx.Err() != nil {
					return fmt.Errorf("sync: hashing canceled: %w", gctx.Err())
				}

				reason := SkipHashFailure
				if errors.Is(err, ErrUnreadableLocator) {
					reason = SkipUnreadableLocator
				}

				skips[i] = reason

				d.logger.Warn("asset excluded from dedupe",
					slog.String("filename", assets[i].Filename),
					slog.String("reason", string(reason)),
					slog.String("error", err.Error()),
				)

				return nil
			}

			hashes[i] = hash

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Group in snapshot order so output is deterministic.
	var hashOrder []string

	groups := make(map[string][]LocalAsset)

	for i := range assets {
		if skips[i] != "" {
			result.Skipped[skips[i]]++
			continue
		}

		result.Hashed++

		if !cached[i] {
			result.Hashes[assets[i].ID] = hashes[i]
		}

		asset := assets[i]
		asset.ContentHash = hashes[i]

		if _, seen := groups[hashes[i]]; !seen {
			hashOrder = append(hashOrder, hashes[i])
		}

		groups[hashes[i]] = append(groups[hashes[i]], asset)
	}

	for _, hash := range hashOrder {
		members := groups[hash]
		if len(members) < 2 {
			continue
		}

		result.Groups = append(result.Groups, buildGroup(hash, members))
	}

	d.logger.Info("duplicate detection complete",
		slog.Int("candidates", result.Candidates),
		slog.Int("hashed", result.Hashed),
		slog.Int("skipped", result.SkippedTotal()),
		slog.Int("groups", len(result.Groups)),
	)

	return result, nil
}

// buildGroup selects the retained member (minimum CreationTime, first in
// snapshot order on ties) and collects the rest as discard candidates in
// their original order.
func buildGroup(hash string, members []LocalAsset) DuplicateGroup {
	retained := 0
	for i := 1; i < len(members); i++ {
		if members[i].CreationTime < members[retained].CreationTime {
			retained = i
		}
	}

	group := DuplicateGroup{Hash: hash, Retained: members[retained]}

	for i := range members {
		if i != retained {
			group.Discard = append(group.Discard, members[i])
		}
	}

	return group
}
