package sync

import "log/slog"

// Planner computes upload and download work lists from a pair of inventory
// snapshots. Planning is a pure set difference over folded filenames — no
// content comparison. Two different binary contents sharing a name are
// treated as the same file; that is inherited sync semantics, not a defect,
// and an empty plan means "no filenames are missing", nothing stronger.
type Planner struct {
	logger *slog.Logger
}

// NewPlanner creates a Planner that logs decisions at debug level.
func NewPlanner(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Planner{logger: logger}
}

// PlanUpload returns every local asset whose folded filename is absent from
// the remote snapshot. Assets whose ID appears in excluded are removed before
// the comparison — these are previously restored files that must not round-trip
// back to the server. Output preserves local snapshot order, so unchanged
// snapshots always produce the identical work list.
func (p *Planner) PlanUpload(local []LocalAsset, remote []RemoteFile, excluded map[string]bool) []LocalAsset {
	remoteNames := make(map[string]bool, len(remote))
	for i := range remote {
		remoteNames[FoldName(remote[i].Filename)] = true
	}

	var missing []LocalAsset

	for i := range local {
		if excluded[local[i].ID] {
			continue
		}

		if !remoteNames[FoldName(local[i].Filename)] {
			missing = append(missing, local[i])
		}
	}

	p.logger.Debug("upload plan computed",
		slog.Int("local", len(local)),
		slog.Int("remote", len(remote)),
		slog.Int("excluded", len(excluded)),
		slog.Int("missing", len(missing)),
	)

	return missing
}

// PlanDownload returns every remote file whose folded filename is absent from
// the local snapshot. Output preserves remote snapshot order.
func (p *Planner) PlanDownload(local []LocalAsset, remote []RemoteFile) []RemoteFile {
	localNames := make(map[string]bool, len(local))
	for i := range local {
		localNames[FoldName(local[i].Filename)] = true
	}

	var missing []RemoteFile

	for i := range remote {
		if !localNames[FoldName(remote[i].Filename)] {
			missing = append(missing, remote[i])
		}
	}

	p.logger.Debug("download plan computed",
		slog.Int("local", len(local)),
		slog.Int("remote", len(remote)),
		slog.Int("missing", len(missing)),
	)

	return missing
}
