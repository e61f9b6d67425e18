// Package sync implements the core synchronization pipeline for photosync-go:
// inventory snapshots, upload/download planning, duplicate detection, and the
// transfer orchestrator. Everything in this package is pure with respect to
// I/O — file access, the asset database, and the remote service are supplied
// by callers as snapshots, hash functions, and transfer functions.
package sync

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MediaType classifies a local asset by content kind.
type MediaType string

// Media types as stored in the assets table media_type column.
const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

// LocalAsset is one entry in a local inventory snapshot. CreationTime is Unix
// nanoseconds. ReadableURI is a file locator ("file:///path/to/img.jpg");
// when empty the content cannot be opened on this device, and the asset is
// excluded from hashing and never treated as synchronized or duplicate.
type LocalAsset struct {
	ID           string
	Filename     string
	ContentHash  string // hex digest, empty until hashed
	CreationTime int64
	MediaType    MediaType
	ReadableURI  string
}

// RemoteFile is one entry in a remote inventory snapshot. The planner only
// needs name identity for the remote side.
type RemoteFile struct {
	Filename string `json:"filename"`
}

// WorkKind tags a WorkItem variant.
type WorkKind int

// Work item kinds produced by planning and duplicate detection.
const (
	WorkUpload WorkKind = iota
	WorkDownload
	WorkDeleteDuplicate
)

// String returns the kind name used in logs and reports.
func (k WorkKind) String() string {
	switch k {
	case WorkUpload:
		return "upload"
	case WorkDownload:
		return "download"
	case WorkDeleteDuplicate:
		return "delete-duplicate"
	default:
		return "unknown"
	}
}

// WorkItem is a single planned action. Exactly one of Asset or Remote is set:
// Asset for WorkUpload and WorkDeleteDuplicate, Remote for WorkDownload.
type WorkItem struct {
	Kind   WorkKind
	Asset  *LocalAsset
	Remote *RemoteFile
}

// Filename returns the item's display name for reports and logs.
func (w *WorkItem) Filename() string {
	if w.Asset != nil {
		return w.Asset.Filename
	}

	if w.Remote != nil {
		return w.Remote.Filename
	}

	return ""
}

// UploadItem wraps a local asset as an upload work item.
func UploadItem(asset LocalAsset) WorkItem {
	return WorkItem{Kind: WorkUpload, Asset: &asset}
}

// DownloadItem wraps a remote file as a download work item.
func DownloadItem(file RemoteFile) WorkItem {
	return WorkItem{Kind: WorkDownload, Remote: &file}
}

// DeleteItem wraps a local asset as a duplicate-deletion work item.
func DeleteItem(asset LocalAsset) WorkItem {
	return WorkItem{Kind: WorkDeleteDuplicate, Asset: &asset}
}

// FoldName maps a filename to its comparison form: Unicode NFC normalization
// followed by lowercasing. All filename identity in planning uses this form,
// so "IMG_1.JPG" and "img_1.jpg" are the same file as far as sync is
// concerned.
func FoldName(name string) string {
	return strings.ToLower(norm.NFC.String(name))
}

// TransferFuncs supplies the I/O operations the orchestrator executes. All
// three are black boxes that may fail; the orchestrator never inspects how
// they move bytes. Upload reports whether the server recognized the content
// as a duplicate it already holds.
type TransferFuncs struct {
	Upload   func(ctx context.Context, asset *LocalAsset) (duplicate bool, err error)
	Download func(ctx context.Context, file *RemoteFile) error
	Delete   func(ctx context.Context, assetIDs []string) error
}

// ProgressFunc receives completed/total after every processed item.
// The orchestrator calls it with completed=0 at the start and again at the
// end of a run, and with monotonically non-decreasing values in between.
type ProgressFunc func(completed, total int)

// ItemFailure records one failed work item for the final report.
type ItemFailure struct {
	Filename string
	Err      error
}

// Report aggregates the outcome of one orchestrator run. Counts are
// structured so callers can render their own summaries; the orchestrator
// produces no user-facing text.
type Report struct {
	Uploaded   int
	Downloaded int
	Duplicates int // uploads the server acknowledged as already present
	Failures   []ItemFailure

	Deleted            int  // assets removed by the batch delete call
	DeleteSkippedNoURI int  // delete candidates excluded for missing locators
	DeleteErr          error // batch delete failure, reported wholesale
}

// Failed returns the number of per-item transfer failures.
func (r *Report) Failed() int {
	return len(r.Failures)
}

// TransferTotal returns uploads + downloads + duplicates + failures, which
// must equal the number of transfer items given to Execute.
func (r *Report) TransferTotal() int {
	return r.Uploaded + r.Downloaded + r.Duplicates + len(r.Failures)
}
