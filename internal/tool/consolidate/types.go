package consolidate

import (
	"time"

	"toolhost/internal/config"
)

// Version records one archival event: a superseded source file folded into
// the canonical file that remains authoritative.
type Version struct {
	// Version is the label within the canonical file's ledger, "v1", "v2", …
	// Labels never collide within one ledger.
	Version string `json:"version"`

	// SourcePath is the workspace-relative path of the superseded file.
	SourcePath string `json:"source_path"`

	Timestamp time.Time `json:"timestamp"`

	// ContentHash is the SHA-256 of the source file's bytes at merge time.
	ContentHash string `json:"content_hash"`

	Reason string `json:"reason"`

	// PreservedCapabilities are declarations of the canonical file.
	PreservedCapabilities []string `json:"preserved_capabilities"`

	// ArchivedCapabilities are declarations of the superseded source.
	ArchivedCapabilities []string `json:"archived_capabilities"`

	// MergedBy identifies the actor that performed the merge.
	MergedBy string `json:"merged_by"`
}

// Ledger is the ordered consolidation history of one canonical file.
type Ledger struct {
	CanonicalPath string    `json:"canonical_path"`
	Versions      []Version `json:"versions"`
}

// IndexEntry summarizes one canonical file in the cross-file index.
type IndexEntry struct {
	VersionCount     int       `json:"version_count"`
	LastConsolidated time.Time `json:"last_consolidated"`
	LedgerPath       string    `json:"ledger_path"`
}

// Index maps canonical workspace-relative paths to their summaries.
type Index map[string]IndexEntry

// ConsolidateRequest folds a superseded source file into a canonical file.
type ConsolidateRequest struct {
	CanonicalPath string `json:"canonical_path" mapstructure:"canonical_path"`
	SourcePath    string `json:"source_path" mapstructure:"source_path"`
	Reason        string `json:"consolidation_reason" mapstructure:"consolidation_reason"`
}

func (r *ConsolidateRequest) Validate(cfg *config.Config) error {
	if r.CanonicalPath == "" || r.SourcePath == "" {
		return ErrPathRequired
	}
	if r.CanonicalPath == r.SourcePath {
		return ErrSamePath
	}
	return nil
}

type ConsolidateResponse struct {
	ArchivePath string `json:"archive_path"`
	ReportPath  string `json:"report_path"`
	Version     string `json:"version"`
}
