// Package consolidate archives superseded file versions. When a duplicate
// implementation (the source) is folded into the file that stays
// authoritative (the canonical file), the manager archives the canonical
// content, records which declarations were preserved versus superseded, and
// maintains a per-file version ledger plus a cross-file index on disk.
package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"toolhost/internal/config"
	"toolhost/internal/tool/capability"
)

// ArtifactDir is the workspace-relative directory holding all consolidation
// state: archive copies, version ledgers, the index, and the report.
const ArtifactDir = ".toolhost/consolidation"

// fileSystem defines the minimal filesystem operations needed here.
type fileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFileAtomic(path string, content []byte, perm os.FileMode) error
	EnsureDirs(path string) error
}

// pathResolver defines workspace path resolution operations.
type pathResolver interface {
	Resolve(path string) (string, error)
	Rel(abs string) (string, error)
	Root() string
}

// checksummer computes content hashes.
type checksummer interface {
	Compute(data []byte) string
}

// Manager performs consolidation merges. Ledger updates for one canonical
// file are serialized through a keyed mutex so concurrent consolidations of
// the same file cannot lose versions; the cross-file index has its own
// mutex because merges of different canonical files share it.
type Manager struct {
	fileOps      fileSystem
	pathResolver pathResolver
	checksums    checksummer
	config       *config.Config
	actor        string

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// indexMu guards the index.json read-modify-write across all
	// canonical files.
	indexMu sync.Mutex

	now func() time.Time
}

// NewManager creates a Manager with injected dependencies. actor identifies
// this service instance in ledger records.
func NewManager(fileOps fileSystem, resolver pathResolver, checksums checksummer, cfg *config.Config, actor string) *Manager {
	return &Manager{
		fileOps:      fileOps,
		pathResolver: resolver,
		checksums:    checksums,
		config:       cfg,
		actor:        actor,
		locks:        make(map[string]*sync.Mutex),
		now:          time.Now,
	}
}

func (m *Manager) lockFor(canonicalRel string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[canonicalRel]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[canonicalRel] = lock
	}
	return lock
}

// Run folds the source file into the canonical file's version history.
func (m *Manager) Run(ctx context.Context, req *ConsolidateRequest) (*ConsolidateResponse, error) {
	if err := req.Validate(m.config); err != nil {
		return nil, err
	}

	canonicalAbs, canonicalRel, err := m.resolveExisting(req.CanonicalPath)
	if err != nil {
		return nil, err
	}
	sourceAbs, sourceRel, err := m.resolveExisting(req.SourcePath)
	if err != nil {
		return nil, err
	}

	lock := m.lockFor(canonicalRel)
	lock.Lock()
	defer lock.Unlock()

	canonicalContent, err := m.fileOps.ReadFile(canonicalAbs)
	if err != nil {
		return nil, &ArchiveError{Path: canonicalAbs, Cause: err}
	}
	sourceContent, err := m.fileOps.ReadFile(sourceAbs)
	if err != nil {
		return nil, &ArchiveError{Path: sourceAbs, Cause: err}
	}

	preserved := extractNames(canonicalAbs, canonicalContent)
	archived := extractNames(sourceAbs, sourceContent)

	ledger, err := m.loadLedger(canonicalRel)
	if err != nil {
		return nil, err
	}

	label := fmt.Sprintf("v%d", len(ledger.Versions)+1)
	for _, v := range ledger.Versions {
		if v.Version == label {
			return nil, &LedgerError{
				Path:  m.ledgerPath(canonicalRel),
				Cause: fmt.Errorf("version label %q already present", label),
			}
		}
	}

	archiveAbs := filepath.Join(m.artifactRoot(), "archive", canonicalRel+"."+label)
	if err := m.fileOps.EnsureDirs(filepath.Dir(archiveAbs)); err != nil {
		return nil, &ArchiveError{Path: archiveAbs, Cause: err}
	}
	if err := m.fileOps.WriteFileAtomic(archiveAbs, canonicalContent, 0o644); err != nil {
		return nil, &ArchiveError{Path: archiveAbs, Cause: err}
	}

	version := Version{
		Version:               label,
		SourcePath:            sourceRel,
		Timestamp:             m.now().UTC(),
		ContentHash:           m.checksums.Compute(sourceContent),
		Reason:                req.Reason,
		PreservedCapabilities: preserved,
		ArchivedCapabilities:  archived,
		MergedBy:              m.actor,
	}
	ledger.Versions = append(ledger.Versions, version)

	if err := m.saveLedger(canonicalRel, ledger); err != nil {
		return nil, err
	}

	reportAbs := filepath.Join(m.artifactRoot(), "report.md")
	report, err := renderReport(canonicalRel, sourceRel, version, string(canonicalContent), string(sourceContent))
	if err != nil {
		return nil, &ArchiveError{Path: reportAbs, Cause: err}
	}
	if err := m.fileOps.WriteFileAtomic(reportAbs, []byte(report), 0o644); err != nil {
		return nil, &ArchiveError{Path: reportAbs, Cause: err}
	}

	if err := m.updateIndex(canonicalRel, len(ledger.Versions), version.Timestamp); err != nil {
		return nil, err
	}

	archiveRel, err := m.pathResolver.Rel(archiveAbs)
	if err != nil {
		return nil, &ArchiveError{Path: archiveAbs, Cause: err}
	}
	reportRel, err := m.pathResolver.Rel(reportAbs)
	if err != nil {
		return nil, &ArchiveError{Path: reportAbs, Cause: err}
	}

	return &ConsolidateResponse{
		ArchivePath: archiveRel,
		ReportPath:  reportRel,
		Version:     label,
	}, nil
}

// resolveExisting resolves a request path and requires a regular file.
func (m *Manager) resolveExisting(path string) (abs string, rel string, err error) {
	abs, err = m.pathResolver.Resolve(path)
	if err != nil {
		return "", "", err
	}
	rel, err = m.pathResolver.Rel(abs)
	if err != nil {
		return "", "", err
	}
	info, err := m.fileOps.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("%w: %s", ErrFileMissing, rel)
		}
		return "", "", &ArchiveError{Path: abs, Cause: err}
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("%w: %s", ErrIsDirectory, rel)
	}
	return abs, rel, nil
}

func (m *Manager) artifactRoot() string {
	return filepath.Join(m.pathResolver.Root(), filepath.FromSlash(ArtifactDir))
}

func (m *Manager) ledgerPath(canonicalRel string) string {
	return filepath.Join(m.artifactRoot(), "ledgers", sanitizeRel(canonicalRel)+".json")
}

func (m *Manager) indexPath() string {
	return filepath.Join(m.artifactRoot(), "index.json")
}

// sanitizeRel flattens a relative path into a single filename component.
func sanitizeRel(rel string) string {
	rel = filepath.ToSlash(rel)
	return strings.ReplaceAll(rel, "/", "__")
}

func (m *Manager) loadLedger(canonicalRel string) (*Ledger, error) {
	path := m.ledgerPath(canonicalRel)
	data, err := m.fileOps.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Ledger{CanonicalPath: canonicalRel}, nil
		}
		return nil, &LedgerError{Path: path, Cause: err}
	}
	var ledger Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, &LedgerError{Path: path, Cause: err}
	}
	return &ledger, nil
}

func (m *Manager) saveLedger(canonicalRel string, ledger *Ledger) error {
	path := m.ledgerPath(canonicalRel)
	if err := m.fileOps.EnsureDirs(filepath.Dir(path)); err != nil {
		return &LedgerError{Path: path, Cause: err}
	}
	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return &LedgerError{Path: path, Cause: err}
	}
	if err := m.fileOps.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return &LedgerError{Path: path, Cause: err}
	}
	return nil
}

func (m *Manager) loadIndex() (Index, error) {
	path := m.indexPath()
	data, err := m.fileOps.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Index{}, nil
		}
		return nil, &IndexError{Path: path, Cause: err}
	}
	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, &IndexError{Path: path, Cause: err}
	}
	return index, nil
}

func (m *Manager) updateIndex(canonicalRel string, versionCount int, last time.Time) error {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	index, err := m.loadIndex()
	if err != nil {
		return err
	}
	ledgerRel, err := m.pathResolver.Rel(m.ledgerPath(canonicalRel))
	if err != nil {
		return &IndexError{Path: m.indexPath(), Cause: err}
	}
	index[filepath.ToSlash(canonicalRel)] = IndexEntry{
		VersionCount:     versionCount,
		LastConsolidated: last,
		LedgerPath:       ledgerRel,
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return &IndexError{Path: m.indexPath(), Cause: err}
	}
	if err := m.fileOps.WriteFileAtomic(m.indexPath(), append(data, '\n'), 0o644); err != nil {
		return &IndexError{Path: m.indexPath(), Cause: err}
	}
	return nil
}

// extractNames returns declaration names from source, tolerating parse
// failures: an unparseable file still consolidates, just with an empty
// capability list.
func extractNames(abs string, content []byte) []string {
	items, err := capability.Extract(filepath.Ext(abs), string(content))
	if err != nil {
		return []string{}
	}
	names := capability.Names(items)
	if names == nil {
		return []string{}
	}
	return names
}
