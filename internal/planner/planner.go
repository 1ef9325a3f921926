// Package planner implements the FileActionPlanner from spec section
// 4.5: a per-manifest-entry decision among Skip, FullDownload, and
// PatchDownload, generalizing the original Python's check_patch/
// check_files pair into a typed, ordered plan.
package planner

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/sanbornm/ttr-patcher/internal/hasher"
	"github.com/sanbornm/ttr-patcher/internal/manifest"
)

// ActionKind tags a PlannedAction's variant.
type ActionKind int

const (
	Skip ActionKind = iota
	FullDownload
	PatchDownload
)

func (k ActionKind) String() string {
	switch k {
	case Skip:
		return "skip"
	case FullDownload:
		return "full_download"
	case PatchDownload:
		return "patch_download"
	default:
		return "unknown"
	}
}

// Action is one planner-emitted unit of work, keyed by logical
// filename. Fields not relevant to Kind are zero.
type Action struct {
	Filename string
	Kind     ActionKind

	RemotePath    string // FullDownload, PatchDownload
	CompHash      string // FullDownload: full_comp_hash; PatchDownload: comp_patch_hash
	DecompHash    string // FullDownload: target_hash; PatchDownload: patch_hash (the delta itself)
	PostPatchHash string // PatchDownload only: target_hash, the hash after applying the patch
}

// Plan walks manifest in its preserved insertion order and returns at
// most one Action per logical filename, per spec section 4.5's
// algorithm and section 3's "at most one action per logical filename"
// invariant.
func Plan(installDir, platformTag string, m *manifest.Manifest, log zerolog.Logger) []Action {
	actions := make([]Action, 0, len(m.Order))

	for _, filename := range m.Order {
		entry := m.Entries[filename]

		if !entry.AppliesToPlatform(platformTag) {
			continue
		}

		abs := filepath.Join(installDir, filename)
		localHash, err := hashIfExists(abs)
		if err != nil {
			// Unreadable existing file behaves like "doesn't exist" for
			// planning purposes; the executor will surface the real Io
			// failure when it tries to act on it.
			log.Warn().Str("file", filename).Err(err).Msg("could not hash existing file, planning full download")
			localHash = ""
		}

		if localHash == "" {
			if !entry.HasFullDownload() {
				log.Debug().Str("file", filename).Msg("missing full_dl on out-of-spec entry, skipping")
				continue
			}
			actions = append(actions, Action{
				Filename:   filename,
				Kind:       FullDownload,
				RemotePath: entry.FullDL,
				CompHash:   entry.FullCompHash,
				DecompHash: entry.TargetHash,
			})
			continue
		}

		if localHash == entry.TargetHash {
			actions = append(actions, Action{Filename: filename, Kind: Skip})
			continue
		}

		if patch, ok := entry.Patches[localHash]; ok {
			actions = append(actions, Action{
				Filename:      filename,
				Kind:          PatchDownload,
				RemotePath:    patch.PatchPath,
				CompHash:      patch.CompPatchHash,
				DecompHash:    patch.PatchHash,
				PostPatchHash: entry.TargetHash,
			})
			continue
		}

		if !entry.HasFullDownload() {
			continue
		}
		actions = append(actions, Action{
			Filename:   filename,
			Kind:       FullDownload,
			RemotePath: entry.FullDL,
			CompHash:   entry.FullCompHash,
			DecompHash: entry.TargetHash,
		})
	}

	return actions
}

// OnlySkipsOrEmpty reports whether plan has no work to do, the short
// circuit to DONE in the driver's state machine (spec section 4.7).
func OnlySkipsOrEmpty(plan []Action) bool {
	for _, a := range plan {
		if a.Kind != Skip {
			return false
		}
	}
	return true
}

func hashIfExists(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return hasher.HashFile(path)
}
