// Package manifest defines the tagged-variant manifest types from
// spec sections 3 and 9 (replacing the teacher's bare
// Version/Sha256 struct and the original Python's untyped dict) and
// the HTTP+parse step that produces one.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/sanbornm/ttr-patcher/internal/httpfetch"
	"github.com/sanbornm/ttr-patcher/internal/patcherr"
)

// PatchDesc describes one entry in a ManifestEntry's patch chain:
// the remote path of a bsdiff-4 delta keyed by the source hash it
// applies to, plus the hashes needed to verify it at each stage.
type PatchDesc struct {
	PatchPath     string `json:"patch_path"`
	PatchHash     string `json:"patch_hash"`     // sha1 of the decompressed patch
	CompPatchHash string `json:"comp_patch_hash"` // sha1 of the compressed patch
}

// Entry is one manifest record, keyed by logical filename in the
// owning Manifest.
type Entry struct {
	Platforms    []string             `json:"platforms"`
	TargetHash   string               `json:"target_hash"`
	FullDL       string               `json:"full_dl"`
	FullCompHash string               `json:"full_comp_hash"`
	Patches      map[string]PatchDesc `json:"patches,omitempty"`
}

// AppliesToPlatform reports whether this entry is eligible on tag.
func (e Entry) AppliesToPlatform(tag string) bool {
	for _, p := range e.Platforms {
		if p == tag {
			return true
		}
	}
	return false
}

// HasFullDownload reports whether the entry carries enough fields for
// a full download. Manifests may omit full_dl for out-of-spec
// entries; spec section 4.5 step 2 says to skip those silently
// instead of failing the whole plan.
func (e Entry) HasFullDownload() bool {
	return e.FullDL != "" && e.FullCompHash != "" && e.TargetHash != ""
}

// Manifest is the logical-filename-keyed mapping from spec section 3.
// Entries is kept alongside a parallel Order slice so that planning
// can walk the manifest in the JSON object's original key order, as
// spec section 4.5 requires ("manifest iteration order — insertion
// order must be preserved") — something a plain Go map cannot do.
type Manifest struct {
	Entries map[string]Entry
	Order   []string
}

// Get returns the entry for filename and whether it exists.
func (m Manifest) Get(filename string) (Entry, bool) {
	e, ok := m.Entries[filename]
	return e, ok
}

// Decode parses a patch manifest JSON object, validating filename
// safety (spec section 9's "filename safety" open question: reject
// `..` components or absolute paths) and preserving key order.
func Decode(r io.Reader) (*Manifest, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, patcherr.Wrap(patcherr.KindDecode, err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, patcherr.New(patcherr.KindDecode, "manifest is not a JSON object")
	}

	m := &Manifest{Entries: make(map[string]Entry)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, patcherr.Wrap(patcherr.KindDecode, err)
		}
		filename, ok := keyTok.(string)
		if !ok {
			return nil, patcherr.New(patcherr.KindDecode, "manifest key is not a string")
		}

		var entry Entry
		if err := dec.Decode(&entry); err != nil {
			return nil, patcherr.WrapFile(patcherr.KindDecode, filename, err)
		}

		if err := ValidateFilename(filename); err != nil {
			return nil, err
		}

		m.Entries[filename] = entry
		m.Order = append(m.Order, filename)
	}
	return m, nil
}

// ValidateFilename rejects manifest keys that would let a malicious
// or buggy remote manifest escape the install directory via `..`
// components or an absolute path — a check the original Python patcher
// never performed (spec section 9).
func ValidateFilename(filename string) error {
	if filename == "" {
		return patcherr.New(patcherr.KindDecode, "empty logical filename in manifest")
	}
	if path.IsAbs(filename) || strings.HasPrefix(filename, `\`) || (len(filename) > 1 && filename[1] == ':') {
		return patcherr.WrapFile(patcherr.KindDecode, filename, fmt.Errorf("absolute path not allowed"))
	}
	clean := path.Clean(filepathToSlash(filename))
	for _, part := range strings.Split(clean, "/") {
		if part == ".." {
			return patcherr.WrapFile(patcherr.KindDecode, filename, fmt.Errorf("path traversal not allowed"))
		}
	}
	return nil
}

func filepathToSlash(s string) string {
	return strings.ReplaceAll(s, `\`, "/")
}

// Fetch retrieves the manifest via fetcher.GetJSON, but reads into a
// byte buffer first so Decode can re-walk the tokens for order
// preservation (GetJSON decodes directly into a value, which a
// Manifest is not suited to be).
func Fetch(ctx context.Context, fetcher httpfetch.Requester, contentHost, manifestPath string) (*Manifest, error) {
	url := BuildManifestURL(contentHost, manifestPath)

	var raw json.RawMessage
	if err := fetcher.GetJSON(ctx, url, &raw); err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(raw))
}

// BuildManifestURL joins contentHost and manifestPath per spec
// section 6: if the path ends in "patchmanifest" with no extension,
// ".txt" is appended (the remote service's actual convention).
func BuildManifestURL(contentHost, manifestPath string) string {
	p := manifestPath
	if strings.HasSuffix(p, "patchmanifest") {
		p += ".txt"
	}
	return strings.TrimRight(contentHost, "/") + "/" + strings.TrimLeft(p, "/")
}
