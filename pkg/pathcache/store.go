// Package pathcache persists structural paths to previously resolved
// elements, keyed by semantic slot and root fingerprint. A cached path
// is only ever a hint: structural re-resolution is necessary but never
// sufficient, and every hit must still pass the caller's semantic
// validation before it is trusted.
package pathcache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/openclaw/kmsg/pkg/ax"
	"github.com/openclaw/kmsg/pkg/core"
	"github.com/openclaw/kmsg/pkg/logger"
)

// SchemaVersion is the cache document schema. Bump on any incompatible
// change; old documents are discarded wholesale.
const SchemaVersion = 1

// DefaultTTL is how long an entry stays trustworthy. The target app
// updates often enough that week-old paths are usually wrong.
const DefaultTTL = 7 * 24 * time.Hour

// indexDriftTolerance bounds how far a role+title fallback match may
// sit from the recorded child index.
const indexDriftTolerance = 2

// Slot is the semantic role a cached element fulfills, independent of
// structural position.
type Slot string

// The closed set of cacheable slots.
const (
	SlotSearchField  Slot = "searchField"
	SlotMessageInput Slot = "messageInput"
)

// Step is one hop of a recorded path, relative to the previous element.
type Step struct {
	ChildIndex int    `json:"childIndex"`
	Role       string `json:"role,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Title      string `json:"title,omitempty"`
}

// Path is an ordered list of steps from a recorded root down to the
// remembered element.
type Path struct {
	Steps []Step `json:"steps"`
}

// Entry is one cached resolution.
type Entry struct {
	Slot            Slot      `json:"slot"`
	RootFingerprint string    `json:"rootFingerprint"`
	Path            Path      `json:"path"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Document is the whole-file cache state.
type Document struct {
	SchemaVersion  int       `json:"schemaVersion"`
	AppFingerprint string    `json:"appFingerprint"`
	Entries        []Entry   `json:"entries"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Options tunes a store. Zero values select production defaults.
type Options struct {
	TTL time.Duration
	Now func() time.Time
}

// Store is a file-backed path cache. It is read lazily and flushed
// synchronously on every mutation. Concurrent invocations racing on
// the file are unsupported; the last writer wins.
type Store struct {
	path           string
	appFingerprint string
	ttl            time.Duration
	now            func() time.Time
	doc            *Document
}

// DefaultPath returns the fixed per-user cache location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "kmsg-axpaths.json")
	}
	return filepath.Join(home, ".kmsg", "axpaths.json")
}

// NewStore creates a store bound to the given file and the currently
// installed application fingerprint.
func NewStore(path, appFingerprint string, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		path:           path,
		appFingerprint: appFingerprint,
		ttl:            opts.TTL,
		now:            opts.Now,
	}
}

// RootFingerprint derives the "same kind of root" key: role, identifier
// and a coarse size bucket, so trivial window moves and small resizes
// do not churn the cache.
func RootFingerprint(root ax.Element) string {
	wb, hb := -1, -1
	if frame, ok := root.Frame(); ok {
		wb = int(frame.Width) / 256
		hb = int(frame.Height) / 256
	}
	return fmt.Sprintf("%s|%s|%dx%d", root.Role(), root.Identifier(), wb, hb)
}

func (s *Store) emptyDoc() *Document {
	return &Document{
		SchemaVersion:  SchemaVersion,
		AppFingerprint: s.appFingerprint,
		UpdatedAt:      s.now(),
	}
}

// load reads the document on first use. A missing file yields an empty
// document; a mismatched or unreadable one is replaced by an empty
// document immediately, clearing the store on disk.
func (s *Store) load() *Document {
	if s.doc != nil {
		return s.doc
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("pathcache: read %s: %v", s.path, err)
		}
		s.doc = s.emptyDoc()
		return s.doc
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("pathcache: corrupt document, resetting: %v", err)
		s.doc = s.emptyDoc()
		s.persist()
		return s.doc
	}

	if doc.SchemaVersion != SchemaVersion || doc.AppFingerprint != s.appFingerprint {
		logger.Trace("pathcache: schema/fingerprint mismatch (have %d/%q, want %d/%q), clearing store",
			doc.SchemaVersion, doc.AppFingerprint, SchemaVersion, s.appFingerprint)
		s.doc = s.emptyDoc()
		s.persist()
		return s.doc
	}

	s.doc = &doc
	return s.doc
}

// persist flushes the whole document. Synchronous on every mutation:
// write amplification is accepted in exchange for crash safety.
func (s *Store) persist() error {
	doc := s.doc
	if doc == nil {
		return nil
	}
	doc.UpdatedAt = s.now()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		logger.Error("pathcache: mkdir: %v", err)
		return core.ErrCacheIO.WithCause(err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return core.ErrCacheIO.WithCause(err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		logger.Error("pathcache: write %s: %v", s.path, err)
		return core.ErrCacheIO.WithCause(err)
	}
	return nil
}

func (s *Store) findEntry(slot Slot, rootFP string) int {
	doc := s.load()
	for i, e := range doc.Entries {
		if e.Slot == slot && e.RootFingerprint == rootFP {
			return i
		}
	}
	return -1
}

func (s *Store) evict(idx int) {
	doc := s.load()
	doc.Entries = append(doc.Entries[:idx], doc.Entries[idx+1:]...)
	s.persist()
}

// Resolve re-walks the cached path for (slot, fingerprint(root)). It
// returns nil when no trustworthy entry exists. A path that resolves
// structurally but fails the semantic validate predicate is a miss and
// purges that one entry.
func (s *Store) Resolve(slot Slot, root ax.Element, validate func(ax.Element) bool) ax.Element {
	rootFP := RootFingerprint(root)
	idx := s.findEntry(slot, rootFP)
	if idx < 0 {
		return nil
	}

	entry := s.load().Entries[idx]
	if s.now().Sub(entry.UpdatedAt) > s.ttl {
		logger.Trace("pathcache: %s entry expired (age %v)", slot, s.now().Sub(entry.UpdatedAt))
		s.evict(idx)
		return nil
	}

	el := walkPath(root, entry.Path)
	if el == nil {
		logger.Trace("pathcache: %s path stale, evicting", slot)
		s.evict(idx)
		return nil
	}

	if validate != nil && !validate(el) {
		logger.Trace("pathcache: %s resolved structurally but failed semantic validation, evicting", slot)
		s.evict(idx)
		return nil
	}

	return el
}

// walkPath follows steps from root. Each step matches by recorded child
// index first, then by identifier, then by role+title within the drift
// tolerance.
func walkPath(root ax.Element, path Path) ax.Element {
	cur := root
	for _, step := range path.Steps {
		children := cur.Children()
		next := matchStep(children, step)
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func matchStep(children []ax.Element, step Step) ax.Element {
	// Recorded index, verified against the recorded role when one was
	// captured.
	if step.ChildIndex >= 0 && step.ChildIndex < len(children) {
		child := children[step.ChildIndex]
		if step.Role == "" || child.Role() == step.Role {
			if step.Identifier == "" || child.Identifier() == step.Identifier {
				return child
			}
		}
	}

	// Identifier is the strongest structural evidence the tree offers.
	if step.Identifier != "" {
		for _, child := range children {
			if child.Identifier() == step.Identifier {
				return child
			}
		}
	}

	// Role+title, tolerating minor index drift.
	if step.Role != "" {
		var best ax.Element
		bestDrift := indexDriftTolerance + 1
		for i, child := range children {
			if child.Role() != step.Role {
				continue
			}
			if step.Title != "" && child.Title() != step.Title {
				continue
			}
			drift := i - step.ChildIndex
			if drift < 0 {
				drift = -drift
			}
			if drift < bestDrift {
				best = child
				bestDrift = drift
			}
		}
		if best != nil && bestDrift <= indexDriftTolerance {
			return best
		}
	}

	return nil
}

// Remember records element's path relative to root and persists
// immediately. Any prior entry for the same (slot, root fingerprint)
// pair is replaced.
func (s *Store) Remember(slot Slot, root, element ax.Element) error {
	path, err := buildPath(root, element)
	if err != nil {
		return err
	}

	rootFP := RootFingerprint(root)
	doc := s.load()
	if idx := s.findEntry(slot, rootFP); idx >= 0 {
		doc.Entries = append(doc.Entries[:idx], doc.Entries[idx+1:]...)
	}
	doc.Entries = append(doc.Entries, Entry{
		Slot:            slot,
		RootFingerprint: rootFP,
		Path:            path,
		UpdatedAt:       s.now(),
	})
	return s.persist()
}

// buildPath walks element-to-root via parent links, recording at each
// hop the child's current index plus its role/identifier/title
// fingerprint.
func buildPath(root, element ax.Element) (Path, error) {
	var reversed []Step
	cur := element
	for !ax.Same(cur, root) {
		parent := cur.Parent()
		if parent == nil {
			return Path{}, core.ErrPathStale.WithMessage("element is not a descendant of the recorded root")
		}
		reversed = append(reversed, Step{
			ChildIndex: ax.IndexInParent(cur),
			Role:       cur.Role(),
			Identifier: cur.Identifier(),
			Title:      cur.Title(),
		})
		cur = parent
		if len(reversed) > 256 {
			return Path{}, core.ErrPathStale.WithMessage("parent chain does not terminate at the root")
		}
	}

	steps := make([]Step, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		steps = append(steps, reversed[i])
	}
	return Path{Steps: steps}, nil
}

// Clear drops every entry and persists the empty document.
func (s *Store) Clear() error {
	s.doc = s.emptyDoc()
	return s.persist()
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	return len(s.load().Entries)
}

// Export writes the whole current document to w.
func (s *Store) Export(w io.Writer) error {
	doc := s.load()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return core.ErrCacheIO.WithCause(err)
	}
	if _, err := w.Write(data); err != nil {
		return core.ErrCacheIO.WithCause(err)
	}
	return nil
}

// Import replaces the store with the document read from r. A document
// with a mismatched schema version or application fingerprint is
// rejected without mutating the existing store.
func (s *Store) Import(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.ErrCacheIO.WithCause(err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.ErrCacheMismatch.WithCause(err)
	}
	if doc.SchemaVersion != SchemaVersion {
		return core.ErrCacheMismatch.WithDetails(map[string]interface{}{
			"schemaVersion": doc.SchemaVersion,
			"want":          SchemaVersion,
		})
	}
	if doc.AppFingerprint != s.appFingerprint {
		return core.ErrCacheMismatch.WithDetails(map[string]interface{}{
			"appFingerprint": doc.AppFingerprint,
			"want":           s.appFingerprint,
		})
	}

	s.doc = &doc
	return s.persist()
}
