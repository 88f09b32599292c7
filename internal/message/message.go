// Package message locates and validates the commit message file.
//
// The message file is owned by the editing agent: the engine only reads
// it, decides commit-readiness, and blanks it after a successful commit
// or push. An invalid or stale message is not an error, it just means
// "skip this cycle."
package message

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dayfold/dayfold/internal/config"
)

// DefaultName is the canonical message file at the repository root.
const DefaultName = "COMMIT_MESSAGE.md"

// SessionDir holds per-session message files, newest one wins.
const SessionDir = ".dayfold/messages"

// legacyPaths are older message file locations still honored as fallbacks.
var legacyPaths = []string{
	".dayfold/COMMIT_MESSAGE.md",
	"docs/COMMIT_MESSAGE.md",
}

// Status is the result of a readiness check.
type Status struct {
	Ready  bool
	Header string
	Reason string // set when not ready
}

// Gate decides whether the message file is ready to commit.
type Gate struct {
	cfg      *config.Config
	repoRoot string
}

// NewGate builds a Gate rooted at the repository working tree.
func NewGate(cfg *config.Config, repoRoot string) *Gate {
	return &Gate{cfg: cfg, repoRoot: repoRoot}
}

// Locate resolves the active message file path. Resolution order: the
// explicitly configured path (returned even if the file does not exist
// yet, so a file that appears later is picked up), then the most recently
// modified session file, then the canonical root file, then legacy
// fallbacks. Falls back to the canonical path when nothing exists.
func (g *Gate) Locate() string {
	if g.cfg.MessageFile != "" {
		if filepath.IsAbs(g.cfg.MessageFile) {
			return g.cfg.MessageFile
		}
		return filepath.Join(g.repoRoot, g.cfg.MessageFile)
	}

	if p, ok := g.newestSessionFile(); ok {
		return p
	}

	canonical := filepath.Join(g.repoRoot, DefaultName)
	if fileExists(canonical) {
		return canonical
	}

	for _, rel := range legacyPaths {
		p := filepath.Join(g.repoRoot, rel)
		if fileExists(p) {
			return p
		}
	}

	return canonical
}

// IsMessagePath reports whether path refers to a location the gate treats
// as a message file. The watcher uses this to split events into message
// and non-message buckets.
func (g *Gate) IsMessagePath(path string) bool {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(g.repoRoot, path)
	}

	if g.cfg.MessageFile != "" {
		return abs == g.Locate()
	}
	if abs == filepath.Join(g.repoRoot, DefaultName) {
		return true
	}
	if dir := filepath.Dir(abs); dir == filepath.Join(g.repoRoot, filepath.FromSlash(SessionDir)) {
		return strings.HasSuffix(abs, ".msg")
	}
	for _, rel := range legacyPaths {
		if abs == filepath.Join(g.repoRoot, filepath.FromSlash(rel)) {
			return true
		}
	}
	return false
}

// Check reads the message file and applies the readiness predicate: a
// non-empty header matching the configured pattern, at least the minimum
// length, and (when require_message_after_change is on) modified no
// earlier than the last non-message file change.
func (g *Gate) Check(path string, lastNonMsgChange time.Time) Status {
	info, err := os.Stat(path)
	if err != nil {
		return Status{Reason: "message file not found"}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Status{Reason: "message file unreadable"}
	}

	content := strings.TrimSpace(string(raw))
	if content == "" {
		return Status{Reason: "message file empty"}
	}

	header := Header(content)
	if len(header) < g.cfg.MinHeaderBytes {
		return Status{Header: header, Reason: "header below minimum length"}
	}
	if !g.cfg.HeaderRegexp().MatchString(header) {
		return Status{Header: header, Reason: "header does not match pattern"}
	}

	if g.cfg.RequireMessageAfterChange && !lastNonMsgChange.IsZero() &&
		info.ModTime().Before(lastNonMsgChange) {
		return Status{Header: header, Reason: "message predates last file change"}
	}

	return Status{Ready: true, Header: header}
}

// Read returns the full trimmed message content.
func (g *Gate) Read(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// Clear truncates the message file. A missing file is fine.
func Clear(path string) error {
	if !fileExists(path) {
		return nil
	}
	return os.WriteFile(path, nil, 0o644)
}

// Header returns the first line of a message.
func Header(content string) string {
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		return strings.TrimSpace(content[:idx])
	}
	return strings.TrimSpace(content)
}

func (g *Gate) newestSessionFile() (string, bool) {
	dir := filepath.Join(g.repoRoot, filepath.FromSlash(SessionDir))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".msg") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, e.Name())
			newestMod = info.ModTime()
		}
	}
	return newest, newest != ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
