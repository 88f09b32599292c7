package infra

import (
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"
)

// ChangelogName is the infra changelog path relative to the repo root.
const ChangelogName = ".dayfold/infra-changelog.yaml"

// ChangelogEntry is one appended record of an infra-relevant commit.
type ChangelogEntry struct {
	ID     string    `yaml:"id"`
	Time   time.Time `yaml:"time"`
	Header string    `yaml:"header"`
	Files  []File    `yaml:"files"`
}

var entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)

func newEntryID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// AppendChangelog records an infra-relevant commit as a YAML document
// appended to the changelog under the repo root. Write-only: the engine
// never reads the file back. No-op for non-infra reports.
func AppendChangelog(repoRoot string, report Report, header string) error {
	if !report.HasInfraChanges {
		return nil
	}

	entry := ChangelogEntry{
		ID:     newEntryID(),
		Time:   time.Now().UTC(),
		Header: header,
		Files:  report.Files,
	}

	data, err := yaml.Marshal(entry)
	if err != nil {
		return err
	}

	path := filepath.Join(repoRoot, filepath.FromSlash(ChangelogName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString("---\n"); err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}
