// Package infra classifies changed files for infrastructure relevance and
// rewrites commit messages to carry an infra: classification.
package infra

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Category groups infra-relevant files by concern.
type Category string

const (
	CategoryDependencies Category = "dependencies"
	CategoryCI           Category = "ci"
	CategoryBuild        Category = "build"
	CategoryConfig       Category = "config"
)

// File is one changed file tagged with its category.
type File struct {
	Path     string   `yaml:"path"`
	Category Category `yaml:"category"`
}

// Report is the per-cycle classification of a diff file list. Derived and
// ephemeral: computed per commit cycle, never persisted as engine state.
type Report struct {
	HasInfraChanges bool
	Categories      map[Category]bool
	Files           []File
}

var dependencyFiles = map[string]bool{
	"package.json":      true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"go.mod":            true,
	"go.sum":            true,
	"requirements.txt":  true,
	"Cargo.toml":        true,
	"Cargo.lock":        true,
	"Gemfile":           true,
	"Gemfile.lock":      true,
}

// Classify tags each changed file and reports whether any of them is
// infra-relevant. Paths are slash-separated and repo-relative.
func Classify(files []string) Report {
	report := Report{Categories: map[Category]bool{}}

	for _, f := range files {
		cat, ok := classifyOne(f)
		if !ok {
			continue
		}
		report.HasInfraChanges = true
		report.Categories[cat] = true
		report.Files = append(report.Files, File{Path: f, Category: cat})
	}

	sort.Slice(report.Files, func(i, j int) bool {
		return report.Files[i].Path < report.Files[j].Path
	})
	return report
}

func classifyOne(file string) (Category, bool) {
	base := path.Base(file)

	switch {
	case dependencyFiles[base]:
		return CategoryDependencies, true
	case strings.HasPrefix(file, ".github/workflows/"),
		base == "Dockerfile",
		strings.HasPrefix(base, "Dockerfile."),
		base == "docker-compose.yml", base == "docker-compose.yaml",
		strings.HasPrefix(file, ".gitlab-ci"):
		return CategoryCI, true
	case base == "Makefile", strings.HasSuffix(base, ".mk"):
		return CategoryBuild, true
	case !strings.Contains(file, "/") &&
		(strings.HasSuffix(base, ".yaml") || strings.HasSuffix(base, ".yml") ||
			strings.HasSuffix(base, ".toml") || strings.HasSuffix(base, ".ini")):
		// Top-level config files only; nested yaml is usually content.
		return CategoryConfig, true
	}
	return "", false
}

// RewriteMessage rewrites a commit message for an infra-relevant change:
// the header gains an infra: prefix (unless already classified as infra)
// and a structured list of the infra files is appended. Messages for
// non-infra changes pass through unmodified.
func RewriteMessage(msg string, report Report) string {
	if !report.HasInfraChanges {
		return msg
	}

	header, body, _ := strings.Cut(msg, "\n")
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "infra") {
		header = "infra: " + header
	}

	var b strings.Builder
	b.WriteString(header)
	if strings.TrimSpace(body) != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}
	b.WriteString("\n\nInfra changes:\n")
	for _, f := range report.Files {
		fmt.Fprintf(&b, "- %s (%s)\n", f.Path, f.Category)
	}
	return strings.TrimRight(b.String(), "\n")
}
