// Package branch derives daily and version branch names from dates and
// configuration. Everything here is a pure function over explicit inputs
// so branch naming is testable with fixed dates.
package branch

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dayfold/dayfold/internal/config"
)

// Kind classifies a branch within the two-level hierarchy.
type Kind string

const (
	KindTrunk   Kind = "trunk"
	KindVersion Kind = "version"
	KindDaily   Kind = "daily"
	KindStatic  Kind = "static"
	KindOther   Kind = "other"
)

// Ref is a branch name tagged with its role.
type Ref struct {
	Name string
	Kind Kind
}

// Today renders the date for now in loc using the configured style.
func Today(now time.Time, loc *time.Location, style config.DateStyle) string {
	layout := "2006-01-02"
	if style == config.DateStyleCompact {
		layout = "20060102"
	}
	return now.In(loc).Format(layout)
}

// Namer derives branch names from the configured prefixes.
type Namer struct {
	DailyPrefix   string
	VersionPrefix string
	Trunk         string
	StaticBranch  string
}

// NewNamer builds a Namer from the engine configuration.
func NewNamer(cfg *config.Config) *Namer {
	return &Namer{
		DailyPrefix:   cfg.DailyPrefix,
		VersionPrefix: cfg.VersionPrefix,
		Trunk:         cfg.Trunk,
		StaticBranch:  cfg.StaticBranch,
	}
}

// DailyName returns the daily branch name for a rendered date.
func (n *Namer) DailyName(date string) string {
	return n.DailyPrefix + date
}

// VersionName returns the version branch name for a minor number. Minor 7
// with prefix "v0." renders "v0.07": the default step of 1 represents an
// increment of 0.01.
func (n *Namer) VersionName(minor int) string {
	return fmt.Sprintf("%s%02d", n.VersionPrefix, minor)
}

// ParseVersionMinor extracts the minor number from a version branch name.
func (n *Namer) ParseVersionMinor(name string) (int, bool) {
	rest, found := strings.CutPrefix(name, n.VersionPrefix)
	if !found || rest == "" {
		return 0, false
	}
	minor, err := strconv.Atoi(rest)
	if err != nil || minor < 0 {
		return 0, false
	}
	return minor, true
}

// HighestMinor returns the largest minor number among version branches in
// the list, and whether any version branch was found.
func (n *Namer) HighestMinor(branches []string) (int, bool) {
	highest, found := 0, false
	for _, b := range branches {
		if minor, ok := n.ParseVersionMinor(b); ok {
			if !found || minor > highest {
				highest = minor
				found = true
			}
		}
	}
	return highest, found
}

// NewestDaily returns the lexicographically greatest daily branch, which
// for both date styles is the most recent day.
func (n *Namer) NewestDaily(branches []string) (string, bool) {
	newest, found := "", false
	for _, b := range branches {
		if !strings.HasPrefix(b, n.DailyPrefix) || b == n.DailyPrefix {
			continue
		}
		if !found || b > newest {
			newest = b
			found = true
		}
	}
	return newest, found
}

// Classify tags a branch name with its role in the hierarchy.
func (n *Namer) Classify(name string) Ref {
	switch {
	case n.StaticBranch != "" && name == n.StaticBranch:
		return Ref{Name: name, Kind: KindStatic}
	case name == n.Trunk:
		return Ref{Name: name, Kind: KindTrunk}
	case strings.HasPrefix(name, n.DailyPrefix):
		return Ref{Name: name, Kind: KindDaily}
	default:
		if _, ok := n.ParseVersionMinor(name); ok {
			return Ref{Name: name, Kind: KindVersion}
		}
		return Ref{Name: name, Kind: KindOther}
	}
}
