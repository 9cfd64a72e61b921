package catalog

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aymanbagabas/go-udiff"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"

	"github.com/jingkaihe/skillfit/pkg/logger"
	"github.com/jingkaihe/skillfit/pkg/structure"
)

var (
	entryHeader  = regexp.MustCompile(`^### (\d+)\. (.+?)\s*$`)
	anyEntry     = regexp.MustCompile(`(?m)^### \d+\.`)
	totalSkills  = regexp.MustCompile(`\*\*Total Skills:\*\* \d+ skills`)
	lastUpdated  = regexp.MustCompile(`\*\*Last Updated:\*\* \d{4}-\d{2}-\d{2}`)
	errNoSection = errors.New("category section not found in catalog")
)

const dateLayout = "2006-01-02"

// Change describes what Upsert did.
type Change struct {
	// Updated is true when an existing entry was replaced.
	Updated bool
	Number  int
	Total   int
}

// Upsert inserts or replaces entry in the category section of catalog and
// refreshes the total and last-updated markers.
func Upsert(catalog string, entry *Entry, now time.Time) (string, Change, error) {
	st := structure.Analyze(catalog)
	lines := st.Lines()

	ordinal := -1
	for _, sec := range st.Sections {
		if sec.Name == entry.Category.Header() {
			ordinal = sec.Ordinal
			break
		}
	}
	if ordinal < 0 {
		return "", Change{}, errors.Wrapf(errNoSection, "%q", structure.HeaderMarker+entry.Category.Header())
	}
	sec := st.Sections[ordinal]

	var change Change
	start, end := -1, -1
	maxNumber, lastEnd := 0, -1
	for i := sec.Start + 1; i < sec.End; i++ {
		m := entryHeader.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		maxNumber = max(maxNumber, n)
		blockEnd := entryEnd(lines, i, sec.End)
		lastEnd = blockEnd
		if m[2] == entry.Name && start < 0 {
			start, end = i, blockEnd
			change.Number = n
			change.Updated = true
		}
	}

	var insert []string
	switch {
	case change.Updated:
		insert = entry.Lines(change.Number)
	case lastEnd >= 0:
		change.Number = maxNumber + 1
		start, end = lastEnd, lastEnd
		insert = entry.Lines(change.Number)
	default:
		change.Number = maxNumber + 1
		start = sec.End
		for start > sec.Start+1 && strings.TrimSpace(lines[start-1]) == "" {
			start--
		}
		end = start
		insert = append([]string{""}, entry.Lines(change.Number)...)
	}

	out := make([]string, 0, len(lines)+len(insert))
	out = append(out, lines[:start]...)
	out = append(out, insert...)
	out = append(out, lines[end:]...)
	text := strings.Join(out, "\n")

	change.Total = len(anyEntry.FindAllStringIndex(text, -1))
	text = totalSkills.ReplaceAllString(text, "**Total Skills:** "+strconv.Itoa(change.Total)+" skills")
	text = lastUpdated.ReplaceAllString(text, "**Last Updated:** "+now.Format(dateLayout))

	return text, change, nil
}

// entryEnd returns the offset right after the entry starting at start: the
// next entry header, or its closing separator plus trailing blank lines.
func entryEnd(lines []string, start, limit int) int {
	for i := start + 1; i < limit; i++ {
		if strings.HasPrefix(lines[i], "### ") {
			return i
		}
		if strings.TrimSpace(lines[i]) == structure.MetadataDelimiter {
			i++
			for i < limit && strings.TrimSpace(lines[i]) == "" {
				i++
			}
			return i
		}
	}
	return limit
}

// Syncer applies entries to a catalog file on disk.
type Syncer struct {
	Path string
	// Confirm is asked before writing with a unified diff of the change. A
	// nil Confirm writes without asking.
	Confirm func(diff string) bool
	Now     func() time.Time
}

// SyncResult describes a sync.
type SyncResult struct {
	Change
	Diff    string
	Written bool
}

// Sync upserts entry into the catalog file.
func (s *Syncer) Sync(ctx context.Context, entry *Entry) (*SyncResult, error) {
	log := logger.G(ctx).WithField("catalog", s.Path).WithField("skill", entry.Name)

	old, err := lockedfile.Read(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("catalog not found at %s", s.Path)
		}
		return nil, errors.Wrap(err, "failed to read catalog")
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	updated, change, err := Upsert(string(old), entry, now())
	if err != nil {
		return nil, err
	}

	res := &SyncResult{
		Change: change,
		Diff:   udiff.Unified(s.Path, s.Path, string(old), updated),
	}
	if updated == string(old) {
		log.Debug("catalog already up to date")
		return res, nil
	}
	if s.Confirm != nil && !s.Confirm(res.Diff) {
		log.Info("catalog sync cancelled")
		return res, nil
	}

	if err := lockedfile.Write(s.Path, strings.NewReader(updated), 0o644); err != nil {
		return nil, errors.Wrap(err, "failed to write catalog")
	}
	res.Written = true
	log.WithField("number", change.Number).WithField("updated", change.Updated).Info("catalog synced")
	return res, nil
}
