package source

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dimchansky/utfbom"
	"github.com/pkg/errors"

	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/internal/domain/names"
)

var (
	reScriptLine = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s+"([^"]*)"(.*)$`)
	reDuration   = regexp.MustCompile(`\bduration\s+(\d+(?:\.\d+)?)`)
	reHits       = regexp.MustCompile(`(?:^|\s)[xX×]\s*(\d+)\s*$|×(\d+)\s*$`)
)

// ParseTimeline reads a scripted timeline. Each entry line is
//
//	<seconds> "<name>" [duration <seconds>] [anything else]
//
// '#' starts a comment, lines without a leading time are ignored and
// "--marker--" names are skipped. A trailing "xN" on the name sets the hit
// count. Entries are returned in time order with 1-based indices per
// normalized name.
func ParseTimeline(r io.Reader) ([]model.ScriptEntry, error) {
	var entries []model.ScriptEntry
	sc := bufio.NewScanner(utfbom.SkipOnly(r))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		m := reScriptLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[2])
		if name == "" || (strings.HasPrefix(name, "--") && strings.HasSuffix(name, "--")) {
			continue
		}
		at, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, errors.Wrapf(ErrDecode, "time %q", m[1])
		}

		e := model.ScriptEntry{Time: at, Name: name, HitCount: 1}
		if d := reDuration.FindStringSubmatch(m[3]); d != nil {
			e.Duration, _ = strconv.ParseFloat(d[1], 64)
		}
		if h := reHits.FindStringSubmatch(name); h != nil {
			n := h[1]
			if n == "" {
				n = h[2]
			}
			if v, err := strconv.Atoi(n); err == nil && v > 0 {
				e.HitCount = v
			}
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Time < entries[j].Time })
	seen := make(map[string]int)
	for i := range entries {
		k := names.Normalize(entries[i].Name)
		seen[k]++
		entries[i].Index = seen[k]
	}
	return entries, nil
}

// FileScriptSource reads <dir>/<boss>.txt.
type FileScriptSource struct {
	dir string
}

// NewFileScriptSource creates a script source rooted at dir.
func NewFileScriptSource(dir string) *FileScriptSource {
	return &FileScriptSource{dir: dir}
}

// Script implements ScriptSource. A missing file yields ErrNotFound.
func (s *FileScriptSource) Script(ctx context.Context, boss string) ([]model.ScriptEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, filepath.Clean("/"+boss)[1:]+".txt")
	fs, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "script for %q", boss)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer fs.Close()

	entries, err := ParseTimeline(fs)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return entries, nil
}
