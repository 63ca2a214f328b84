package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/okian/bosstimeline/internal/domain/model"
)

// FileLogSource reads exported reports from <dir>/<boss>/*.json, one report
// envelope per file.
type FileLogSource struct {
	dir string

	mu    sync.RWMutex
	paths map[string]string // report id -> file
}

// NewFileLogSource creates a log source rooted at dir.
func NewFileLogSource(dir string) *FileLogSource {
	return &FileLogSource{dir: dir, paths: make(map[string]string)}
}

// Reports decodes every report file of boss, sorted by report id. Events are
// left empty; Events loads them.
func (s *FileLogSource) Reports(ctx context.Context, boss string) ([]model.Report, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, filepath.Clean("/"+boss)[1:], "*.json"))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "no reports for %q", boss)
	}
	sort.Strings(files)

	reports := make([]model.Report, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := readReport(f)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.paths[r.ID] = f
		s.mu.Unlock()

		r.Events = nil
		reports = append(reports, r)
	}
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].ID < reports[j].ID })
	return reports, nil
}

// Events loads the events of a report listed by Reports.
func (s *FileLogSource) Events(ctx context.Context, report model.Report) ([]model.RawDamageEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(report.Events) > 0 {
		return report.Events, nil
	}
	s.mu.RLock()
	f, ok := s.paths[report.ID]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "report %s", report.ID)
	}
	r, err := readReport(f)
	if err != nil {
		return nil, err
	}
	return r.Events, nil
}

func readReport(path string) (model.Report, error) {
	fs, err := os.Open(path)
	if err != nil {
		return model.Report{}, errors.WithStack(err)
	}
	defer fs.Close()

	r, err := DecodeReport(fs)
	if err != nil {
		return model.Report{}, errors.WithMessage(err, path)
	}
	return r, nil
}
