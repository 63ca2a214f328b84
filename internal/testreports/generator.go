package testreports

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"

	"github.com/okian/bosstimeline/internal/adapters/source"
	"github.com/okian/bosstimeline/internal/domain/model"
)

// Defaults.
const (
	DefaultJitter       = 0.5  // seconds
	DefaultDamageJitter = 0.05 // share of damage
	reportSpacingMS     = 3_600_000
	pullOffsetMS        = 1_000
	bossActorID         = 1
	firstPlayerID       = 10
	filePermission      = 0o600
	dirPermission       = 0o755
)

// Generator replays fights into reports. It is not safe for concurrent use.
type Generator struct {
	rng          *rand.Rand
	jitter       float64
	damageJitter float64
	missing      float64
	prefix       string
}

// Option configures a Generator.
type Option func(*Generator)

// WithJitter sets the maximum timing deviation in seconds.
func WithJitter(seconds float64) Option {
	return func(g *Generator) {
		if seconds >= 0 {
			g.jitter = seconds
		}
	}
}

// WithDamageJitter sets the maximum damage deviation as a share of damage.
func WithDamageJitter(share float64) Option {
	return func(g *Generator) {
		if share >= 0 && share < 1 {
			g.damageJitter = share
		}
	}
}

// WithMissing sets the probability that a use is absent from a report, as
// when a kill ends early or a log drops events.
func WithMissing(p float64) Option {
	return func(g *Generator) {
		if p >= 0 && p < 1 {
			g.missing = p
		}
	}
}

// WithPrefix sets the report code prefix.
func WithPrefix(prefix string) Option {
	return func(g *Generator) {
		if prefix != "" {
			g.prefix = prefix
		}
	}
}

// New creates a Generator seeded with seed.
func New(seed uint64, opts ...Option) *Generator {
	g := &Generator{
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		jitter:       DefaultJitter,
		damageJitter: DefaultDamageJitter,
		prefix:       "synthetic",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Reports generates n kills of f. Report i starts one hour after report i-1
// and carries its events.
func (g *Generator) Reports(f Fight, n int) []model.Report {
	out := make([]model.Report, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.report(f, i))
	}
	return out
}

func (g *Generator) report(f Fight, i int) model.Report { //nolint:gocritic // hugeParam: fight is a value
	start := int64(i)*reportSpacingMS + pullOffsetMS
	r := model.Report{
		ID:        fmt.Sprintf("%s-%s-%03d", g.prefix, f.Boss, i+1),
		FightID:   1,
		StartTime: start,
		EndTime:   start + int64(f.Duration*1000),
	}
	r.ID = source.ReportID(r.ID, r.FightID)

	for _, a := range f.Abilities {
		for _, at := range a.Times {
			if g.missing > 0 && g.rng.Float64() < g.missing {
				continue
			}
			r.Events = append(r.Events, g.use(a, start, at)...)
		}
	}
	sort.SliceStable(r.Events, func(i, j int) bool { return r.Events[i].Timestamp < r.Events[j].Timestamp })
	return r
}

func (g *Generator) use(a Ability, start int64, at float64) []model.RawDamageEvent { //nolint:gocritic // hugeParam: ability is a value
	targets := max(a.Targets, 1)
	hits := max(a.Hits, 1)
	base := at + g.spread(g.jitter)
	category := model.CategoryFromAbilityType(a.Type)

	events := make([]model.RawDamageEvent, 0, targets*hits)
	for h := 0; h < hits; h++ {
		ts := start + int64(math.Round((base+float64(h)*a.HitSpacing)*1000))
		for t := 0; t < targets; t++ {
			dmg := int64(math.Round(float64(a.Damage) * (1 + g.spread(g.damageJitter))))
			events = append(events, model.RawDamageEvent{
				Timestamp:         ts,
				SourceID:          bossActorID,
				TargetID:          firstPlayerID + t,
				AbilityID:         a.ID,
				AbilityName:       a.Name,
				Amount:            dmg * 7 / 10,
				UnmitigatedAmount: dmg,
				Category:          category,
			})
		}
	}
	return events
}

// spread returns a uniform value in [-limit, limit].
func (g *Generator) spread(limit float64) float64 {
	if limit == 0 {
		return 0
	}
	return (g.rng.Float64()*2 - 1) * limit
}

// WriteDir writes reports as <dir>/<boss>/<id>.json and, when script is not
// empty, the scripted timeline as <dir>/<boss>.txt, the layouts the file
// sources read.
func WriteDir(ctx context.Context, dir, boss string, reports []model.Report, script []model.ScriptEntry) error {
	bossDir := filepath.Join(dir, boss)
	if err := os.MkdirAll(bossDir, dirPermission); err != nil {
		return fmt.Errorf("create %s: %w", bossDir, err)
	}
	for i := range reports {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(bossDir, fileName(reports[i].ID)+".json"), func(f *os.File) error {
			return source.EncodeReport(f, reports[i])
		}); err != nil {
			return err
		}
	}
	if len(script) > 0 {
		if err := writeFile(filepath.Join(dir, boss+".txt"), func(f *os.File) error {
			return source.FormatTimeline(f, script)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func fileName(reportID string) string {
	out := []rune(reportID)
	for i, r := range out {
		if r == '#' || r == '/' || r == '\\' {
			out[i] = '_'
		}
	}
	return string(out)
}
