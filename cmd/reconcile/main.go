// Command reconcile builds one canonical boss timeline offline and prints it
// as JSON.
//
// Reports come from -logs (a directory laid out as <dir>/<boss>/*.json) or
// are generated with -synthetic. The scripted timeline comes from -scripts
// (<dir>/<boss>.txt) or, for synthetic fights, from the generated fight.
// With -write the synthetic reports and script are written to a directory
// instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"

	app "github.com/okian/bosstimeline/internal/app"
	"github.com/okian/bosstimeline/internal/config"
	"github.com/okian/bosstimeline/internal/domain/types"
	"github.com/okian/bosstimeline/internal/testreports"
	"github.com/okian/bosstimeline/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type options struct {
	boss       string
	logs       string
	scripts    string
	enrichment string
	synthetic  int
	seed       uint64
	jitter     float64
	missing    float64
	offset     float64
	write      string
	reference  string
	anchor     string
	strategy   string
	phaseAware string
	lines      bool
	withDiag   bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.boss, "boss", "", "Boss id (required)")
	fs.StringVar(&o.logs, "logs", "", "Report directory, <dir>/<boss>/*.json (overrides BOSSTL_LOG_DIR)")
	fs.StringVar(&o.scripts, "scripts", "", "Script directory, <dir>/<boss>.txt (overrides BOSSTL_SCRIPT_DIR)")
	fs.StringVar(&o.enrichment, "enrichment", "", "Ability annotation catalog (YAML)")
	fs.IntVar(&o.synthetic, "synthetic", 0, "Generate this many synthetic kills instead of reading -logs")
	fs.Uint64Var(&o.seed, "seed", 1, "Seed for synthetic kills")
	fs.Float64Var(&o.jitter, "jitter", testreports.DefaultJitter, "Timing jitter of synthetic kills in seconds")
	fs.Float64Var(&o.missing, "missing", 0, "Probability that a synthetic use is missing from a kill")
	fs.Float64Var(&o.offset, "script-offset", 0, "Clock offset of the synthetic script in seconds")
	fs.StringVar(&o.write, "write", "", "Write synthetic kills and script to this directory and exit")
	fs.StringVar(&o.reference, "reference", "", "Preferred reference action")
	fs.StringVar(&o.anchor, "anchor", "", "Preferred sync anchor")
	fs.StringVar(&o.strategy, "strategy", "", "Aggregation strategy: median, average, earliest, latest, merge")
	fs.StringVar(&o.phaseAware, "phase-aware", "", "Override phase-aware aggregation: true or false")
	fs.BoolVar(&o.lines, "lines", false, "Print one JSON object per action instead of a document")
	fs.BoolVar(&o.withDiag, "diagnostics", false, "Include run diagnostics and script mappings in the document")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.boss == "" {
		return o, fmt.Errorf("-boss is required")
	}
	if o.write != "" && o.synthetic < 1 {
		return o, fmt.Errorf("-write needs -synthetic")
	}
	return o, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel), logger.WithOutput(stderr)); err != nil {
		return err
	}
	log := logger.Named("reconcile")

	req := app.Request{
		Boss:      o.boss,
		Reference: o.reference,
		Anchor:    o.anchor,
		Strategy:  o.strategy,
	}
	switch o.phaseAware {
	case "":
	case "true", "false":
		on := o.phaseAware == "true"
		req.PhaseAware = &on
	default:
		return fmt.Errorf("-phase-aware must be true or false")
	}

	if o.synthetic > 0 {
		fight := testreports.DefaultFight(o.boss)
		gen := testreports.New(o.seed, testreports.WithJitter(o.jitter), testreports.WithMissing(o.missing))
		req.Reports = gen.Reports(fight, o.synthetic)
		req.Script = fight.Script(o.offset)
		if o.write != "" {
			if err := testreports.WriteDir(ctx, o.write, o.boss, req.Reports, req.Script); err != nil {
				return err
			}
			log.Info(ctx, "synthetic kills written",
				logger.String("dir", o.write),
				logger.Int("reports", len(req.Reports)),
				logger.Int("scriptEntries", len(req.Script)))
			return nil
		}
	}

	if o.logs != "" {
		cfg.LogDir = o.logs
	}
	if o.scripts != "" {
		cfg.ScriptDir = o.scripts
	}
	if o.enrichment != "" {
		cfg.EnrichmentFile = o.enrichment
	}

	opts, err := app.OptionsFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	svc := app.New(append(opts, app.WithLogger(logger.Named("service")))...)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	resp, err := svc.Reconcile(ctx, req)
	if err != nil {
		return err
	}
	return write(stdout, &o, &resp)
}

type document struct {
	RunID       string                   `json:"run_id"`
	Boss        string                   `json:"boss"`
	Actions     []types.TimelineRecord   `json:"actions"`
	Diagnostics *types.DiagnosticsRecord `json:"diagnostics,omitempty"`
	Mappings    []types.MappingRecord    `json:"mappings,omitempty"`
}

func write(w io.Writer, o *options, resp *app.Response) error {
	records := types.FromActions(resp.Actions)
	enc := json.NewEncoder(w)
	if o.lines {
		for i := range records {
			if err := enc.Encode(records[i]); err != nil {
				return err
			}
		}
		return nil
	}

	doc := document{RunID: resp.RunID, Boss: resp.Boss, Actions: records}
	if o.withDiag {
		d := types.FromDiagnostics(&resp.Diagnostics)
		doc.Diagnostics = &d
		doc.Mappings = types.FromMappings(resp.Mappings)
	}
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
