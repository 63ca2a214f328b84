package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/bosstimeline/internal/app"
	"github.com/okian/bosstimeline/internal/config"
	"github.com/okian/bosstimeline/internal/domain/enrich"
	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/internal/testreports"
	"github.com/okian/bosstimeline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

const boss = "ifrit"

func started(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	svc := service.New(append([]service.Option{service.WithWorkerCount(2)}, opts...)...)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

// failingLogs lists two reports and fails to load the events of "bad".
type failingLogs struct {
	good model.Report
}

func (f failingLogs) Reports(_ context.Context, _ string) ([]model.Report, error) {
	return []model.Report{{ID: "bad"}, f.good}, nil
}

func (f failingLogs) Events(_ context.Context, r model.Report) ([]model.RawDamageEvent, error) {
	if r.ID == "bad" {
		return nil, errors.New("export truncated")
	}
	return f.good.Events, nil
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that is not started", t, func() {
		svc := service.New()

		Convey("Then reconcile and reads are refused", func() {
			_, err := svc.Reconcile(context.Background(), service.Request{Boss: boss})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)

			_, err = svc.Recent(context.Background(), 5)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldBeFalse)
		})

		Convey("When started and stopped twice", func() {
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["timelines"], ShouldEqual, 0)

			svc.Stop()
			svc.Stop()
			So(svc.GetStats()["started"], ShouldBeFalse)
		})
	})
}

func TestService_Reconcile(t *testing.T) {
	fight := testreports.DefaultFight(boss)

	Convey("Given three generated kills and the scripted timeline", t, func() {
		svc := started(t)
		ctx := context.Background()
		reports := testreports.New(42).Reports(fight, 3)

		resp, err := svc.Reconcile(ctx, service.Request{
			Boss:    boss,
			Reports: reports,
			Script:  fight.Script(10),
		})

		Convey("Then every use becomes one action", func() {
			So(err, ShouldBeNil)
			So(resp.RunID, ShouldNotBeEmpty)
			So(resp.Actions, ShouldHaveLength, fight.Uses())
			So(resp.Diagnostics.ReportsIn, ShouldEqual, 3)
			So(resp.Diagnostics.Occurrences, ShouldEqual, 3*fight.Uses())
			So(resp.Diagnostics.Groups, ShouldEqual, fight.Uses())
			So(resp.Diagnostics.SuspiciousGroups, ShouldEqual, 0)
		})

		Convey("Then the script is synced on the first scripted action", func() {
			d := resp.Diagnostics
			So(d.ScriptAvailable, ShouldBeTrue)
			So(d.OffsetFound, ShouldBeTrue)
			So(d.AnchorName, ShouldEqual, "Heavy Slash")
			So(d.SyncOffset, ShouldEqual, 15)
			So(d.Matched, ShouldEqual, fight.Uses()-2)
			So(d.UnmatchedScript, ShouldEqual, 0)
			So(d.DamageOnly, ShouldEqual, 2)
			So(d.Degraded(), ShouldBeFalse)
			So(resp.Mappings, ShouldHaveLength, fight.Uses()-2)
		})

		Convey("Then actions are ordered and keep report damage", func() {
			for i := 1; i < len(resp.Actions); i++ {
				So(resp.Actions[i].Time, ShouldBeGreaterThanOrEqualTo, resp.Actions[i-1].Time)
			}
			So(resp.Actions[0].Name, ShouldEqual, "Heavy Slash")
			So(resp.Actions[0].Time, ShouldEqual, 15)
			So(resp.Actions[0].Source, ShouldEqual, model.SourceMerged)
			So(resp.Actions[0].Damage.Median, ShouldBeGreaterThan, 80000)
		})

		Convey("Then the run is stored", func() {
			tl, err := svc.Timeline(ctx, boss)
			So(err, ShouldBeNil)
			So(tl.RunID, ShouldEqual, resp.RunID)
			So(tl.Actions, ShouldHaveLength, len(resp.Actions))

			recent, err := svc.Recent(ctx, 10)
			So(err, ShouldBeNil)
			So(recent, ShouldHaveLength, 1)
			So(recent[0].Boss, ShouldEqual, boss)
		})

		Convey("When the same reports are reconciled again", func() {
			again, err := svc.Reconcile(ctx, service.Request{Boss: boss, Reports: reports, Script: fight.Script(10)})

			Convey("Then the timeline is the same under a new run id", func() {
				So(err, ShouldBeNil)
				So(again.RunID, ShouldNotEqual, resp.RunID)
				So(again.Actions, ShouldResemble, resp.Actions)
			})
		})
	})

	Convey("Given a report listed twice", t, func() {
		svc := started(t)
		reports := testreports.New(1).Reports(fight, 2)
		reports = append(reports, reports[0])

		resp, err := svc.Reconcile(context.Background(), service.Request{Boss: boss, Reports: reports})

		Convey("Then the duplicate is counted and skipped", func() {
			So(err, ShouldBeNil)
			So(resp.Diagnostics.DuplicateReports, ShouldEqual, 1)
			So(resp.Diagnostics.ReportsIn, ShouldEqual, 2)
		})

		Convey("Then without a script every action is damage-only", func() {
			So(resp.Diagnostics.ScriptAvailable, ShouldBeFalse)
			So(resp.Diagnostics.DamageOnly, ShouldEqual, fight.Uses())
			So(resp.Mappings, ShouldBeEmpty)
		})
	})

	Convey("Given invalid requests", t, func() {
		svc := started(t)
		ctx := context.Background()

		_, err := svc.Reconcile(ctx, service.Request{})
		So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)

		_, err = svc.Reconcile(ctx, service.Request{Boss: boss, Strategy: "vote"})
		So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
	})

	Convey("Given a cancelled context", t, func() {
		svc := started(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := svc.Reconcile(ctx, service.Request{Boss: boss, Reports: testreports.New(1).Reports(fight, 2)})

		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

func TestService_DegradedPaths(t *testing.T) {
	fight := testreports.DefaultFight(boss)

	Convey("Given a log source that fails one report", t, func() {
		good := testreports.New(5).Reports(fight, 1)[0]
		svc := started(t, service.WithLogSource(failingLogs{good: good}))

		resp, err := svc.Reconcile(context.Background(), service.Request{Boss: boss})

		Convey("Then the run completes from the remaining report", func() {
			So(err, ShouldBeNil)
			So(resp.Diagnostics.ReportsIn, ShouldEqual, 2)
			So(resp.Diagnostics.ReportsFailed, ShouldEqual, 1)
			So(resp.Actions, ShouldHaveLength, fight.Uses())
			So(resp.Diagnostics.Degraded(), ShouldBeTrue)
		})
	})

	Convey("Given an enrichment catalog", t, func() {
		catalog := enrich.NewCatalog(enrich.Annotation{Name: "Meteor", Description: "Raid-wide magic", MechanicType: "raidwide"})
		svc := started(t, service.WithEnricher(catalog))

		resp, err := svc.Reconcile(context.Background(), service.Request{
			Boss:    boss,
			Reports: testreports.New(9).Reports(fight, 2),
		})

		Convey("Then matching actions are annotated", func() {
			So(err, ShouldBeNil)
			So(resp.Diagnostics.Enriched, ShouldEqual, 2)
			for _, a := range resp.Actions {
				if a.Name == "Meteor" {
					So(a.MechanicType, ShouldEqual, "raidwide")
				} else {
					So(a.Description, ShouldBeEmpty)
				}
			}
		})
	})
}

func TestOptionsFromConfig(t *testing.T) {
	fight := testreports.DefaultFight(boss)

	Convey("Given report and script files on disk", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		reports := testreports.New(11).Reports(fight, 3)
		So(testreports.WriteDir(ctx, dir, boss, reports, fight.Script(10)), ShouldBeNil)

		cfg := config.New(ctx)
		cfg.LogDir = dir
		cfg.ScriptDir = dir
		cfg.RateLimitPerSec = 0

		opts, err := service.OptionsFromConfig(ctx, cfg)
		So(err, ShouldBeNil)
		svc := started(t, opts...)

		Convey("When reconciling by boss name", func() {
			resp, err := svc.Reconcile(ctx, service.Request{Boss: boss})

			Convey("Then reports and script come from the sources", func() {
				So(err, ShouldBeNil)
				So(resp.Diagnostics.ReportsIn, ShouldEqual, 3)
				So(resp.Diagnostics.ScriptEntries, ShouldEqual, fight.Uses()-2)
				So(resp.Diagnostics.Matched, ShouldEqual, fight.Uses()-2)
				So(resp.Diagnostics.Degraded(), ShouldBeFalse)
			})
		})

		Convey("When the boss has no files", func() {
			resp, err := svc.Reconcile(ctx, service.Request{Boss: "titan"})

			Convey("Then the run is empty but succeeds", func() {
				So(err, ShouldBeNil)
				So(resp.Actions, ShouldBeEmpty)
				So(resp.Diagnostics.ReportsIn, ShouldEqual, 0)
				So(resp.Diagnostics.ScriptAvailable, ShouldBeFalse)
			})
		})
	})

	Convey("Given custom classification patterns", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.TankBusterPatterns = []string{`(?i)akh morn`}
		cfg.RaidWidePatterns = []string{`(?i)swipe`}
		cfg.RateLimitPerSec = 0

		opts, err := service.OptionsFromConfig(ctx, cfg)
		So(err, ShouldBeNil)
		svc := started(t, opts...)

		resp, err := svc.Reconcile(ctx, service.Request{Boss: boss, Reports: testreports.New(5).Reports(fight, 2)})
		So(err, ShouldBeNil)

		Convey("Then the configured names drive the tags", func() {
			tagged := map[string]bool{}
			for _, a := range resp.Actions {
				switch a.Name {
				case "Akh Morn":
					tagged["buster"] = a.TankBuster
				case "Tail Swipe":
					tagged["raidwide"] = a.RaidWide
				}
			}
			So(tagged, ShouldResemble, map[string]bool{"buster": true, "raidwide": true})
		})
	})

	Convey("Given an unknown strategy", t, func() {
		cfg := config.New(context.Background())
		cfg.Strategy = "vote"

		_, err := service.OptionsFromConfig(context.Background(), cfg)
		So(err, ShouldNotBeNil)
	})

	Convey("Given a missing enrichment file", t, func() {
		cfg := config.New(context.Background())
		cfg.EnrichmentFile = "/nonexistent/abilities.yaml"

		_, err := service.OptionsFromConfig(context.Background(), cfg)
		So(errors.Is(err, enrich.ErrLoadCatalog), ShouldBeTrue)
	})
}
