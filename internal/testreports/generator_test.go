package testreports_test

import (
	"context"
	"testing"

	"github.com/okian/bosstimeline/internal/adapters/source"
	"github.com/okian/bosstimeline/internal/testreports"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerator(t *testing.T) {
	Convey("Given the default fight", t, func() {
		fight := testreports.DefaultFight("ifrit")

		Convey("When generating with the same seed twice", func() {
			a := testreports.New(7).Reports(fight, 3)
			b := testreports.New(7).Reports(fight, 3)

			Convey("Then the reports are identical", func() {
				So(a, ShouldResemble, b)
				So(a, ShouldHaveLength, 3)
				So(a[0].ID, ShouldEqual, "synthetic-ifrit-001#1")
				So(a[1].StartTime, ShouldBeGreaterThan, a[0].EndTime)
			})

			Convey("Then every hit of every use is present", func() {
				// 2x1 + 2x8 + 2x(2x4) + 2x3 events
				So(a[0].Events, ShouldHaveLength, 40)
				for i := 1; i < len(a[0].Events); i++ {
					So(a[0].Events[i].Timestamp, ShouldBeGreaterThanOrEqualTo, a[0].Events[i-1].Timestamp)
				}
			})
		})

		Convey("When uses may be missing", func() {
			reports := testreports.New(1, testreports.WithMissing(0.5)).Reports(fight, 5)

			Convey("Then some reports are shorter", func() {
				total := 0
				for _, r := range reports {
					total += len(r.Events)
				}
				So(total, ShouldBeLessThan, 5*40)
			})
		})

		Convey("When deriving the script", func() {
			script := fight.Script(5)

			Convey("Then unscripted abilities are left out and times shifted", func() {
				So(script, ShouldHaveLength, fight.Uses()-2)
				So(script[0].Name, ShouldEqual, "Heavy Slash")
				So(script[0].Time, ShouldEqual, 10)
				So(script[2].HitCount, ShouldEqual, 4)
			})
		})
	})
}

func TestWriteDir(t *testing.T) {
	Convey("Given generated reports written to disk", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		fight := testreports.DefaultFight("ifrit")
		reports := testreports.New(3, testreports.WithJitter(0)).Reports(fight, 2)

		So(testreports.WriteDir(ctx, dir, "ifrit", reports, fight.Script(0)), ShouldBeNil)

		Convey("Then the file sources read them back", func() {
			logs := source.NewFileLogSource(dir)
			listed, err := logs.Reports(ctx, "ifrit")
			So(err, ShouldBeNil)
			So(listed, ShouldHaveLength, 2)
			So(listed[0].ID, ShouldEqual, reports[0].ID)

			events, err := logs.Events(ctx, listed[0])
			So(err, ShouldBeNil)
			So(events, ShouldResemble, reports[0].Events)

			script, err := source.NewFileScriptSource(dir).Script(ctx, "ifrit")
			So(err, ShouldBeNil)
			So(script, ShouldHaveLength, fight.Uses()-2)
		})
	})
}
