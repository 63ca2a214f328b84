package tracking_test

import (
	"testing"

	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/internal/domain/tracking"
	. "github.com/smartystreets/goconvey/convey"
)

func timeline(id string, pairs ...any) model.ReportTimeline {
	tl := model.ReportTimeline{ReportID: id}
	for i := 0; i+1 < len(pairs); i += 2 {
		tl.Occurrences = append(tl.Occurrences, model.AbilityOccurrence{
			ReportID: id,
			Name:     pairs[i].(string),
			Time:     pairs[i+1].(float64),
		})
	}
	return tl
}

func TestIndex(t *testing.T) {
	Convey("Given repeated uses of one ability", t, func() {
		occs := timeline("r", "Jab", 0.0, "Jab", 3.0, "Jab", 20.0, "Jab", 60.0, "Cross", 61.0).Occurrences

		indexed := tracking.New().Index(occs)

		Convey("Then only gaps beyond the new-occurrence gap advance the index", func() {
			So(indexed[0].Index, ShouldEqual, 1)
			So(indexed[1].Index, ShouldEqual, 1)
			So(indexed[2].Index, ShouldEqual, 1) // 17s: between the windows, kept
			So(indexed[3].Index, ShouldEqual, 2)
			So(indexed[4].Index, ShouldEqual, 1)
		})
	})
}

func TestTrack(t *testing.T) {
	Convey("Given three reports that agree", t, func() {
		tls := []model.ReportTimeline{
			timeline("r1", "Meteor", 10.0),
			timeline("r2", "Meteor", 11.0),
			timeline("r3", "meteor", 12.0),
		}

		res := tracking.New().Track(tls)

		Convey("Then one confident group is built", func() {
			So(res.Groups, ShouldHaveLength, 1)
			g := res.Groups[0]
			So(g.Key, ShouldEqual, "meteor")
			So(g.Name, ShouldEqual, "Meteor")
			So(g.Index, ShouldEqual, 1)
			So(g.Confidence, ShouldEqual, 1)
			So(g.MedianTime, ShouldEqual, 11)
			So(g.Reports, ShouldResemble, []string{"r1", "r2", "r3"})
			So(g.Suspicious, ShouldBeFalse)
			So(res.Suspicious, ShouldEqual, 0)
		})

		Convey("Then the result does not depend on report order", func() {
			reversed := []model.ReportTimeline{tls[2], tls[1], tls[0]}
			So(tracking.New().Track(reversed), ShouldResemble, res)
		})
	})

	Convey("Given an ability seen in one of four reports", t, func() {
		tls := []model.ReportTimeline{
			timeline("a", "Jab", 1.0, "Rare", 5.0),
			timeline("b", "Jab", 1.0),
			timeline("c", "Jab", 1.0),
			timeline("d", "Jab", 1.0),
		}

		res := tracking.New().Track(tls)

		Convey("Then its group is suspicious for low confidence", func() {
			So(res.Groups, ShouldHaveLength, 2)
			So(res.Groups[1].Key, ShouldEqual, "rare")
			So(res.Groups[1].Confidence, ShouldEqual, 0.25)
			So(res.Groups[1].Suspicious, ShouldBeTrue)
			So(res.Groups[1].Reason, ShouldEqual, tracking.ReasonLowConfidence)
			So(res.LowConfidence, ShouldEqual, 1)
		})
	})

	Convey("Given one occurrence timed far apart in two reports", t, func() {
		tls := []model.ReportTimeline{
			timeline("a", "Meteor", 10.0),
			timeline("b", "Meteor", 25.0),
		}

		res := tracking.New().Track(tls)

		Convey("Then the group is suspicious for its spread", func() {
			So(res.Groups, ShouldHaveLength, 1)
			So(res.Groups[0].Spread(), ShouldEqual, 15)
			So(res.Groups[0].Reason, ShouldEqual, tracking.ReasonWideSpread)
			So(res.WideSpread, ShouldEqual, 1)
		})
	})

	Convey("Given index drift from a report that missed nothing", t, func() {
		tls := []model.ReportTimeline{
			timeline("r1", "Slash", 0.0, "Slash", 40.0),
			timeline("r2", "Slash", 42.0),
			timeline("r3", "Slash", 41.0),
		}

		res := tracking.New().Track(tls)

		Convey("Then groups with close medians are merged", func() {
			So(res.Merged, ShouldEqual, 1)
			So(res.Groups, ShouldHaveLength, 1)
			So(res.Groups[0].Members, ShouldHaveLength, 4)
			So(res.Groups[0].Index, ShouldEqual, 1)
			So(res.Groups[0].Start, ShouldEqual, 0)
			So(res.Groups[0].End, ShouldEqual, 42)
		})
	})

	Convey("Given phase-aware tracking", t, func() {
		a := timeline("a", "Jab", 1.0, "Jab", 2.0)
		a.Occurrences[1].Phase = 1

		res := tracking.New(tracking.WithPhaseAware(true)).Track([]model.ReportTimeline{a})

		Convey("Then the same name is numbered per phase", func() {
			So(res.Groups, ShouldHaveLength, 2)
			So(res.Groups[0].Phase, ShouldEqual, 0)
			So(res.Groups[1].Phase, ShouldEqual, 1)
			So(res.Groups[1].Index, ShouldEqual, 1)
		})
	})

	Convey("Given no reports", t, func() {
		res := tracking.New().Track(nil)

		So(res.Groups, ShouldBeEmpty)
		So(res.Reports, ShouldEqual, 0)
	})
}
