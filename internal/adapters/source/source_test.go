package source_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/bosstimeline/internal/adapters/source"
	"github.com/okian/bosstimeline/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const singlePage = `{
  "code": "abc",
  "fightID": 3,
  "startTime": 1000,
  "endTime": 90000,
  "abilities": [{"gameID": 7, "name": "Heavy Slash", "type": 128}],
  "events": {
    "data": [
      {"timestamp": 2000, "type": "damage", "sourceID": 1, "targetID": 2, "abilityGameID": 7, "amount": 900, "unmitigatedAmount": 1500},
      {"timestamp": 2100, "type": "cast", "sourceID": 1, "targetID": 2, "abilityGameID": 7},
      {"timestamp": 2200, "type": "damage", "sourceID": 1, "targetID": 3, "abilityGameID": 9, "amount": 50,
       "ability": {"name": "Meteor", "type": 1024}}
    ],
    "nextPageTimestamp": null
  }
}`

const pagedWithOverlap = `{
  "code": "def",
  "startTime": 0,
  "events": [
    {"data": [
      {"timestamp": 10, "type": "damage", "targetID": 1, "abilityGameID": 5, "amount": 1},
      {"timestamp": 20, "type": "damage", "targetID": 1, "abilityGameID": 5, "amount": 1}
    ], "nextPageTimestamp": 20},
    {"data": [
      {"timestamp": 20, "type": "damage", "targetID": 1, "abilityGameID": 5, "amount": 1},
      {"timestamp": 30, "type": "damage", "targetID": 1, "abilityGameID": 5, "amount": 1}
    ]}
  ]
}`

// Page one holds three identical hits; page two repeats one of them.
const twinHits = `{
  "code": "twin",
  "events": [
    {"data": [
      {"timestamp": 10, "type": "damage", "targetID": 1, "abilityGameID": 5, "amount": 7},
      {"timestamp": 10, "type": "damage", "targetID": 1, "abilityGameID": 5, "amount": 7},
      {"timestamp": 10, "type": "damage", "targetID": 1, "abilityGameID": 5, "amount": 7}
    ], "nextPageTimestamp": 10},
    {"data": [
      {"timestamp": 10, "type": "damage", "targetID": 1, "abilityGameID": 5, "amount": 7},
      {"timestamp": 40, "type": "damage", "targetID": 1, "abilityGameID": 5, "amount": 7}
    ]}
  ]
}`

func TestDecodeReport(t *testing.T) {
	Convey("Given a report with a single event page", t, func() {
		r, err := source.DecodeReport(strings.NewReader("\xef\xbb\xbf" + singlePage))

		Convey("Then damage events are decoded with names from master data", func() {
			So(err, ShouldBeNil)
			So(r.ID, ShouldEqual, "abc#3")
			So(r.StartTime, ShouldEqual, 1000)
			So(r.Events, ShouldHaveLength, 2)
			So(r.Events[0].AbilityName, ShouldEqual, "Heavy Slash")
			So(r.Events[0].Damage(), ShouldEqual, 1500)
			So(r.Events[0].Category, ShouldEqual, model.CategoryPhysical)
			So(r.Events[1].AbilityName, ShouldEqual, "Meteor")
			So(r.Events[1].Category, ShouldEqual, model.CategoryMagical)
		})
	})

	Convey("Given a report with overlapping pages", t, func() {
		r, err := source.DecodeReport(strings.NewReader(pagedWithOverlap))

		Convey("Then the boundary event is kept once", func() {
			So(err, ShouldBeNil)
			So(r.ID, ShouldEqual, "def")
			So(r.Events, ShouldHaveLength, 3)
			So(r.Events[0].AbilityName, ShouldEqual, "unknown_5")
		})
	})

	Convey("Given identical hits within one page", t, func() {
		r, err := source.DecodeReport(strings.NewReader(twinHits))

		Convey("Then every hit is kept and only the boundary repeat is dropped", func() {
			So(err, ShouldBeNil)
			So(r.Events, ShouldHaveLength, 4)
			So(r.Events[0].Timestamp, ShouldEqual, 10)
			So(r.Events[1].Timestamp, ShouldEqual, 10)
			So(r.Events[2].Timestamp, ShouldEqual, 10)
			So(r.Events[3].Timestamp, ShouldEqual, 40)
		})
	})

	Convey("Given malformed input", t, func() {
		_, err := source.DecodeReport(strings.NewReader(`{"code": "x", "events": 5}`))
		So(errors.Is(err, source.ErrDecode), ShouldBeTrue)

		_, err = source.DecodeReport(strings.NewReader(`{"events": []}`))
		So(errors.Is(err, source.ErrDecode), ShouldBeTrue)

		_, err = source.DecodeReport(strings.NewReader(`not json`))
		So(errors.Is(err, source.ErrDecode), ShouldBeTrue)
	})

	Convey("Given a report without events", t, func() {
		r, err := source.DecodeReport(strings.NewReader(`{"code": "empty"}`))

		So(err, ShouldBeNil)
		So(r.Events, ShouldBeEmpty)
	})
}

func TestParseTimeline(t *testing.T) {
	Convey("Given a scripted timeline", t, func() {
		text := "# header comment\n" +
			"hideall \"--sync--\"\n" +
			"0.0 \"--sync--\" sync / 104:\n" +
			"12.5 \"Heavy Slash\" duration 3 # tank\n" +
			"30 \"Akh Morn x4\"\n" +
			"20 \"Meteor\"\n" +
			"45.2 \"Heavy Slash\"\n"

		entries, err := source.ParseTimeline(strings.NewReader(text))

		Convey("Then entries are ordered, indexed and annotated", func() {
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 4)
			So(entries[0].Name, ShouldEqual, "Heavy Slash")
			So(entries[0].Duration, ShouldEqual, 3)
			So(entries[0].Index, ShouldEqual, 1)
			So(entries[1].Name, ShouldEqual, "Meteor")
			So(entries[2].HitCount, ShouldEqual, 4)
			So(entries[3].Time, ShouldEqual, 45.2)
			So(entries[3].Index, ShouldEqual, 2)
		})
	})

	Convey("Given an empty timeline", t, func() {
		entries, err := source.ParseTimeline(strings.NewReader(""))

		So(err, ShouldBeNil)
		So(entries, ShouldBeEmpty)
	})
}

func TestFileSources(t *testing.T) {
	Convey("Given report and script directories", t, func() {
		ctx := context.Background()
		logDir := t.TempDir()
		scriptDir := t.TempDir()
		So(os.MkdirAll(filepath.Join(logDir, "boss"), 0o755), ShouldBeNil)
		So(os.WriteFile(filepath.Join(logDir, "boss", "a.json"), []byte(singlePage), 0o600), ShouldBeNil)
		So(os.WriteFile(filepath.Join(logDir, "boss", "b.json"), []byte(pagedWithOverlap), 0o600), ShouldBeNil)
		So(os.WriteFile(filepath.Join(scriptDir, "boss.txt"), []byte("10 \"Meteor\"\n"), 0o600), ShouldBeNil)

		logs := source.NewFileLogSource(logDir)
		scripts := source.NewFileScriptSource(scriptDir)

		Convey("When listing reports", func() {
			reports, err := logs.Reports(ctx, "boss")

			Convey("Then they are sorted and events load lazily", func() {
				So(err, ShouldBeNil)
				So(reports, ShouldHaveLength, 2)
				So(reports[0].ID, ShouldEqual, "abc#3")
				So(reports[0].Events, ShouldBeEmpty)

				events, err := logs.Events(ctx, reports[1])
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 3)
			})
		})

		Convey("When the boss is unknown", func() {
			_, err := logs.Reports(ctx, "nobody")
			So(errors.Is(err, source.ErrNotFound), ShouldBeTrue)

			_, err = scripts.Script(ctx, "nobody")
			So(errors.Is(err, source.ErrNotFound), ShouldBeTrue)
		})

		Convey("When reading the script", func() {
			entries, err := scripts.Script(ctx, "boss")

			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := logs.Events(cctx, model.Report{ID: "abc#3"})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestEncode(t *testing.T) {
	Convey("Given a decoded report", t, func() {
		r, err := source.DecodeReport(strings.NewReader(singlePage))
		So(err, ShouldBeNil)

		Convey("When it is encoded and decoded again", func() {
			var buf strings.Builder
			So(source.EncodeReport(&buf, r), ShouldBeNil)
			back, err := source.DecodeReport(strings.NewReader(buf.String()))

			Convey("Then the report is unchanged", func() {
				So(err, ShouldBeNil)
				So(back, ShouldResemble, r)
			})
		})
	})

	Convey("Given scripted entries with hit counts", t, func() {
		entries := []model.ScriptEntry{
			{Time: 5, Name: "Jab", HitCount: 1},
			{Time: 30, Name: "Akh Morn", HitCount: 4, Duration: 2.5},
		}

		var buf strings.Builder
		So(source.FormatTimeline(&buf, entries), ShouldBeNil)
		parsed, err := source.ParseTimeline(strings.NewReader(buf.String()))

		Convey("Then the timeline parses back with indices", func() {
			So(err, ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, `30.0 "Akh Morn x4" duration 2.5`)
			So(parsed, ShouldHaveLength, 2)
			So(parsed[1].HitCount, ShouldEqual, 4)
			So(parsed[1].Duration, ShouldEqual, 2.5)
			So(parsed[1].Index, ShouldEqual, 1)
		})
	})
}
