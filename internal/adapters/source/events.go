package source

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dimchansky/utfbom"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/okian/bosstimeline/internal/domain/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// eventJSON is one combat-log event as exported by the log service.
type eventJSON struct {
	Timestamp         int64  `json:"timestamp"`
	Type              string `json:"type"`
	SourceID          int    `json:"sourceID"`
	TargetID          int    `json:"targetID"`
	AbilityGameID     int    `json:"abilityGameID"`
	Amount            int64  `json:"amount"`
	UnmitigatedAmount int64  `json:"unmitigatedAmount"`
	Ability           *struct {
		Name string `json:"name"`
		Type int    `json:"type"`
	} `json:"ability,omitempty"`
}

// Page is one page of an event listing.
type Page struct {
	Data              []eventJSON `json:"data"`
	NextPageTimestamp *int64      `json:"nextPageTimestamp"`
}

// Ability describes an ability id in the report's master data.
type Ability struct {
	GameID int    `json:"gameID"`
	Name   string `json:"name"`
	Type   int    `json:"type"`
}

// ReportJSON is the on-disk and on-the-wire envelope of one recorded kill.
// Events holds either a single page object or an array of pages.
type ReportJSON struct {
	Code      string              `json:"code"`
	FightID   int                 `json:"fightID"`
	StartTime int64               `json:"startTime"`
	EndTime   int64               `json:"endTime"`
	Abilities []Ability           `json:"abilities"`
	Events    jsoniter.RawMessage `json:"events"`
}

// DecodeReport reads a report envelope, skipping a leading BOM, and returns
// the report with its events.
func DecodeReport(r io.Reader) (model.Report, error) {
	var env ReportJSON
	if err := json.NewDecoder(utfbom.SkipOnly(r)).Decode(&env); err != nil {
		return model.Report{}, errors.Wrap(ErrDecode, err.Error())
	}
	return env.Report()
}

// Report validates the envelope into a domain report.
func (env ReportJSON) Report() (model.Report, error) {
	if env.Code == "" {
		return model.Report{}, errors.Wrap(ErrDecode, "report code is empty")
	}
	if env.EndTime != 0 && env.EndTime < env.StartTime {
		return model.Report{}, errors.Wrapf(ErrDecode, "report %s ends before it starts", env.Code)
	}
	pages, err := ParsePages(env.Events)
	if err != nil {
		return model.Report{}, errors.Wrapf(err, "report %s", env.Code)
	}
	return model.Report{
		ID:        ReportID(env.Code, env.FightID),
		FightID:   env.FightID,
		StartTime: env.StartTime,
		EndTime:   env.EndTime,
		Events:    Events(pages, env.Abilities),
	}, nil
}

// ReportID joins a report code and fight id.
func ReportID(code string, fight int) string {
	if fight == 0 {
		return code
	}
	return fmt.Sprintf("%s#%d", code, fight)
}

// ParsePages accepts one page object or an array of pages. Empty input yields
// no pages.
func ParsePages(raw []byte) ([]Page, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		var pages []Page
		if err := json.Unmarshal(raw, &pages); err != nil {
			return nil, errors.Wrap(ErrDecode, err.Error())
		}
		return pages, nil
	case '{':
		var page Page
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, errors.Wrap(ErrDecode, err.Error())
		}
		return []Page{page}, nil
	default:
		return nil, errors.Wrapf(ErrDecode, "events: unexpected %q", raw[0])
	}
}

// Events flattens pages into damage events; non-damage events are skipped.
// A page may repeat events of the previous page at or before that page's last
// timestamp; each such repeat cancels one matching event of the previous page.
// Identical events within one page are all kept.
func Events(pages []Page, abilities []Ability) []model.RawDamageEvent {
	byID := make(map[int]Ability, len(abilities))
	for _, a := range abilities {
		byID[a.GameID] = a
	}

	var (
		out      []model.RawDamageEvent
		prev     map[string]int
		prevLast int64
	)
	for _, p := range pages {
		cur := make(map[string]int, len(p.Data))
		var last int64
		for _, e := range p.Data {
			if e.Type != "" && e.Type != "damage" {
				continue
			}
			key := eventKey(e)
			if e.Timestamp > last {
				last = e.Timestamp
			}
			if e.Timestamp <= prevLast && prev[key] > 0 {
				prev[key]--
				continue
			}
			cur[key]++

			name, school := "", 0
			if a, ok := byID[e.AbilityGameID]; ok {
				name, school = a.Name, a.Type
			}
			if e.Ability != nil {
				name, school = e.Ability.Name, e.Ability.Type
			}
			if name == "" {
				name = fmt.Sprintf("unknown_%d", e.AbilityGameID)
			}

			out = append(out, model.RawDamageEvent{
				Timestamp:         e.Timestamp,
				SourceID:          e.SourceID,
				TargetID:          e.TargetID,
				AbilityID:         e.AbilityGameID,
				AbilityName:       name,
				Amount:            e.Amount,
				UnmitigatedAmount: e.UnmitigatedAmount,
				Category:          model.CategoryFromAbilityType(school),
			})
		}
		prev, prevLast = cur, last
	}
	return out
}

func eventKey(e eventJSON) string { //nolint:gocritic // hugeParam: decoded by value
	return fmt.Sprintf("%d/%d/%d/%d/%d", e.Timestamp, e.SourceID, e.TargetID, e.AbilityGameID, e.Amount)
}
