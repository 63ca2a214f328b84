package source

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/okian/bosstimeline/internal/domain/model"
)

// Ability types written for each damage category.
var categoryTypes = map[model.DamageCategory]int{
	model.CategoryPhysical: 1 << 7,
	model.CategoryMagical:  1 << 10,
	model.CategoryMixed:    1 << 5,
}

// EncodeReport writes r as a report envelope with a single event page that
// DecodeReport reads back. Ability names go to the master data.
func EncodeReport(w io.Writer, r model.Report) error { //nolint:gocritic // hugeParam: report is a value
	code, fight := r.ID, r.FightID
	if fight != 0 {
		code = strings.TrimSuffix(code, "#"+strconv.Itoa(fight))
	}

	abilities := make(map[int]Ability)
	page := Page{Data: make([]eventJSON, 0, len(r.Events))}
	for _, e := range r.Events {
		if _, ok := abilities[e.AbilityID]; !ok {
			abilities[e.AbilityID] = Ability{GameID: e.AbilityID, Name: e.AbilityName, Type: categoryTypes[e.Category]}
		}
		page.Data = append(page.Data, eventJSON{
			Timestamp:         e.Timestamp,
			Type:              "damage",
			SourceID:          e.SourceID,
			TargetID:          e.TargetID,
			AbilityGameID:     e.AbilityID,
			Amount:            e.Amount,
			UnmitigatedAmount: e.UnmitigatedAmount,
		})
	}

	raw, err := json.Marshal(page)
	if err != nil {
		return errors.WithStack(err)
	}
	env := ReportJSON{
		Code:      code,
		FightID:   fight,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Events:    raw,
	}
	for _, a := range abilities {
		env.Abilities = append(env.Abilities, a)
	}
	sort.Slice(env.Abilities, func(i, j int) bool { return env.Abilities[i].GameID < env.Abilities[j].GameID })

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.WithStack(enc.Encode(env))
}

// FormatTimeline writes entries in the format ParseTimeline reads. Hit counts
// above one become an "xN" name suffix.
func FormatTimeline(w io.Writer, entries []model.ScriptEntry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		name := e.Name
		if e.HitCount > 1 {
			name += " x" + strconv.Itoa(e.HitCount)
		}
		line := strconv.FormatFloat(e.Time, 'f', 1, 64) + " " + strconv.Quote(name)
		if e.Duration > 0 {
			line += " duration " + strconv.FormatFloat(e.Duration, 'f', -1, 64)
		}
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(bw.Flush())
}
