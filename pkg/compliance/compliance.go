// Package compliance derives portion compliance percentages from checked half portions.
package compliance

import (
	"errors"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/portion-tracker-go/pkg/model"
)

var ErrUnknownDayType = errors.New("unknown day type")

//nolint:gochecknoglobals // constants for decimal math
var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// Percentage returns round(checked/required*100), rounding half to even.
// A non-positive required value yields 0.
func Percentage(checked, required decimal.Decimal) int {
	if !required.IsPositive() {
		return 0
	}
	return int(checked.Div(required).Mul(hundred).RoundBank(0).IntPart())
}

func Classify(pct int) model.Level {
	switch {
	case pct == 100:
		return model.LevelFull
	case pct >= 70:
		return model.LevelGood
	default:
		return model.LevelLow
	}
}

// Evaluate computes per group and total compliance for dayType.
// checkedHalves holds the number of checked half portions per group; missing
// groups count as 0 and values are clamped to the available checkboxes.
//
//nolint:whitespace // can't make both editor and linter happy
func Evaluate(
	dayType model.DayType,
	checkedHalves map[model.GroupKey]int,
) (*model.Compliance, error) {
	required, ok := dayType.RequiredPortions()
	if !ok {
		return nil, ErrUnknownDayType
	}
	groups := make([]model.GroupCompliance, model.NumFoodGroups)
	for i, g := range model.FoodGroups {
		gc := model.GroupCompliance{Group: g, Required: required[i]}
		gc.CheckedHalves = lo.Clamp(checkedHalves[g.Key], 0, gc.Slots())
		gc.Checked = half.Mul(decimal.NewFromInt(int64(gc.CheckedHalves)))
		gc.Percentage = Percentage(gc.Checked, gc.Required)
		gc.Level = Classify(gc.Percentage)
		groups[i] = gc
	}
	totalChecked := decimal.Sum(decimal.Zero,
		lo.Map(groups, func(g model.GroupCompliance, _ int) decimal.Decimal {
			return g.Checked
		})...)
	totalRequired := decimal.Sum(decimal.Zero, required[:]...)
	total := Percentage(totalChecked, totalRequired)
	return &model.Compliance{
		DayType: dayType,
		Groups:  groups,
		Total:   total,
		Level:   Classify(total),
	}, nil
}

// Record converts an evaluated compliance into the persisted row shape.
func Record(c *model.Compliance) model.ComplianceRecord {
	ret := model.ComplianceRecord{DayType: c.DayType, Total: c.Total}
	for _, g := range c.Groups {
		if idx := model.GroupIndex(g.Group.Key); idx >= 0 {
			ret.Groups[idx] = g.Percentage
		}
	}
	return ret
}
