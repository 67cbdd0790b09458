package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	GroupKey string
	DayType  string
	Level    string
)

const (
	GroupCereales   GroupKey = "cereales"
	GroupProteinas  GroupKey = "proteinas"
	GroupVerduras   GroupKey = "verduras"
	GroupFrutas     GroupKey = "frutas"
	GroupLacteos    GroupKey = "lacteos"
	GroupGrasas     GroupKey = "grasas"
	GroupAceites    GroupKey = "aceites"
	NumFoodGroups            = 7
	DayTypeTraining DayType  = "1/2 entrenamientos"
	DayTypeHeavy    DayType  = "3 entrenamientos"
	LevelFull       Level    = "full"
	LevelGood       Level    = "good"
	LevelLow        Level    = "low"
)

type FoodGroup struct {
	Key   GroupKey `json:"key"`
	Name  string   `json:"name"`
	Emoji string   `json:"emoji"`
}

// FoodGroups lists the groups in record column order.
//
//nolint:gochecknoglobals // fixed table
var FoodGroups = [NumFoodGroups]FoodGroup{
	{Key: GroupCereales, Name: "Cereales / Carbohidratos", Emoji: "🍞"},
	{Key: GroupProteinas, Name: "Proteínas / Carnes", Emoji: "🍗"},
	{Key: GroupVerduras, Name: "Verduras generales", Emoji: "🥦"},
	{Key: GroupFrutas, Name: "Frutas", Emoji: "🍎"},
	{Key: GroupLacteos, Name: "Lácteos", Emoji: "🧀"},
	{Key: GroupGrasas, Name: "ARL o Grasas", Emoji: "🥑"},
	{Key: GroupAceites, Name: "Aceites", Emoji: "🥒"},
}

// portions per day type, same order as FoodGroups
//
//nolint:gochecknoglobals // fixed table
var portionTable = map[DayType][NumFoodGroups]string{
	DayTypeTraining: {"4", "10", "4", "2", "1", "1.5", "1"},
	DayTypeHeavy:    {"5", "10", "4", "2", "2", "1.5", "1"},
}

// DayTypes returns the known day types in display order.
func DayTypes() []DayType {
	return []DayType{DayTypeTraining, DayTypeHeavy}
}

func (d DayType) Valid() bool {
	_, ok := portionTable[d]
	return ok
}

// RequiredPortions returns the portions required per group (FoodGroups order).
// The second value is false for unknown day types.
func (d DayType) RequiredPortions() ([NumFoodGroups]decimal.Decimal, bool) {
	var ret [NumFoodGroups]decimal.Decimal
	raw, ok := portionTable[d]
	if !ok {
		return ret, false
	}
	for i := range raw {
		ret[i] = decimal.RequireFromString(raw[i])
	}
	return ret, true
}

func GroupIndex(key GroupKey) int {
	for i := range FoodGroups {
		if FoodGroups[i].Key == key {
			return i
		}
	}
	return -1
}

func (l Level) Color() string {
	switch l {
	case LevelFull:
		return "green"
	case LevelGood:
		return "#8BC34A"
	default:
		return "#CCCCCC"
	}
}

type GroupCompliance struct {
	Group FoodGroup `json:"group"`
	// number of half portions checked
	CheckedHalves int             `json:"checkedHalves"`
	Checked       decimal.Decimal `json:"checked"`
	Required      decimal.Decimal `json:"required"`
	Percentage    int             `json:"percentage"`
	Level         Level           `json:"level"`
}

// Slots is the number of half portion checkboxes offered for the group.
func (g GroupCompliance) Slots() int {
	return int(g.Required.Mul(decimal.NewFromInt(2)).IntPart())
}

type Compliance struct {
	DayType DayType           `json:"dayType"`
	Groups  []GroupCompliance `json:"groups"`
	Total   int               `json:"total"`
	Level   Level             `json:"level"`
}

// ComplianceRecord is the persisted result of one tracked day.
type ComplianceRecord struct {
	Date    time.Time          `json:"date" yaml:"date"`
	DayType DayType            `json:"dayType" yaml:"dayType"`
	Total   int                `json:"total" yaml:"total"`
	Groups  [NumFoodGroups]int `json:"groups" yaml:"groups"`
}

// DateOnly normalizes t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
