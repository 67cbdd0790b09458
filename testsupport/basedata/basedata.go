package basedata

import (
	"time"

	"github.com/mpapenbr/portion-tracker-go/pkg/model"
)

// TestDay is the fixed "today" used by tests
func TestDay() time.Time {
	return time.Date(2024, 4, 28, 0, 0, 0, 0, time.UTC)
}

func SampleRecord(date time.Time) *model.ComplianceRecord {
	return &model.ComplianceRecord{
		Date:    model.DateOnly(date),
		DayType: model.DayTypeTraining,
		Total:   40,
		Groups:  [model.NumFoodGroups]int{50, 30, 25, 100, 0, 33, 100},
	}
}

func FullRecord(date time.Time) *model.ComplianceRecord {
	return &model.ComplianceRecord{
		Date:    model.DateOnly(date),
		DayType: model.DayTypeHeavy,
		Total:   100,
		Groups:  [model.NumFoodGroups]int{100, 100, 100, 100, 100, 100, 100},
	}
}
