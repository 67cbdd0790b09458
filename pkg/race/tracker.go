package race

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mpapenbr/portion-tracker-go/pkg/model"
)

var ErrEmptyName = errors.New("race name must not be empty")

const day = 24 * time.Hour

// Tracker holds upcoming races in memory. Entries are keyed by name and kept in
// insertion order.
type Tracker struct {
	mu    sync.RWMutex
	races []model.Race
}

func NewTracker() *Tracker {
	return &Tracker{races: []model.Race{}}
}

// Add inserts a race or replaces the date of an existing race with the same name.
func (t *Tracker) Add(name string, date time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	date = model.DateOnly(date)
	for i := range t.races {
		if t.races[i].Name == name {
			t.races[i].Date = date
			return
		}
	}
	t.races = append(t.races, model.Race{Name: name, Date: date})
}

// Remove deletes the race with the given name and reports whether it existed.
func (t *Tracker) Remove(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.races {
		if t.races[i].Name == name {
			t.races = append(t.races[:i], t.races[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.races)
}

// List returns a countdown for every race relative to today.
func (t *Tracker) List(today time.Time) []model.Countdown {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ret := make([]model.Countdown, len(t.races))
	for i, r := range t.races {
		ret[i] = model.Countdown{Race: r, DaysRemaining: DaysBetween(today, r.Date)}
	}
	return ret
}

// DaysBetween returns the number of calendar days from a to b (negative if b is
// before a).
func DaysBetween(a, b time.Time) int {
	return int(model.DateOnly(b).Sub(model.DateOnly(a)) / day)
}

// Headline is the countdown banner shown for a race.
func Headline(c model.Countdown) string {
	return fmt.Sprintf("FALTAN %d DÍAS PARA %s", c.DaysRemaining, strings.ToUpper(c.Name))
}

//nolint:gochecknoglobals // month names for display
var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio",
	"agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// LongDate formats t as "02 de enero de 2006" with spanish month names.
func LongDate(t time.Time) string {
	return fmt.Sprintf("%02d de %s de %d", t.Day(), monthNames[t.Month()-1], t.Year())
}
