package web

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/samber/lo"

	"github.com/mpapenbr/portion-tracker-go/log"
	"github.com/mpapenbr/portion-tracker-go/pkg/model"
	"github.com/mpapenbr/portion-tracker-go/pkg/race"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
)

const (
	flashSuccess = "success"
	flashWarning = "warning"
	flashError   = "error"

	msgSaved       = "✅ Datos guardados exitosamente."
	msgSaveFailed  = "❌ Error al guardar: %v"
	msgDeleted     = "✅ Registro de hoy eliminado correctamente."
	msgNotFound    = "⚠️ No se encontró un registro para hoy."
	msgDelFailed   = "❌ Error al borrar: %v"
	msgRaceAdded   = "Carrera '%s' agregada para el %s."
	msgRaceRemoved = "Carrera '%s' eliminada."
	msgRaceMissing = "⚠️ La carrera '%s' no existe."
	msgRaceName    = "❌ El nombre de la carrera no puede estar vacío."
	msgRaceDate    = "❌ Fecha de carrera inválida: %s"
)

type (
	flash struct {
		Kind string
		Text string
	}
	countdownView struct {
		Name     string
		Date     string
		Headline string
	}
	pageData struct {
		CSRFField  template.HTML
		Flash      *flash
		Today      string
		Countdowns []countdownView
		DayTypes   []model.DayType
		Compliance *model.Compliance
		CanExport  bool
	}
)

// formState is the tracker input carried by every form submission.
type formState struct {
	dayType model.DayType
	checked map[model.GroupKey]int
}

// parseFormState reads the day type radio and the checkbox groups. Each
// checkbox of group g is named g_<key> with its slot number as value.
func parseFormState(r *http.Request) formState {
	ret := formState{
		dayType: model.DayType(r.PostFormValue("day_type")),
		checked: map[model.GroupKey]int{},
	}
	if !ret.dayType.Valid() {
		ret.dayType = model.DayTypes()[0]
	}
	for _, g := range model.FoodGroups {
		slots := lo.Uniq(lo.FilterMap(r.PostForm["g_"+string(g.Key)],
			func(v string, _ int) (int, bool) {
				i, err := strconv.Atoi(v)
				return i, err == nil && i > 0
			}))
		ret.checked[g.Key] = len(slots)
	}
	return ret
}

func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, formState{dayType: model.DayTypes()[0]}, nil)
}

// HandleTracker recomputes the page for the submitted checkboxes.
func (h *Handler) HandleTracker(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	h.renderPage(w, r, parseFormState(r), nil)
}

func (h *Handler) HandleAddRace(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	state := parseFormState(r)
	name := strings.TrimSpace(r.PostFormValue("race_name"))
	if name == "" {
		h.renderPage(w, r, state, &flash{flashError, msgRaceName})
		return
	}
	date := h.svc.Today()
	if v := r.PostFormValue("race_date"); v != "" {
		var err error
		if date, err = time.Parse(time.DateOnly, v); err != nil {
			h.renderPage(w, r, state, &flash{flashError, fmt.Sprintf(msgRaceDate, v)})
			return
		}
	}
	h.races.Add(name, date)
	h.renderPage(w, r, state,
		&flash{flashSuccess, fmt.Sprintf(msgRaceAdded, name, race.LongDate(date))})
}

func (h *Handler) HandleRemoveRace(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	name := r.PostFormValue("name")
	msg := &flash{flashSuccess, fmt.Sprintf(msgRaceRemoved, name)}
	if !h.races.Remove(name) {
		msg = &flash{flashWarning, fmt.Sprintf(msgRaceMissing, name)}
	}
	h.renderPage(w, r, parseFormState(r), msg)
}

func (h *Handler) HandleSaveRecord(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	state := parseFormState(r)
	c, err := h.svc.Evaluate(r.Context(), state.dayType, state.checked)
	if err == nil {
		_, err = h.svc.Save(r.Context(), c)
	}
	msg := &flash{flashSuccess, msgSaved}
	if err != nil {
		msg = &flash{flashError, fmt.Sprintf(msgSaveFailed, err)}
	}
	h.renderPage(w, r, state, msg)
}

func (h *Handler) HandleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	var msg *flash
	found, err := h.svc.DeleteToday(r.Context())
	switch {
	case err != nil:
		msg = &flash{flashError, fmt.Sprintf(msgDelFailed, err)}
	case found:
		msg = &flash{flashSuccess, msgDeleted}
	default:
		msg = &flash{flashWarning, msgNotFound}
	}
	h.renderPage(w, r, parseFormState(r), msg)
}

// HandleDownload sends the backing file of the record store.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	exp, ok, err := h.svc.Export(r.Context(), &buf)
	if !ok || errors.Is(err, fs.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.GetFromContext(r.Context()).Error("export failed", log.ErrorField(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", exp.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	//nolint:errcheck // client gone
	buf.WriteTo(w)
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

//nolint:whitespace // can't make both editor and linter happy
func (h *Handler) renderPage(
	w http.ResponseWriter, r *http.Request, state formState, msg *flash,
) {
	l := log.GetFromContext(r.Context())
	c, err := h.svc.Evaluate(r.Context(), state.dayType, state.checked)
	if err != nil {
		l.Error("evaluate failed", log.ErrorField(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	today := h.svc.Today()
	data := pageData{
		CSRFField:  csrf.TemplateField(r),
		Flash:      msg,
		Today:      store.DateKey(today),
		DayTypes:   model.DayTypes(),
		Compliance: c,
		CanExport:  h.svc.CanExport(),
		Countdowns: lo.Map(h.races.List(today),
			func(c model.Countdown, _ int) countdownView {
				return countdownView{
					Name:     c.Name,
					Date:     store.DateKey(c.Date),
					Headline: race.Headline(c),
				}
			}),
	}
	var buf bytes.Buffer
	if err := h.render(&buf, "index.html", data); err != nil {
		l.Error("render failed", log.ErrorField(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	//nolint:errcheck // client gone
	buf.WriteTo(w)
}
