package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/portion-tracker-go/log"
	"github.com/mpapenbr/portion-tracker-go/pkg/compliance"
	"github.com/mpapenbr/portion-tracker-go/pkg/model"
	"github.com/mpapenbr/portion-tracker-go/pkg/race"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
)

type (
	raceRequest struct {
		Name string `json:"name"`
		// YYYY-MM-DD, defaults to today
		Date omit.Val[string] `json:"date"`
	}
	raceResponse struct {
		Name          string `json:"name"`
		Date          string `json:"date"`
		DaysRemaining int    `json:"daysRemaining"`
		Headline      string `json:"headline"`
	}
	groupRequirement struct {
		model.FoodGroup
		Required decimal.Decimal `json:"required"`
		Slots    int             `json:"slots"`
	}
	dayTypeResponse struct {
		DayType model.DayType      `json:"dayType"`
		Groups  []groupRequirement `json:"groups"`
	}
	// complianceRequest carries the number of checked half portions per group
	complianceRequest struct {
		DayType model.DayType          `json:"dayType"`
		Checked map[model.GroupKey]int `json:"checked"`
	}
	recordResponse struct {
		Date    string         `json:"date"`
		DayType model.DayType  `json:"dayType"`
		Total   int            `json:"total"`
		Groups  map[string]int `json:"groups"`
	}
	deleteResponse struct {
		Deleted bool `json:"deleted"`
	}
)

func (h *Handler) HandleAPIListRaces(w http.ResponseWriter, r *http.Request) {
	today := h.svc.Today()
	jsonOK(w, lo.Map(h.races.List(today), func(c model.Countdown, _ int) raceResponse {
		return toRaceResponse(c)
	}))
}

func (h *Handler) HandleAPIAddRace(w http.ResponseWriter, r *http.Request) {
	var req raceRequest
	if err := strictDecode(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		jsonError(w, race.ErrEmptyName.Error(), http.StatusBadRequest)
		return
	}
	today := h.svc.Today()
	date := today
	if v, ok := req.Date.Get(); ok {
		var err error
		if date, err = time.Parse(time.DateOnly, v); err != nil {
			jsonError(w, "invalid date: "+v, http.StatusBadRequest)
			return
		}
	}
	h.races.Add(name, date)
	log.GetFromContext(r.Context()).Info("race added",
		log.String("name", name), log.String("date", store.DateKey(date)))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	//nolint:errcheck // client gone
	json.NewEncoder(w).Encode(toRaceResponse(model.Countdown{
		Race:          model.Race{Name: name, Date: model.DateOnly(date)},
		DaysRemaining: race.DaysBetween(today, date),
	}))
}

func (h *Handler) HandleAPIRemoveRace(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.races.Remove(name) {
		jsonError(w, "race not found: "+name, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAPIDayTypes(w http.ResponseWriter, r *http.Request) {
	ret := lo.Map(model.DayTypes(), func(d model.DayType, _ int) dayTypeResponse {
		required, _ := d.RequiredPortions()
		groups := make([]groupRequirement, model.NumFoodGroups)
		for i, g := range model.FoodGroups {
			gc := model.GroupCompliance{Required: required[i]}
			groups[i] = groupRequirement{FoodGroup: g, Required: required[i], Slots: gc.Slots()}
		}
		return dayTypeResponse{DayType: d, Groups: groups}
	})
	jsonOK(w, ret)
}

func (h *Handler) HandleAPICompliance(w http.ResponseWriter, r *http.Request) {
	c, ok := h.evaluateRequest(w, r)
	if !ok {
		return
	}
	jsonOK(w, c)
}

func (h *Handler) HandleAPIListRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.Records(r.Context())
	if err != nil {
		h.apiFailed(w, r, err)
		return
	}
	jsonOK(w, lo.Map(recs, func(rec *model.ComplianceRecord, _ int) recordResponse {
		return toRecordResponse(rec)
	}))
}

func (h *Handler) HandleAPISaveRecord(w http.ResponseWriter, r *http.Request) {
	c, ok := h.evaluateRequest(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Save(r.Context(), c)
	if err != nil {
		h.apiFailed(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	//nolint:errcheck // client gone
	json.NewEncoder(w).Encode(toRecordResponse(rec))
}

func (h *Handler) HandleAPIDeleteToday(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.DeleteToday(r.Context())
	if err != nil {
		h.apiFailed(w, r, err)
		return
	}
	jsonOK(w, deleteResponse{Deleted: found})
}

//nolint:whitespace // can't make both editor and linter happy
func (h *Handler) evaluateRequest(w http.ResponseWriter, r *http.Request) (
	*model.Compliance, bool,
) {
	var req complianceRequest
	if err := strictDecode(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	for k := range req.Checked {
		if model.GroupIndex(k) < 0 {
			jsonError(w, "unknown food group: "+string(k), http.StatusBadRequest)
			return nil, false
		}
	}
	c, err := h.svc.Evaluate(r.Context(), req.DayType, req.Checked)
	if errors.Is(err, compliance.ErrUnknownDayType) {
		jsonError(w, err.Error()+": "+string(req.DayType), http.StatusBadRequest)
		return nil, false
	}
	if err != nil {
		h.apiFailed(w, r, err)
		return nil, false
	}
	return c, true
}

func (h *Handler) apiFailed(w http.ResponseWriter, r *http.Request, err error) {
	log.GetFromContext(r.Context()).Error("request failed", log.ErrorField(err))
	jsonError(w, err.Error(), http.StatusInternalServerError)
}

func toRaceResponse(c model.Countdown) raceResponse {
	return raceResponse{
		Name:          c.Name,
		Date:          store.DateKey(c.Date),
		DaysRemaining: c.DaysRemaining,
		Headline:      race.Headline(c),
	}
}

func toRecordResponse(rec *model.ComplianceRecord) recordResponse {
	groups := make(map[string]int, model.NumFoodGroups)
	for i, g := range model.FoodGroups {
		groups[string(g.Key)] = rec.Groups[i]
	}
	return recordResponse{
		Date:    store.DateKey(rec.Date),
		DayType: rec.DayType,
		Total:   rec.Total,
		Groups:  groups,
	}
}

// strictDecode decodes the JSON body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck // client gone
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	//nolint:errcheck // client gone
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
