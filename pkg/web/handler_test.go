//nolint:funlen // ok for this test code
package web

import (
	"context"
	"encoding/json"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/portion-tracker-go/pkg/model"
	"github.com/mpapenbr/portion-tracker-go/pkg/race"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/impl/memory"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/impl/xlsx"
	"github.com/mpapenbr/portion-tracker-go/pkg/tracker"
)

var (
	now       = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	tokenRe   = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)
	checkedRe = regexp.MustCompile(`type="checkbox"[^>]* checked>`)
)

func newTestHandler(t *testing.T, s store.RecordStore, opts ...Option) http.Handler {
	t.Helper()
	if s == nil {
		var err error
		s, err = memory.New(nil, nil)
		assert.NoError(t, err)
	}
	svc := tracker.NewService(
		tracker.WithStore(s),
		tracker.WithClock(func() time.Time { return now }),
	)
	h, err := NewHandler(append([]Option{WithService(svc), WithRaces(race.NewTracker())},
		opts...)...)
	assert.NoError(t, err)
	return h.Routes()
}

// formClient carries the csrf cookie and token between form posts
type formClient struct {
	t       *testing.T
	h       http.Handler
	cookies []*http.Cookie
	token   string
}

func newFormClient(t *testing.T, h http.Handler) *formClient {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	m := tokenRe.FindStringSubmatch(rec.Body.String())
	assert.Len(t, m, 2)
	return &formClient{
		t:       t,
		h:       h,
		cookies: rec.Result().Cookies(),
		token:   html.UnescapeString(m[1]),
	}
}

func (c *formClient) post(path string, form url.Values) (int, string) {
	c.t.Helper()
	form.Set(csrfFieldName, c.token)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	return rec.Code, html.UnescapeString(rec.Body.String())
}

func seqStrings(n int) []string {
	ret := make([]string, n)
	for i := range ret {
		ret[i] = strconv.Itoa(i + 1)
	}
	return ret
}

func countChecked(body string) int {
	return len(checkedRe.FindAllString(body, -1))
}

func TestIndex(t *testing.T) {
	h := newTestHandler(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	body := rec.Body.String()
	assert.Contains(t, body, "No hay carreras registradas aún.")
	for _, g := range model.FoodGroups {
		assert.Contains(t, body, g.Name)
	}
	// (4+10+4+2+1+1.5+1)*2 boxes for the default day type
	assert.Equal(t, 47, strings.Count(body, `type="checkbox"`))
	assert.Contains(t, body, ">0%</h2>")
	assert.NotContains(t, body, "/records/download")
}

func TestFormPostWithoutToken(t *testing.T) {
	h := newTestHandler(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/tracker",
		strings.NewReader("day_type=3+entrenamientos"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTrackerForm(t *testing.T) {
	c := newFormClient(t, newTestHandler(t, nil))

	tests := []struct {
		name      string
		form      url.Values
		wantTotal string
		checked   int
	}{
		{
			name:      "nothing checked",
			form:      url.Values{"day_type": {string(model.DayTypeHeavy)}},
			wantTotal: ">0%</h2>",
			checked:   0,
		},
		{
			name: "two cereal halves",
			form: url.Values{
				"day_type":    {string(model.DayTypeTraining)},
				"g_cereales":  {"1", "2"},
				"g_proteinas": {"x"},
			},
			// 1 of 23.5 portions
			wantTotal: ">4%</h2>",
			checked:   2,
		},
		{
			name: "duplicates count once",
			form: url.Values{
				"day_type":   {string(model.DayTypeTraining)},
				"g_cereales": {"1", "1", "1"},
			},
			wantTotal: ">2%</h2>",
			checked:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := c.post("/tracker", tt.form)
			assert.Equal(t, http.StatusOK, code)
			assert.Contains(t, body, tt.wantTotal)
			assert.Equal(t, tt.checked, countChecked(body))
		})
	}
}

func TestTrackerForm_AllChecked(t *testing.T) {
	c := newFormClient(t, newTestHandler(t, nil))
	form := url.Values{"day_type": {string(model.DayTypeTraining)}}
	required, _ := model.DayTypeTraining.RequiredPortions()
	for i, g := range model.FoodGroups {
		gc := model.GroupCompliance{Required: required[i]}
		for _, slot := range seqStrings(gc.Slots()) {
			form.Add("g_"+string(g.Key), slot)
		}
	}
	code, body := c.post("/tracker", form)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `<h2 style="color:green">100%</h2>`)
	assert.Equal(t, 47, countChecked(body))
}

func TestRaceForm(t *testing.T) {
	c := newFormClient(t, newTestHandler(t, nil))

	code, body := c.post("/races", url.Values{
		"race_name": {"Monza"},
		"race_date": {now.AddDate(0, 0, 5).Format(time.DateOnly)},
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Carrera 'Monza' agregada para el 23 de octubre de 2026.")
	assert.Contains(t, body, "FALTAN 5 DÍAS PARA MONZA")

	_, body = c.post("/races", url.Values{"race_name": {"  "}})
	assert.Contains(t, body, "El nombre de la carrera no puede estar vacío")

	_, body = c.post("/races", url.Values{"race_name": {"Spa"}, "race_date": {"tomorrow"}})
	assert.Contains(t, body, "Fecha de carrera inválida")

	_, body = c.post("/races/delete", url.Values{"name": {"Monza"}})
	assert.Contains(t, body, "Carrera 'Monza' eliminada.")
	assert.NotContains(t, body, "FALTAN")
	assert.Contains(t, body, "No hay carreras registradas aún.")

	_, body = c.post("/races/delete", url.Values{"name": {"Monza"}})
	assert.Contains(t, body, "La carrera 'Monza' no existe.")
}

func TestRecordForm_SaveThenDelete(t *testing.T) {
	s, _ := memory.New(nil, nil)
	c := newFormClient(t, newTestHandler(t, s))

	_, body := c.post("/records", url.Values{
		"day_type":   {string(model.DayTypeTraining)},
		"g_cereales": {"1", "2"},
	})
	assert.Contains(t, body, "✅ Datos guardados exitosamente.")
	recs, _ := s.LoadAll(t.Context())
	assert.Len(t, recs, 1)
	assert.Equal(t, model.DateOnly(now), recs[0].Date)
	assert.Equal(t, 25, recs[0].Groups[0])

	_, body = c.post("/records/delete", url.Values{})
	assert.Contains(t, body, "✅ Registro de hoy eliminado correctamente.")
	recs, _ = s.LoadAll(t.Context())
	assert.Empty(t, recs)

	_, body = c.post("/records/delete", url.Values{})
	assert.Contains(t, body, "⚠️ No se encontró un registro para hoy.")
}

func TestDownload(t *testing.T) {
	t.Run("not supported", func(t *testing.T) {
		h := newTestHandler(t, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/download", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("xlsx", func(t *testing.T) {
		s, err := xlsx.New(
			[]store.Option{store.WithLocation(filepath.Join(t.TempDir(), xlsx.DefaultFile))},
			nil)
		assert.NoError(t, err)
		h := newTestHandler(t, s)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/download", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, "no file yet")

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotContains(t, rec.Body.String(), "/records/download", "no link without file")

		c := newFormClient(t, h)
		_, body := c.post("/records", url.Values{})
		assert.Contains(t, body, "/records/download")

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/download", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, xlsx.ContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), xlsx.DefaultFile)
		assert.NotZero(t, rec.Body.Len())
	})
}

func apiCall(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIRaces(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := apiCall(t, h, http.MethodPost, "/api/races", `{"name":"Monza","date":"2026-10-23"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	var created raceResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, raceResponse{
		Name: "Monza", Date: "2026-10-23", DaysRemaining: 5,
		Headline: "FALTAN 5 DÍAS PARA MONZA",
	}, created)

	rec = apiCall(t, h, http.MethodPost, "/api/races", `{"name":"Spa"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = apiCall(t, h, http.MethodGet, "/api/races", "")
	var list []raceResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
	assert.Equal(t, 0, list[1].DaysRemaining)

	rec = apiCall(t, h, http.MethodPost, "/api/races", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = apiCall(t, h, http.MethodPost, "/api/races", `{"name":"x","date":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = apiCall(t, h, http.MethodPost, "/api/races", `{"name":"x","when":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = apiCall(t, h, http.MethodDelete, "/api/races/Monza", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = apiCall(t, h, http.MethodDelete, "/api/races/Monza", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIDayTypes(t *testing.T) {
	h := newTestHandler(t, nil)
	rec := apiCall(t, h, http.MethodGet, "/api/day-types", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var got []struct {
		DayType model.DayType `json:"dayType"`
		Groups  []struct {
			Key      model.GroupKey `json:"key"`
			Required string         `json:"required"`
			Slots    int            `json:"slots"`
		} `json:"groups"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	assert.Equal(t, model.DayTypeTraining, got[0].DayType)
	assert.Equal(t, model.GroupGrasas, got[0].Groups[5].Key)
	assert.Equal(t, "1.5", got[0].Groups[5].Required)
	assert.Equal(t, 3, got[0].Groups[5].Slots)
	assert.Equal(t, "2", got[1].Groups[4].Required)
}

func TestAPICompliance(t *testing.T) {
	h := newTestHandler(t, nil)
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantTotal int
	}{
		{"full", `{"dayType":"3 entrenamientos","checked":{"cereales":10,"proteinas":20,` +
			`"verduras":8,"frutas":4,"lacteos":4,"grasas":3,"aceites":2}}`, http.StatusOK, 100},
		{"clamped", `{"dayType":"3 entrenamientos","checked":{"cereales":99}}`, http.StatusOK, 20},
		{"unknown day type", `{"dayType":"rest","checked":{}}`, http.StatusBadRequest, 0},
		{"unknown group", `{"dayType":"3 entrenamientos","checked":{"pizza":1}}`,
			http.StatusBadRequest, 0},
		{"broken json", `{`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := apiCall(t, h, http.MethodPost, "/api/compliance", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			var c model.Compliance
			assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
			assert.Equal(t, tt.wantTotal, c.Total)
		})
	}
}

func TestAPIRecords(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := apiCall(t, h, http.MethodPost, "/api/records",
		`{"dayType":"1/2 entrenamientos","checked":{"frutas":4}}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	var saved recordResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, "2026-10-18", saved.Date)
	assert.Equal(t, 100, saved.Groups["frutas"])
	assert.Equal(t, 9, saved.Total)

	rec = apiCall(t, h, http.MethodGet, "/api/records", "")
	var list []recordResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = apiCall(t, h, http.MethodDelete, "/api/records/today", "")
	assert.JSONEq(t, `{"deleted":true}`, rec.Body.String())
	rec = apiCall(t, h, http.MethodDelete, "/api/records/today", "")
	assert.JSONEq(t, `{"deleted":false}`, rec.Body.String())
}

func TestAPICORS(t *testing.T) {
	h := newTestHandler(t, nil, WithAPIOrigins([]string{"http://localhost:3000"}))
	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"configured origin", "http://localhost:3000", "http://localhost:3000"},
		{"same origin", "http://example.com", "http://example.com"},
		{"foreign origin", "https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/records", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestAPICrossSiteWrites(t *testing.T) {
	ctx := context.Background()
	s, err := memory.New(nil, nil)
	assert.NoError(t, err)
	h := newTestHandler(t, s, WithAPIOrigins([]string{"http://localhost:3000"}))
	body := `{"dayType":"1/2 entrenamientos","checked":{"frutas":4}}`

	call := func(method, path, contentType, origin, body string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		origin      string
		want        int
	}{
		{"plain text from foreign site", http.MethodPost, "/api/records",
			"text/plain", "https://evil.example", http.StatusForbidden},
		{"json from foreign site", http.MethodPost, "/api/records",
			"application/json", "https://evil.example", http.StatusForbidden},
		{"plain text without origin", http.MethodPost, "/api/records",
			"text/plain", "", http.StatusUnsupportedMediaType},
		{"form encoded race", http.MethodPost, "/api/races",
			"application/x-www-form-urlencoded", "", http.StatusUnsupportedMediaType},
		{"delete from foreign site", http.MethodDelete, "/api/records/today",
			"", "https://evil.example", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, call(tt.method, tt.path, tt.contentType, tt.origin, body))
		})
	}
	recs, err := s.LoadAll(ctx)
	assert.NoError(t, err)
	assert.Empty(t, recs)

	assert.Equal(t, http.StatusCreated, call(http.MethodPost, "/api/records",
		"application/json; charset=utf-8", "http://example.com", body))
	assert.Equal(t, http.StatusCreated, call(http.MethodPost, "/api/records",
		"application/json", "http://localhost:3000", body))
	recs, err = s.LoadAll(ctx)
	assert.NoError(t, err)
	assert.Len(t, recs, 1, "upsert keeps one row per day")

	assert.Equal(t, http.StatusOK, call(http.MethodDelete, "/api/records/today",
		"", "http://localhost:3000", ""))
}
