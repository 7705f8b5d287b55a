package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalo/portalo/internal/handler/dto"
	"github.com/portalo/portalo/internal/model"
)

func TestTrack_Created(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/public/track", "", `{"page_id":"`+freePage+`","event_type":"view","visitor_id":"v1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Zero(t, rec.Body.Len())

	require.Len(t, env.events.inserted, 1)
	e := env.events.inserted[0]
	assert.Equal(t, model.EventView, e.EventType)
	assert.Equal(t, "v1", *e.VisitorID)
}

func TestTrack_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
		field  string
	}{
		{"malformed json", `{"page_id":`, http.StatusBadRequest, dto.CodeInvalidJSON, ""},
		{"ttc out of range", `{"page_id":"` + freePage + `","event_type":"click","time_to_click_ms":400000}`, http.StatusBadRequest, dto.CodeValidation, "time_to_click_ms"},
		{"ttc not integer", `{"page_id":"` + freePage + `","event_type":"click","time_to_click_ms":1.5}`, http.StatusBadRequest, dto.CodeValidation, "time_to_click_ms"},
		{"unknown type", `{"page_id":"` + freePage + `","event_type":"hover"}`, http.StatusBadRequest, dto.CodeValidation, "event_type"},
		{"bad page id", `{"page_id":"abc","event_type":"view"}`, http.StatusBadRequest, dto.CodeValidation, "page_id"},
		{"too large", `{"page_id":"` + freePage + `","event_type":"view","referrer":"` + strings.Repeat("a", 20<<10) + `"}`, http.StatusRequestEntityTooLarge, dto.CodePayloadTooLarge, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()

			rec := env.do(t, http.MethodPost, "/public/track", "", tt.body)
			require.Equal(t, tt.status, rec.Code)

			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Code)
			if tt.field != "" {
				assert.Contains(t, body.Details, tt.field)
			}
			assert.Empty(t, env.events.inserted, "nothing is written on rejection")
		})
	}
}

func TestTrack_EnrichesFromHeaders(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodPost, "/public/track",
		strings.NewReader(`{"page_id":"`+freePage+`","event_type":"view","referrer":"https://t.co/x?utm=1#frag"}`))
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Safari/604.1")
	req.Header.Set("CF-IPCountry", "fr")
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, env.events.inserted, 1)
	e := env.events.inserted[0]
	assert.Equal(t, "FR", *e.Country)
	assert.Equal(t, model.DeviceTablet, *e.Device)
	assert.Equal(t, "Safari", *e.Browser)
	assert.Equal(t, "https://t.co/x", *e.Referrer)
}

func TestTrack_StoreFailure(t *testing.T) {
	env := newTestEnv()
	env.events.err = assert.AnError

	rec := env.do(t, http.MethodPost, "/public/track", "", `{"page_id":"`+freePage+`","event_type":"view"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, dto.CodeInternal, decodeError(t, rec).Code)
}
