package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/uidetect/internal/domain"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]int{"resolved": 3})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]any{"resolved": float64(3)}, resp.Data)
}

func TestErrorFromDomain(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation",
			err:        domain.ErrValidationField("fields", "at least one field is required"),
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.ErrCodeValidation,
		},
		{
			name:       "wrapped page unavailable",
			err:        fmt.Errorf("opening: %w", domain.ErrPageUnavailable("https://x.test", errors.New("dns"))),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   domain.ErrCodePageUnavailable,
		},
		{
			name:       "plain error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   domain.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ErrorFromDomain(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		HTML string `json:"html"`
	}

	var v body
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"html": "<p>hi</p>"}`))
	require.NoError(t, DecodeJSON(req, &v))
	assert.Equal(t, "<p>hi</p>", v.HTML)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown": 1}`))
	assert.Equal(t, domain.ErrCodeValidation, domain.GetErrorCode(DecodeJSON(req, &v)))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.Equal(t, domain.ErrCodeValidation, domain.GetErrorCode(DecodeJSON(req, &v)))

	rec := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"html": "`+strings.Repeat("x", 100)+`"}`))
	req.Body = http.MaxBytesReader(rec, req.Body, 10)
	err := DecodeJSON(req, &v)
	assert.Equal(t, http.StatusRequestEntityTooLarge, domain.GetHTTPStatus(err))
}
