package httpx

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
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("get order: %w", ErrNotFound), http.StatusNotFound},
		{"duplicate", ErrDuplicate, http.StatusConflict},
		{"conflict", ErrConflict, http.StatusConflict},
		{"validation", ErrValidation, http.StatusBadRequest},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"unknown", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)
			assert.Equal(t, tc.status, rr.Code)

			var body ProblemDetail
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.status, body.Status)
		})
	}
}

func TestRespondErrorRendersFieldErrors(t *testing.T) {
	err := fmt.Errorf("create product: %w", FieldErrors{"price": "must be greater than 0", "name": "is required"})

	rr := httptest.NewRecorder()
	RespondError(rr, err)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "is required", body.Errors["name"])
	assert.Equal(t, "must be greater than 0", body.Errors["price"])
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestFieldErrorsMessagesAreSorted(t *testing.T) {
	f := FieldErrors{"zip_code": "z", "city": "c"}
	assert.Equal(t, []string{"c", "z"}, f.Messages())
	assert.Equal(t, "validation failed: city: c; zip_code: z", f.Error())
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	err := DecodeJSON(req, &target)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, DecodeJSON(req, &target))
	assert.Equal(t, "a", target.Name)
}

func TestTextSetsAttachmentHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	Text(rr, "invoice-ORD-1.txt", "INVOICE")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="invoice-ORD-1.txt"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "INVOICE", rr.Body.String())
}
