package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Text  string `json:"text" validate:"required"`
	Limit int    `json:"limit" default:"25" validate:"gte=1,lte=100"`
}

func newContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestReadAndValidateRequestDefaults(t *testing.T) {
	c, _ := newContext(`{"text": "BTC long"}`)
	req := &sampleRequest{}
	assert.Nil(t, ReadAndValidateRequest(c, req))
	assert.Equal(t, 25, req.Limit)
}

func TestReadAndValidateRequestReportsWireNames(t *testing.T) {
	c, _ := newContext(`{"limit": 500}`)
	verr := ReadAndValidateRequest(c, &sampleRequest{})
	errs, ok := verr.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "text", errs[0].Field)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "limit", errs[1].Field)
	assert.Equal(t, "100", errs[1].Params["max"])

	c, _ = newContext(`{"text":`)
	errs = ReadAndValidateRequest(c, &sampleRequest{}).([]ValidationError)
	assert.Equal(t, "ERR_MALFORMED", errs[0].Code)
}

func TestAppErrorResponse(t *testing.T) {
	c, rec := newContext("")
	require.NoError(t, AppErrorResponse(c, FieldError("from", "from must precede to")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "from", body.Data[0].Field)

	c, rec = newContext("")
	require.NoError(t, AppErrorResponse(c, errors.New("dial tcp 10.0.0.1: refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")
}
