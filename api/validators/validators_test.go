package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type promoBody struct {
	Code      string    `json:"code" validate:"required,promocode,max=12"`
	Percent   int       `json:"discount_percentage" validate:"required,min=1,max=100"`
	ValidFrom time.Time `json:"valid_from" validate:"required"`
	ValidTo   time.Time `json:"valid_to" validate:"required,gtfield=ValidFrom"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	var body promoBody
	err := DecodeJSONBody(post(`{"code":"SPRING-10","discount_percentage":10,"valid_from":"2026-01-01T00:00:00Z","valid_to":"2026-02-01T00:00:00Z"}`), &body)
	require.NoError(t, err)
	assert.Equal(t, "SPRING-10", body.Code)
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	var body promoBody
	err := DecodeJSONBody(post(`{"code":"spring 10!","discount_percentage":150,"valid_from":"2026-02-01T00:00:00Z","valid_to":"2026-01-01T00:00:00Z"}`), &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	assert.Contains(t, details["code"], "letters, digits")
	assert.Equal(t, "must be at most 100", details["discount_percentage"])
	assert.Equal(t, "must be after ValidFrom", details["valid_to"])
}

func TestDecodeJSONBodyRejectsUnknownAndTrailing(t *testing.T) {
	var body promoBody
	err := DecodeJSONBody(post(`{"code":"A","coupon":"x"}`), &body)
	require.Error(t, err)
	assert.Equal(t, map[string]string{"coupon": "is not allowed"}, pkgerrors.As(err).Details())

	err = DecodeJSONBody(post(`{"code":"A"} {"code":"B"}`), &body)
	require.Error(t, err)
	assert.Contains(t, pkgerrors.As(err).Message(), "single JSON object")
}

func TestDecodeJSONBodyEmptyAndOversized(t *testing.T) {
	var body promoBody
	err := DecodeJSONBody(post(""), &body)
	require.Error(t, err)
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())

	huge := `{"code":"` + strings.Repeat("A", MaxBodyBytes) + `"}`
	err = DecodeJSONBody(post(huge), &body)
	require.Error(t, err)
	assert.Equal(t, "request body too large", pkgerrors.As(err).Message())
}

func TestSanitizeStringCountsRunes(t *testing.T) {
	assert.Equal(t, "héllo", SanitizeString("  héllo\x00 ", 10))
	assert.Equal(t, "café", SanitizeString("café au lait", 4))
	assert.Equal(t, "line one\nline two", SanitizeString("line one\nline two", 0))
}

func TestParseUUIDParam(t *testing.T) {
	_, err := ParseUUIDParam("not-a-uuid", "orderID")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryIntBounds(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=0", nil)
	_, err := ParseQueryInt(r, "page", 1, 1, 1000)
	require.Error(t, err)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	v, err := ParseQueryInt(r, "page", 1, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
