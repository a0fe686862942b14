package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/content"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubContent struct {
	slug string
}

func (s *stubContent) Home(context.Context) (*content.Home, error) {
	return &content.Home{Promotions: []content.PromotionDTO{{Name: "Flash"}}}, nil
}

func (s *stubContent) ActivePromotions(context.Context) ([]content.PromotionDTO, error) {
	return []content.PromotionDTO{{Name: "Flash"}}, nil
}

func (s *stubContent) LegalPages(context.Context) ([]content.LegalLink, error) {
	return []content.LegalLink{{Slug: "faq", Title: "FAQ"}}, nil
}

func (s *stubContent) LegalPage(_ context.Context, slug string) (*content.LegalPageDTO, error) {
	s.slug = slug
	if slug != "faq" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "page not found")
	}
	return &content.LegalPageDTO{Slug: slug, Title: "FAQ"}, nil
}

func legalRequest(slug string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/content/legal/"+slug, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("slug", slug)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestContentHome(t *testing.T) {
	rec := httptest.NewRecorder()
	ContentHome(&stubContent{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/content", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"promotions"`)
	assert.Contains(t, rec.Body.String(), "Flash")
}

func TestContentLegalPage(t *testing.T) {
	svc := &stubContent{}
	rec := httptest.NewRecorder()
	ContentLegalPage(svc, nil).ServeHTTP(rec, legalRequest("faq"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "faq", svc.slug)

	rec = httptest.NewRecorder()
	ContentLegalPage(svc, nil).ServeHTTP(rec, legalRequest("privacy"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContentWithoutService(t *testing.T) {
	rec := httptest.NewRecorder()
	ContentPromotions(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/content/promotions", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
