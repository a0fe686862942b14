package content

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const homeCacheName = "home"

// Service serves the read-only storefront content.
type Service interface {
	Home(ctx context.Context) (*Home, error)
	ActivePromotions(ctx context.Context) ([]PromotionDTO, error)
	LegalPages(ctx context.Context) ([]LegalLink, error)
	LegalPage(ctx context.Context, slug string) (*LegalPageDTO, error)
}

// Cache is the redis surface for the home payload; *redis.Client satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	ContentKey(name string) string
}

type ServiceParams struct {
	Repo *Repository
	// Cache is optional; a nil cache or a non-positive CacheTTL reads through.
	Cache    Cache
	CacheTTL time.Duration
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     *Repository
	cache    Cache
	cacheTTL time.Duration
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "content repository required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.CacheTTL <= 0 {
		p.Cache = nil
	}
	return &service{repo: p.Repo, cache: p.Cache, cacheTTL: p.CacheTTL, logg: p.Logger, now: p.Now}, nil
}

// Home reads the layout blocks. A cached copy may lag promotion windows by up
// to the cache TTL.
func (s *service) Home(ctx context.Context) (*Home, error) {
	if home, ok := s.cachedHome(ctx); ok {
		return home, nil
	}
	rows, err := s.repo.loadHome(ctx, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load content")
	}
	home := newHome(rows)
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, s.cache.ContentKey(homeCacheName), home, s.cacheTTL); err != nil {
			s.warn(ctx, "content.cache_write_failed", err)
		}
	}
	return home, nil
}

func (s *service) cachedHome(ctx context.Context) (*Home, bool) {
	if s.cache == nil {
		return nil, false
	}
	var home Home
	found, err := s.cache.GetJSON(ctx, s.cache.ContentKey(homeCacheName), &home)
	if err != nil {
		s.warn(ctx, "content.cache_read_failed", err)
		return nil, false
	}
	return &home, found
}

func (s *service) ActivePromotions(ctx context.Context) ([]PromotionDTO, error) {
	rows, err := s.repo.ActivePromotions(ctx, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promotions")
	}
	return newPromotions(rows), nil
}

func (s *service) LegalPages(ctx context.Context) ([]LegalLink, error) {
	rows, err := s.repo.LegalPages(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list legal pages")
	}
	return newLegalLinks(rows), nil
}

func (s *service) LegalPage(ctx context.Context, slug string) (*LegalPageDTO, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	page, err := s.repo.FindLegalPage(ctx, slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "page not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load legal page")
	}
	return &LegalPageDTO{Slug: page.Slug, Title: page.Title, Body: page.Body, UpdatedAt: page.UpdatedAt}, nil
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
