package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/smallbiznis/macrolog/internal/catalog/domain"
	"github.com/smallbiznis/macrolog/internal/config"
	obsmetrics "github.com/smallbiznis/macrolog/internal/observability/metrics"
	obstracing "github.com/smallbiznis/macrolog/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	source     string
	httpClient *http.Client
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics

	mu     sync.Mutex
	loaded bool
	items  []domain.FoodItem
	byName map[string]domain.FoodItem
}

func New(p Params) domain.Service {
	client := &http.Client{Timeout: p.Cfg.Catalog.Timeout}
	return &Service{
		source:     p.Cfg.Catalog.Source,
		httpClient: obstracing.WrapHTTPClient(client),
		log:        p.Log.Named("catalog.service"),
		obsMetrics: p.ObsMetrics,
	}
}

// NewWithClient builds a catalog bound to an explicit source and HTTP client.
func NewWithClient(source string, client *http.Client, log *zap.Logger) *Service {
	if client == nil {
		client = http.DefaultClient
	}
	return &Service{
		source:     source,
		httpClient: client,
		log:        log.Named("catalog.service"),
	}
}

func (s *Service) Load(ctx context.Context) ([]domain.FoodItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.snapshot(), nil
	}

	items, err := s.fetch(ctx)
	if err != nil {
		s.log.Warn("reference catalog unavailable", zap.String("source", s.source), zap.Error(err))
		s.obsMetrics.RecordCatalogLoad(ctx, "unavailable")
		return []domain.FoodItem{}, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}

	byName := make(map[string]domain.FoodItem, len(items))
	for _, item := range items {
		if _, exists := byName[item.Name]; exists {
			continue
		}
		byName[item.Name] = item
	}

	s.items = items
	s.byName = byName
	s.loaded = true
	s.obsMetrics.RecordCatalogLoad(ctx, "ok")
	s.log.Info("reference catalog loaded", zap.String("source", s.source), zap.Int("items", len(items)))

	return s.snapshot(), nil
}

// snapshot copies the memoized items; callers must hold s.mu.
func (s *Service) snapshot() []domain.FoodItem {
	out := make([]domain.FoodItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Service) Lookup(ctx context.Context, name string) (domain.FoodItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.FoodItem{}, domain.ErrInvalidName
	}
	if _, err := s.Load(ctx); err != nil {
		return domain.FoodItem{}, err
	}

	s.mu.Lock()
	item, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return domain.FoodItem{}, domain.ErrFoodNotFound
	}
	return item, nil
}

func (s *Service) Names(ctx context.Context) ([]string, error) {
	items, err := s.Load(ctx)
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names, err
}

func (s *Service) fetch(ctx context.Context) ([]domain.FoodItem, error) {
	body, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	items, skipped, err := parseCatalog(body)
	if err != nil {
		return nil, err
	}
	for _, row := range skipped {
		s.log.Warn("skipping catalog row", zap.String("reason", row.Error()))
	}
	return items, nil
}

func (s *Service) open(ctx context.Context) (io.ReadCloser, error) {
	source := strings.TrimSpace(s.source)
	if source == "" {
		return nil, fmt.Errorf("catalog source not configured")
	}

	parsed, err := url.Parse(source)
	if err == nil {
		switch parsed.Scheme {
		case "http", "https":
			return s.download(ctx, source)
		case "file":
			return os.Open(parsed.Path)
		}
	}
	return os.Open(source)
}

func (s *Service) download(ctx context.Context, source string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		return nil, fmt.Errorf("catalog fetch returned %s", resp.Status)
	}
	return resp.Body, nil
}
