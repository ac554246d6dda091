package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const defaultDirectoryCacheSize = 256

// DirectoryService отдаёт отображаемые имена врачей и локаций, кэшируя их в LRU
type DirectoryService struct {
	store         DirectoryStore
	practitioners *lru.Cache[string, string]
	locations     *lru.Cache[string, string]
	logger        *zap.Logger
}

func NewDirectoryService(store DirectoryStore, cacheSize int, logger *zap.Logger) (*DirectoryService, error) {
	if cacheSize <= 0 {
		cacheSize = defaultDirectoryCacheSize
	}
	practitioners, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create practitioner cache: %w", err)
	}
	locations, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create location cache: %w", err)
	}
	return &DirectoryService{
		store:         store,
		practitioners: practitioners,
		locations:     locations,
		logger:        logger,
	}, nil
}

// PractitionerName имя врача. Если имени нет или справочник недоступен, возвращается id.
func (s *DirectoryService) PractitionerName(ctx context.Context, id string) string {
	if name, ok := s.practitioners.Get(id); ok {
		return name
	}

	p, err := s.store.GetPractitioner(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to look up practitioner", zap.String("practitioner_id", id), zap.Error(err))
		return id
	}
	name := id
	if p != nil && p.Name != "" {
		name = p.Name
	}
	s.practitioners.Add(id, name)
	return name
}

// LocationName название локации, по тем же правилам
func (s *DirectoryService) LocationName(ctx context.Context, id string) string {
	if name, ok := s.locations.Get(id); ok {
		return name
	}

	l, err := s.store.GetLocation(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to look up location", zap.String("location_id", id), zap.Error(err))
		return id
	}
	name := id
	if l != nil && l.Name != "" {
		name = l.Name
	}
	s.locations.Add(id, name)
	return name
}

// SavePractitioner сохраняет врача и сбрасывает его имя в кэше
func (s *DirectoryService) SavePractitioner(ctx context.Context, p *model.Practitioner) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("%w: practitioner id and name are required", ErrInvalidInput)
	}
	if err := s.store.UpsertPractitioner(ctx, p); err != nil {
		return fmt.Errorf("save practitioner: %w", err)
	}
	s.practitioners.Remove(p.ID)
	return nil
}

// SaveLocation сохраняет место приёма и сбрасывает его название в кэше
func (s *DirectoryService) SaveLocation(ctx context.Context, l *model.Location) error {
	l.Name = strings.TrimSpace(l.Name)
	if l.ID == "" || l.Name == "" {
		return fmt.Errorf("%w: location id and name are required", ErrInvalidInput)
	}
	if err := s.store.UpsertLocation(ctx, l); err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	s.locations.Remove(l.ID)
	return nil
}
