package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DirectoryRepository справочник врачей и мест приёма
type DirectoryRepository struct {
	*base.Repository
}

func NewDirectoryRepository(pool *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{Repository: base.NewRepository(pool)}
}

func (r *DirectoryRepository) GetPractitioner(ctx context.Context, id string) (*model.Practitioner, error) {
	var p model.Practitioner
	err := r.QueryRow(ctx,
		`SELECT id, name, specialization FROM practitioners WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Specialization)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get practitioner: %w", base.Classify(err))
	}
	return &p, nil
}

func (r *DirectoryRepository) GetLocation(ctx context.Context, id string) (*model.Location, error) {
	var l model.Location
	err := r.QueryRow(ctx,
		`SELECT id, name, address FROM locations WHERE id = $1`, id,
	).Scan(&l.ID, &l.Name, &l.Address)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get location: %w", base.Classify(err))
	}
	return &l, nil
}

// UpsertPractitioner добавляет или переименовывает врача
func (r *DirectoryRepository) UpsertPractitioner(ctx context.Context, p *model.Practitioner) error {
	_, err := r.ExecAffected(ctx, `
		INSERT INTO practitioners (id, name, specialization) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, specialization = EXCLUDED.specialization
	`, p.ID, p.Name, p.Specialization)
	if err != nil {
		return fmt.Errorf("upsert practitioner: %w", base.Classify(err))
	}
	return nil
}

// UpsertLocation добавляет или переименовывает место приёма
func (r *DirectoryRepository) UpsertLocation(ctx context.Context, l *model.Location) error {
	_, err := r.ExecAffected(ctx, `
		INSERT INTO locations (id, name, address) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address
	`, l.ID, l.Name, l.Address)
	if err != nil {
		return fmt.Errorf("upsert location: %w", base.Classify(err))
	}
	return nil
}
