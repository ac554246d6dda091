package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const templateColumns = `id, practitioner_id, slot_duration_minutes, active, rules, created_at, updated_at`

type TemplateRepository struct {
	*base.Repository
}

func NewTemplateRepository(pool *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{Repository: base.NewRepository(pool)}
}

// Create сохраняет новый шаблон
func (r *TemplateRepository) Create(ctx context.Context, t *model.Template) error {
	rules, err := json.Marshal(t.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	query := `
		INSERT INTO templates (id, practitioner_id, slot_duration_minutes, active, rules, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.ExecAffected(ctx, query,
		t.ID,
		t.PractitionerID,
		t.SlotDurationMinutes,
		t.Active,
		rules,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create template: %w", base.Classify(err))
	}

	return nil
}

// GetByID получает шаблон по ID
func (r *TemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = $1`

	t, err := scanTemplate(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get template by id: %w", base.Classify(err))
	}

	return t, nil
}

// List пустой practitionerID означает все шаблоны
func (r *TemplateRepository) List(ctx context.Context, practitionerID string) ([]*model.Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM templates
		WHERE $1 = '' OR practitioner_id = $1
		ORDER BY created_at
	`
	return r.list(ctx, query, practitionerID)
}

// ListActive получает все активные шаблоны
func (r *TemplateRepository) ListActive(ctx context.Context) ([]*model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE active = TRUE ORDER BY created_at`
	return r.list(ctx, query)
}

func (r *TemplateRepository) list(ctx context.Context, query string, args ...any) ([]*model.Template, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", base.Classify(err))
	}
	defer rows.Close()

	var templates []*model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", base.Classify(err))
	}

	return templates, nil
}

// Update заменяет правила, длительность и активность
func (r *TemplateRepository) Update(ctx context.Context, t *model.Template) (bool, error) {
	rules, err := json.Marshal(t.Rules)
	if err != nil {
		return false, fmt.Errorf("marshal rules: %w", err)
	}

	query := `
		UPDATE templates
		SET slot_duration_minutes = $2, active = $3, rules = $4, updated_at = $5
		WHERE id = $1
	`

	n, err := r.ExecAffected(ctx, query, t.ID, t.SlotDurationMinutes, t.Active, rules, t.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("update template: %w", base.Classify(err))
	}
	return n == 1, nil
}

// SetActive включает или выключает шаблон
func (r *TemplateRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error) {
	n, err := r.ExecAffected(ctx, `UPDATE templates SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return false, fmt.Errorf("set template active: %w", base.Classify(err))
	}
	return n == 1, nil
}

// Delete удаляет шаблон вместе с его счётчиками
func (r *TemplateRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := r.ExecAffected(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete template: %w", base.Classify(err))
	}
	return n == 1, nil
}

func scanTemplate(row pgx.Row) (*model.Template, error) {
	var t model.Template
	var rules []byte
	err := row.Scan(
		&t.ID,
		&t.PractitionerID,
		&t.SlotDurationMinutes,
		&t.Active,
		&rules,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rules, &t.Rules); err != nil {
		return nil, fmt.Errorf("unmarshal rules of template %s: %w", t.ID, err)
	}
	return &t, nil
}
