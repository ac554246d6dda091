package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `id, template_id, rule_id, practitioner_id, location_id, start_at, end_at,
	local_date, available, recurrence, metadata, created_at`

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

// ExistingIDs возвращает те id из списка, которые уже есть в базе
func (r *SlotRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(ids) == 0 {
		return existing, nil
	}

	rows, err := r.Query(ctx, `SELECT id FROM slots WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("check existing slots: %w", base.Classify(err))
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan slot id: %w", err)
		}
		existing[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slot ids: %w", base.Classify(err))
	}

	return existing, nil
}

// InsertBatch вставляет пачку слотов одним запросом к серверу.
// Дубликаты по id и слоты, пересекающиеся с уже занятым временем врача, молча пропускаются.
func (r *SlotRepository) InsertBatch(ctx context.Context, slots []*model.Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO slots (` + slotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, s := range slots {
		metadata, err := json.Marshal(s.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal slot metadata: %w", err)
		}
		batch.Queue(query,
			s.ID,
			s.TemplateID,
			s.RuleID,
			s.PractitionerID,
			s.LocationID,
			s.StartAt,
			s.EndAt,
			s.LocalDate,
			s.Available,
			s.Recurrence,
			metadata,
			s.CreatedAt,
		)
	}

	results := r.Pool().SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range slots {
		tag, err := results.Exec()
		if err != nil {
			return 0, fmt.Errorf("insert slots: %w", base.Classify(err))
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

// ListByPractitioner получает слоты врача с началом в [from, to)
func (r *SlotRepository) ListByPractitioner(ctx context.Context, practitionerID string, from, to time.Time) ([]*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE practitioner_id = $1 AND start_at >= $2 AND start_at < $3
		ORDER BY start_at
	`

	rows, err := r.Query(ctx, query, practitionerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", base.Classify(err))
	}
	defer rows.Close()

	var slots []*model.Slot
	for rows.Next() {
		var s model.Slot
		var metadata []byte
		err := rows.Scan(
			&s.ID,
			&s.TemplateID,
			&s.RuleID,
			&s.PractitionerID,
			&s.LocationID,
			&s.StartAt,
			&s.EndAt,
			&s.LocalDate,
			&s.Available,
			&s.Recurrence,
			&metadata,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata of slot %s: %w", s.ID, err)
		}
		slots = append(slots, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", base.Classify(err))
	}

	return slots, nil
}

// RuleHasSlots проверяет, создавало ли правило хотя бы один слот
func (r *SlotRepository) RuleHasSlots(ctx context.Context, templateID uuid.UUID, ruleID string) (bool, error) {
	var exists bool
	err := r.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM slots WHERE template_id = $1 AND rule_id = $2)`,
		templateID, ruleID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check rule slots: %w", base.Classify(err))
	}
	return exists, nil
}
