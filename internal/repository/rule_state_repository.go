package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RuleStateRepository хранит счётчики правил и решения по датам.
// Решение по (шаблон, правило, дата) фиксируется в rule_occurrences,
// повторный вызов для той же даты возвращает записанный результат.
type RuleStateRepository struct {
	*base.Repository
}

func NewRuleStateRepository(pool *pgxpool.Pool) *RuleStateRepository {
	return &RuleStateRepository{Repository: base.NewRepository(pool)}
}

// AdvanceCounter увеличивает счётчик правила и возвращает значение до увеличения
func (r *RuleStateRepository) AdvanceCounter(ctx context.Context, templateID uuid.UUID, ruleID, localDate string) (int, error) {
	var previous int

	err := r.InTx(ctx, func(tx pgx.Tx) error {
		recorded, err := recordOccurrence(ctx, tx, templateID, ruleID, localDate)
		if err != nil {
			return err
		}

		if !recorded {
			var before *int
			err := tx.QueryRow(ctx, `
				SELECT counter_before FROM rule_occurrences
				WHERE template_id = $1 AND rule_id = $2 AND local_date = $3
				FOR UPDATE
			`, templateID, ruleID, localDate).Scan(&before)
			if err != nil {
				return fmt.Errorf("get recorded counter: %w", base.Classify(err))
			}
			if before != nil {
				previous = *before
				return nil
			}
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO template_rule_state (template_id, rule_id, counter)
			VALUES ($1, $2, 1)
			ON CONFLICT (template_id, rule_id)
			DO UPDATE SET counter = template_rule_state.counter + 1, updated_at = now()
			RETURNING counter - 1
		`, templateID, ruleID).Scan(&previous)
		if err != nil {
			return fmt.Errorf("advance rule counter: %w", base.Classify(err))
		}

		_, err = tx.Exec(ctx, `
			UPDATE rule_occurrences SET counter_before = $4
			WHERE template_id = $1 AND rule_id = $2 AND local_date = $3
		`, templateID, ruleID, localDate, previous)
		if err != nil {
			return fmt.Errorf("record counter: %w", base.Classify(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return previous, nil
}

// ClaimMonth ставит отметку месяца, true если отметка поставлена этим вызовом
// или уже была поставлена для этой же даты
func (r *RuleStateRepository) ClaimMonth(ctx context.Context, templateID uuid.UUID, ruleID, localDate, month string) (bool, error) {
	var claimed bool

	err := r.InTx(ctx, func(tx pgx.Tx) error {
		recorded, err := recordOccurrence(ctx, tx, templateID, ruleID, localDate)
		if err != nil {
			return err
		}

		if !recorded {
			var decision *bool
			err := tx.QueryRow(ctx, `
				SELECT month_claimed FROM rule_occurrences
				WHERE template_id = $1 AND rule_id = $2 AND local_date = $3
				FOR UPDATE
			`, templateID, ruleID, localDate).Scan(&decision)
			if err != nil {
				return fmt.Errorf("get recorded claim: %w", base.Classify(err))
			}
			if decision != nil {
				claimed = *decision
				return nil
			}
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO template_rule_state (template_id, rule_id, last_generated_month)
			VALUES ($1, $2, $3)
			ON CONFLICT (template_id, rule_id)
			DO UPDATE SET last_generated_month = EXCLUDED.last_generated_month, updated_at = now()
			WHERE template_rule_state.last_generated_month IS DISTINCT FROM EXCLUDED.last_generated_month
		`, templateID, ruleID, month)
		if err != nil {
			return fmt.Errorf("claim month: %w", base.Classify(err))
		}
		claimed = tag.RowsAffected() == 1

		_, err = tx.Exec(ctx, `
			UPDATE rule_occurrences SET month_claimed = $4
			WHERE template_id = $1 AND rule_id = $2 AND local_date = $3
		`, templateID, ruleID, localDate, claimed)
		if err != nil {
			return fmt.Errorf("record claim: %w", base.Classify(err))
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return claimed, nil
}

// States получает состояние всех правил шаблона
func (r *RuleStateRepository) States(ctx context.Context, templateID uuid.UUID) ([]model.RuleState, error) {
	rows, err := r.Query(ctx, `
		SELECT rule_id, counter, last_generated_month
		FROM template_rule_state
		WHERE template_id = $1
		ORDER BY rule_id
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list rule state: %w", base.Classify(err))
	}
	defer rows.Close()

	var states []model.RuleState
	for rows.Next() {
		var s model.RuleState
		if err := rows.Scan(&s.RuleID, &s.Counter, &s.LastGeneratedMonth); err != nil {
			return nil, fmt.Errorf("scan rule state: %w", err)
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule state: %w", base.Classify(err))
	}

	return states, nil
}

// recordOccurrence резервирует дату за правилом, false если дата уже была обработана
func recordOccurrence(ctx context.Context, tx pgx.Tx, templateID uuid.UUID, ruleID, localDate string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO rule_occurrences (template_id, rule_id, local_date)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, templateID, ruleID, localDate)
	if err != nil {
		return false, fmt.Errorf("record occurrence: %w", base.Classify(err))
	}
	return tag.RowsAffected() == 1, nil
}
