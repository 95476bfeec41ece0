package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/chris44528/lux-aged-cases/internal/models"
)

const templateColumns = `id, name, channel, escalation_tier, case_type, COALESCE(subject, ''), content,
	active, send_count, open_rate, response_rate, created_at, updated_at`

func scanTemplate(row pgx.Row) (models.AgedCaseTemplate, error) {
	var t models.AgedCaseTemplate
	err := row.Scan(
		&t.ID, &t.Name, &t.Channel, &t.EscalationTier, &t.CaseType, &t.Subject, &t.Content,
		&t.Active, &t.SendCount, &t.OpenRate, &t.ResponseRate, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

// ListTemplates filters by tier and channel when non-zero. activeOnly
// excludes deactivated templates, matching the editor's default view.
func (s *Store) ListTemplates(ctx context.Context, tier int, channel string, activeOnly bool) ([]models.AgedCaseTemplate, error) {
	var args []any
	var wheres []string
	if tier != 0 {
		args = append(args, tier)
		wheres = append(wheres, fmt.Sprintf("escalation_tier = $%d", len(args)))
	}
	if channel != "" {
		args = append(args, channel)
		wheres = append(wheres, fmt.Sprintf("channel = $%d", len(args)))
	}
	if activeOnly {
		wheres = append(wheres, "active = TRUE")
	}
	query := "SELECT " + templateColumns + " FROM aged_case_templates"
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY escalation_tier ASC, name ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AgedCaseTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTemplate(ctx context.Context, id int) (models.AgedCaseTemplate, error) {
	row := s.Pool.QueryRow(ctx, "SELECT "+templateColumns+" FROM aged_case_templates WHERE id = $1", id)
	return scanTemplate(row)
}

func (s *Store) CreateTemplate(ctx context.Context, t models.AgedCaseTemplate) (models.AgedCaseTemplate, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO aged_case_templates
			(name, channel, escalation_tier, case_type, subject, content, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
		RETURNING `+templateColumns,
		t.Name, t.Channel, t.EscalationTier, t.CaseType, t.Subject, t.Content, t.Active)
	return scanTemplate(row)
}

func (s *Store) UpdateTemplate(ctx context.Context, t models.AgedCaseTemplate) (models.AgedCaseTemplate, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE aged_case_templates
		SET name = $1, channel = $2, escalation_tier = $3, case_type = $4,
			subject = $5, content = $6, active = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING `+templateColumns,
		t.Name, t.Channel, t.EscalationTier, t.CaseType, t.Subject, t.Content, t.Active, t.ID)
	return scanTemplate(row)
}

// DeleteTemplate is a hard delete. Settings rotation maps may keep stale
// keys afterwards; readers treat those as rotation count 1.
func (s *Store) DeleteTemplate(ctx context.Context, id int) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM aged_case_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ToggleTemplateActive flips the active flag immediately, outside the
// buffered edit flow.
func (s *Store) ToggleTemplateActive(ctx context.Context, id int) (models.AgedCaseTemplate, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE aged_case_templates SET active = NOT active, updated_at = NOW()
		WHERE id = $1
		RETURNING `+templateColumns, id)
	return scanTemplate(row)
}

func (s *Store) IncrementTemplateSendCount(ctx context.Context, tx pgx.Tx, id int) error {
	_, err := tx.Exec(ctx, `
		UPDATE aged_case_templates SET send_count = send_count + 1, updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

const settingsColumns = `id, name, tier_1_frequency, tier_2_frequency, tier_3_frequency, tier_4_frequency,
	tier_1_escalation_days, tier_2_escalation_days, tier_3_escalation_days,
	tier_1_templates, tier_2_templates, tier_3_templates, tier_4_templates,
	active, created_at`

func scanSettings(row pgx.Row) (models.AgedCaseSettings, error) {
	var s models.AgedCaseSettings
	var t1, t2, t3, t4 []byte
	err := row.Scan(
		&s.ID, &s.Name, &s.Tier1Frequency, &s.Tier2Frequency, &s.Tier3Frequency, &s.Tier4Frequency,
		&s.Tier1EscalationDays, &s.Tier2EscalationDays, &s.Tier3EscalationDays,
		&t1, &t2, &t3, &t4,
		&s.Active, &s.CreatedAt,
	)
	if err != nil {
		return s, err
	}
	for _, pair := range []struct {
		raw []byte
		dst *map[string]int
	}{
		{t1, &s.Tier1Templates}, {t2, &s.Tier2Templates}, {t3, &s.Tier3Templates}, {t4, &s.Tier4Templates},
	} {
		*pair.dst = map[string]int{}
		if len(pair.raw) > 0 {
			if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
				return s, err
			}
		}
	}
	return s, nil
}

func (s *Store) ActiveSettings(ctx context.Context) (models.AgedCaseSettings, error) {
	row := s.Pool.QueryRow(ctx, "SELECT "+settingsColumns+" FROM aged_case_settings WHERE active = TRUE LIMIT 1")
	return scanSettings(row)
}

func (s *Store) ListSettings(ctx context.Context) ([]models.AgedCaseSettings, error) {
	rows, err := s.Pool.Query(ctx, "SELECT "+settingsColumns+" FROM aged_case_settings ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AgedCaseSettings
	for rows.Next() {
		cfg, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// ActivateSettings stores the given configuration as a new version and
// makes it the single active one. The whole object is written; set_active
// replaces versions rather than patching them.
func (s *Store) ActivateSettings(ctx context.Context, cfg models.AgedCaseSettings) (models.AgedCaseSettings, error) {
	var out models.AgedCaseSettings
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE aged_case_settings SET active = FALSE WHERE active = TRUE`); err != nil {
			return err
		}
		t1, err := json.Marshal(cfg.Tier1Templates)
		if err != nil {
			return err
		}
		t2, err := json.Marshal(cfg.Tier2Templates)
		if err != nil {
			return err
		}
		t3, err := json.Marshal(cfg.Tier3Templates)
		if err != nil {
			return err
		}
		t4, err := json.Marshal(cfg.Tier4Templates)
		if err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO aged_case_settings
				(name, tier_1_frequency, tier_2_frequency, tier_3_frequency, tier_4_frequency,
				tier_1_escalation_days, tier_2_escalation_days, tier_3_escalation_days,
				tier_1_templates, tier_2_templates, tier_3_templates, tier_4_templates,
				active, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,TRUE,NOW())
			RETURNING `+settingsColumns,
			cfg.Name, cfg.Tier1Frequency, cfg.Tier2Frequency, cfg.Tier3Frequency, cfg.Tier4Frequency,
			cfg.Tier1EscalationDays, cfg.Tier2EscalationDays, cfg.Tier3EscalationDays,
			t1, t2, t3, t4)
		out, err = scanSettings(row)
		return err
	})
	return out, err
}
