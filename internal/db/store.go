package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chris44528/lux-aged-cases/internal/models"
)

// ErrTerminalCase is returned when a transition is attempted on a case
// that is already resolved or abandoned.
var ErrTerminalCase = errors.New("case is in a terminal state")

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const caseColumns = `c.id, c.site_id, c.site_name, c.customer_name, COALESCE(c.customer_phone, ''), COALESCE(c.customer_email, ''),
	c.job_id, c.case_type, c.escalation_tier, c.status,
	GREATEST(0, (CURRENT_DATE - c.created_at::date)) AS age_days,
	c.daily_savings_loss, c.total_savings_loss, c.expected_daily_generation,
	c.successful_contacts, c.failed_contacts, c.customer_responded,
	c.last_contact_attempt, c.last_engagement, c.created_at, c.updated_at, c.resolved_at`

func scanCase(row pgx.Row) (models.AgedCase, error) {
	var c models.AgedCase
	err := row.Scan(
		&c.ID, &c.SiteID, &c.SiteName, &c.CustomerName, &c.CustomerPhone, &c.CustomerEmail,
		&c.JobID, &c.CaseType, &c.EscalationTier, &c.Status,
		&c.AgeDays,
		&c.DailySavingsLoss, &c.TotalSavingsLoss, &c.ExpectedDailyGeneration,
		&c.SuccessfulContacts, &c.FailedContacts, &c.CustomerResponded,
		&c.LastContactAttempt, &c.LastEngagement, &c.CreatedAt, &c.UpdatedAt, &c.ResolvedAt,
	)
	return c, err
}

func caseWheres(f models.CaseFilters, args *[]any) []string {
	var wheres []string
	add := func(clause string, value any) {
		*args = append(*args, value)
		wheres = append(wheres, fmt.Sprintf(clause, len(*args)))
	}
	if f.Status != "" {
		add("c.status = $%d", f.Status)
	}
	if f.Tier != 0 {
		add("c.escalation_tier = $%d", f.Tier)
	}
	if f.CaseType != "" {
		add("c.case_type = $%d", f.CaseType)
	}
	if f.MinAgeDays > 0 {
		add("(CURRENT_DATE - c.created_at::date) >= $%d", f.MinAgeDays)
	}
	if f.MaxAgeDays > 0 {
		add("(CURRENT_DATE - c.created_at::date) <= $%d", f.MaxAgeDays)
	}
	if f.HasResponded != nil {
		add("c.customer_responded = $%d", *f.HasResponded)
	}
	if f.Search != "" {
		*args = append(*args, "%"+f.Search+"%")
		n := len(*args)
		wheres = append(wheres, fmt.Sprintf("(c.site_name ILIKE $%d OR c.customer_name ILIKE $%d)", n, n))
	}
	if f.CreatedAfter != nil {
		add("c.created_at >= $%d", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		add("c.created_at <= $%d", *f.CreatedBefore)
	}
	return wheres
}

// ListCases returns one page of cases plus the unpaginated total for the
// response envelope.
func (s *Store) ListCases(ctx context.Context, f models.CaseFilters) ([]models.AgedCase, int, error) {
	return s.listCases(ctx, f, "")
}

// ListQueue is the queue view: terminal cases are excluded regardless of
// the status filter.
func (s *Store) ListQueue(ctx context.Context, f models.CaseFilters) ([]models.AgedCase, int, error) {
	return s.listCases(ctx, f, "c.status IN ('active','escalated')")
}

func (s *Store) listCases(ctx context.Context, f models.CaseFilters, extra string) ([]models.AgedCase, int, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var args []any
	wheres := caseWheres(f, &args)
	if extra != "" {
		wheres = append(wheres, extra)
	}
	whereSQL := ""
	if len(wheres) > 0 {
		whereSQL = " WHERE " + strings.Join(wheres, " AND ")
	}

	var total int
	if err := s.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM aged_cases c"+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + caseColumns + " FROM aged_cases c" + whereSQL +
		" ORDER BY c.escalation_tier DESC, c.created_at ASC" +
		" LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.AgedCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *Store) GetCase(ctx context.Context, id int) (models.AgedCase, error) {
	row := s.Pool.QueryRow(ctx, "SELECT "+caseColumns+" FROM aged_cases c WHERE c.id = $1", id)
	return scanCase(row)
}

func (s *Store) Metrics(ctx context.Context) (models.AgedCaseMetrics, error) {
	m := models.AgedCaseMetrics{
		ByTier:      map[int]models.TierMetrics{},
		ByCaseType:  map[string]int{},
		GeneratedAt: time.Now().UTC(),
	}

	err := s.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status IN ('active','escalated')),
			COUNT(*) FILTER (WHERE status = 'resolved'),
			COALESCE(SUM(total_savings_loss) FILTER (WHERE status IN ('active','escalated')), 0),
			COALESCE(SUM(daily_savings_loss) FILTER (WHERE status IN ('active','escalated')), 0),
			COALESCE(AVG(CURRENT_DATE - created_at::date) FILTER (WHERE status IN ('active','escalated')), 0)
		FROM aged_cases
	`).Scan(&m.TotalActive, &m.TotalResolved, &m.TotalSavingsLoss, &m.DailySavingsLoss, &m.AvgAgeDays)
	if err != nil {
		return m, err
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT escalation_tier, COUNT(*), COALESCE(SUM(total_savings_loss), 0),
			COALESCE(AVG(CASE WHEN customer_responded THEN 1.0 ELSE 0.0 END), 0)
		FROM aged_cases
		WHERE status IN ('active','escalated')
		GROUP BY escalation_tier
	`)
	if err != nil {
		return m, err
	}
	defer rows.Close()
	for rows.Next() {
		var tier int
		var tm models.TierMetrics
		if err := rows.Scan(&tier, &tm.Count, &tm.TotalSavingsLoss, &tm.ResponseRate); err != nil {
			return m, err
		}
		m.ByTier[tier] = tm
	}
	if err := rows.Err(); err != nil {
		return m, err
	}

	typeRows, err := s.Pool.Query(ctx, `
		SELECT case_type, COUNT(*) FROM aged_cases
		WHERE status IN ('active','escalated')
		GROUP BY case_type
	`)
	if err != nil {
		return m, err
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var caseType string
		var count int
		if err := typeRows.Scan(&caseType, &count); err != nil {
			return m, err
		}
		m.ByCaseType[caseType] = count
	}
	return m, typeRows.Err()
}

func (s *Store) ListCommunications(ctx context.Context, caseID int) ([]models.AgedCaseCommunication, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT co.id, co.case_id, co.channel, co.template_id, COALESCE(t.name, ''),
			co.message_content, co.tracking_id,
			co.delivered, co.opened, co.clicked, co.responded,
			COALESCE(co.response_content, ''), COALESCE(co.response_sentiment, ''), co.response_received_at, co.created_at
		FROM aged_case_communications co
		LEFT JOIN aged_case_templates t ON t.id = co.template_id
		WHERE co.case_id = $1
		ORDER BY co.created_at DESC
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AgedCaseCommunication
	for rows.Next() {
		var co models.AgedCaseCommunication
		if err := rows.Scan(
			&co.ID, &co.CaseID, &co.Channel, &co.TemplateID, &co.TemplateName,
			&co.MessageContent, &co.TrackingID,
			&co.Delivered, &co.Opened, &co.Clicked, &co.Responded,
			&co.ResponseContent, &co.ResponseSentiment, &co.ResponseReceivedAt, &co.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, co)
	}
	return out, rows.Err()
}

// InsertCommunication returns the new row's id and server-side timestamp
// so callers echo what was actually persisted.
func (s *Store) InsertCommunication(ctx context.Context, tx pgx.Tx, co models.AgedCaseCommunication) (int, time.Time, error) {
	var id int
	var createdAt time.Time
	err := tx.QueryRow(ctx, `
		INSERT INTO aged_case_communications
			(case_id, channel, template_id, message_content, tracking_id, created_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
		RETURNING id, created_at
	`, co.CaseID, co.Channel, co.TemplateID, co.MessageContent, co.TrackingID).Scan(&id, &createdAt)
	return id, createdAt, err
}

func (s *Store) ListHistory(ctx context.Context, caseID int) ([]models.AgedCaseHistory, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, case_id, action, from_tier, to_tier, COALESCE(channel, ''), COALESCE(notes, ''), "user", created_at
		FROM aged_case_history
		WHERE case_id = $1
		ORDER BY created_at DESC
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AgedCaseHistory
	for rows.Next() {
		var h models.AgedCaseHistory
		if err := rows.Scan(&h.ID, &h.CaseID, &h.Action, &h.FromTier, &h.ToTier, &h.Channel, &h.Notes, &h.User, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// AppendHistory writes one audit entry. History rows are never updated.
func (s *Store) AppendHistory(ctx context.Context, tx pgx.Tx, h models.AgedCaseHistory) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO aged_case_history (case_id, action, from_tier, to_tier, channel, notes, "user", created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
	`, h.CaseID, h.Action, h.FromTier, h.ToTier, h.Channel, h.Notes, h.User)
	return err
}

// RecordContactAttempt bumps the contact counters and last_contact_attempt.
func (s *Store) RecordContactAttempt(ctx context.Context, tx pgx.Tx, caseID int, success bool) error {
	column := "failed_contacts"
	if success {
		column = "successful_contacts"
	}
	_, err := tx.Exec(ctx, `
		UPDATE aged_cases
		SET `+column+` = `+column+` + 1, last_contact_attempt = NOW(), updated_at = NOW()
		WHERE id = $1
	`, caseID)
	return err
}

// ResolveCase is the terminal user-initiated transition. It fails with
// ErrTerminalCase if the case has already been resolved or abandoned.
func (s *Store) ResolveCase(ctx context.Context, caseID int, notes string, user *string) error {
	return s.terminate(ctx, caseID, models.StatusResolved, models.HistoryCaseResolved, notes, user)
}

func (s *Store) AbandonCase(ctx context.Context, caseID int, notes string, user *string) error {
	return s.terminate(ctx, caseID, models.StatusAbandoned, models.HistoryCaseAbandoned, notes, user)
}

func (s *Store) terminate(ctx context.Context, caseID int, status, action, notes string, user *string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		resolvedAt := "NULL"
		if status == models.StatusResolved {
			resolvedAt = "NOW()"
		}
		tag, err := tx.Exec(ctx, `
			UPDATE aged_cases
			SET status = $1, resolved_at = `+resolvedAt+`, updated_at = NOW()
			WHERE id = $2 AND status IN ('active','escalated')
		`, status, caseID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			if _, err := s.GetCase(ctx, caseID); err != nil {
				return err
			}
			return ErrTerminalCase
		}
		return s.AppendHistory(ctx, tx, models.AgedCaseHistory{
			CaseID: caseID,
			Action: action,
			Notes:  notes,
			User:   user,
		})
	})
}

// EscalateCase promotes an active case one tier and records the change.
// The guard clause keeps the tier monotonic and refuses terminal cases.
func (s *Store) EscalateCase(ctx context.Context, tx pgx.Tx, caseID, fromTier, toTier int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE aged_cases
		SET escalation_tier = $1, status = 'escalated', updated_at = NOW()
		WHERE id = $2 AND escalation_tier = $3 AND status IN ('active','escalated')
	`, toTier, caseID, fromTier)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTerminalCase
	}
	return s.AppendHistory(ctx, tx, models.AgedCaseHistory{
		CaseID:   caseID,
		Action:   models.HistoryTierEscalated,
		FromTier: &fromTier,
		ToTier:   &toTier,
	})
}

// ApplyEngagement sets one monotonic engagement flag on the communication
// identified by tracking id. Only a response marks the parent case:
// delivery and open receipts must not reset the escalation clock.
func (s *Store) ApplyEngagement(ctx context.Context, trackingID, action string) error {
	column := ""
	switch action {
	case "delivered", "opened", "clicked", "responded":
		column = action
	default:
		return fmt.Errorf("unknown engagement action %q", action)
	}

	return s.WithTx(ctx, func(tx pgx.Tx) error {
		extra := ""
		if action == "responded" {
			extra = ", response_received_at = COALESCE(response_received_at, NOW())"
		}
		var caseID int
		err := tx.QueryRow(ctx, `
			UPDATE aged_case_communications
			SET `+column+` = TRUE`+extra+`
			WHERE tracking_id = $1
			RETURNING case_id
		`, trackingID).Scan(&caseID)
		if err != nil {
			return err
		}
		if action != "responded" {
			return nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE aged_cases
			SET customer_responded = TRUE, last_engagement = NOW(), updated_at = NOW()
			WHERE id = $1
		`, caseID)
		return err
	})
}
