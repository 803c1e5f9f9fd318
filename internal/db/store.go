package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/routewise/backend/internal/directory"
	"github.com/routewise/backend/internal/models"
)

var ErrNotFound = errors.New("not found")

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

// --- routing rules ---

func (s *Store) CreateRule(ctx context.Context, r models.RoutingRule) (string, error) {
	criteria, _ := json.Marshal(r.Criteria)
	handler, _ := json.Marshal(r.Handler)
	var schedule []byte
	if r.Schedule != nil {
		schedule, _ = json.Marshal(r.Schedule)
	}

	var id string
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO routing_rules (organization_id, name, priority, is_active, criteria, handler, schedule, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
		RETURNING id
	`, r.OrganizationID, r.Name, r.Priority, r.IsActive, criteria, handler, schedule).Scan(&id)
	return id, err
}

func (s *Store) UpdateRule(ctx context.Context, r models.RoutingRule) error {
	criteria, _ := json.Marshal(r.Criteria)
	handler, _ := json.Marshal(r.Handler)
	var schedule []byte
	if r.Schedule != nil {
		schedule, _ = json.Marshal(r.Schedule)
	}

	tag, err := s.Pool.Exec(ctx, `
		UPDATE routing_rules
		SET name = $1, priority = $2, is_active = $3, criteria = $4, handler = $5, schedule = $6, updated_at = NOW()
		WHERE id = $7 AND organization_id = $8
	`, r.Name, r.Priority, r.IsActive, criteria, handler, schedule, r.ID, r.OrganizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, ruleID, organizationID string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM routing_rules WHERE id = $1 AND organization_id = $2`, ruleID, organizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetRule(ctx context.Context, ruleID, organizationID string) (models.RoutingRule, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, organization_id, name, priority, is_active, criteria, handler, schedule, created_at, updated_at
		FROM routing_rules
		WHERE id = $1 AND organization_id = $2
	`, ruleID, organizationID)

	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RoutingRule{}, ErrNotFound
	}
	return rule, err
}

// ListRules returns the organization's rules in priority-descending order
// with creation order breaking ties, which is the order the matcher relies on.
func (s *Store) ListRules(ctx context.Context, organizationID string, activeOnly bool) ([]models.RoutingRule, error) {
	query := `
		SELECT id, organization_id, name, priority, is_active, criteria, handler, schedule, created_at, updated_at
		FROM routing_rules
		WHERE organization_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY priority DESC, created_at ASC, id ASC`

	rows, err := s.Pool.Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RoutingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// ListActiveRules satisfies the matcher's rule source contract.
func (s *Store) ListActiveRules(ctx context.Context, organizationID string) ([]models.RoutingRule, error) {
	return s.ListRules(ctx, organizationID, true)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (models.RoutingRule, error) {
	var (
		r        models.RoutingRule
		criteria []byte
		handler  []byte
		schedule []byte
	)
	if err := row.Scan(&r.ID, &r.OrganizationID, &r.Name, &r.Priority, &r.IsActive, &criteria, &handler, &schedule, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return models.RoutingRule{}, err
	}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &r.Criteria); err != nil {
			return models.RoutingRule{}, err
		}
	}
	if len(handler) > 0 {
		if err := json.Unmarshal(handler, &r.Handler); err != nil {
			return models.RoutingRule{}, err
		}
	}
	if len(schedule) > 0 {
		var sched models.RuleSchedule
		if err := json.Unmarshal(schedule, &sched); err != nil {
			return models.RoutingRule{}, err
		}
		r.Schedule = &sched
	}
	return r, nil
}

// --- routing decisions ---

func (s *Store) InsertDecision(ctx context.Context, d *models.RoutingDecision) (string, error) {
	alternatives, _ := json.Marshal(d.Alternatives)
	categories, _ := json.Marshal(d.Categories)

	var id string
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO routing_decisions
			(id, organization_id, request_id, handler_id, handler_type, matched_rule_id,
			 confidence, was_escalated, escalation_level, alternatives, categories, urgency_level, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id
	`, d.ID, d.OrganizationID, d.RequestID, d.HandlerID, d.HandlerType, d.MatchedRuleID,
		d.Confidence, d.WasEscalated, d.EscalationLevel, alternatives, categories, d.Urgency, d.CreatedAt).Scan(&id)
	return id, err
}

func (s *Store) UpdateDecisionOutcome(ctx context.Context, decisionID string, fb models.DecisionFeedback) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE routing_decisions
		SET was_successful = $1, feedback_score = $2, feedback_text = $3, resolution_time_ms = $4, updated_at = NOW()
		WHERE id = $5
	`, fb.WasSuccessful, fb.FeedbackScore, nullableText(fb.FeedbackText), fb.ResolutionTimeMs, decisionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetDecision(ctx context.Context, decisionID string) (models.RoutingDecision, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, organization_id, request_id, handler_id, handler_type, matched_rule_id,
			confidence, was_escalated, escalation_level, alternatives, categories, urgency_level,
			created_at, was_successful, feedback_score, feedback_text, resolution_time_ms
		FROM routing_decisions
		WHERE id = $1
	`, decisionID)

	d, err := scanDecision(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RoutingDecision{}, ErrNotFound
	}
	return d, err
}

func (s *Store) ListDecisions(ctx context.Context, organizationID string, limit, offset int) ([]models.RoutingDecision, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT id, organization_id, request_id, handler_id, handler_type, matched_rule_id,
			confidence, was_escalated, escalation_level, alternatives, categories, urgency_level,
			created_at, was_successful, feedback_score, feedback_text, resolution_time_ms
		FROM routing_decisions
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, organizationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RoutingDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDecision(row rowScanner) (models.RoutingDecision, error) {
	var (
		d            models.RoutingDecision
		alternatives []byte
		categories   []byte
	)
	if err := row.Scan(&d.ID, &d.OrganizationID, &d.RequestID, &d.HandlerID, &d.HandlerType, &d.MatchedRuleID,
		&d.Confidence, &d.WasEscalated, &d.EscalationLevel, &alternatives, &categories, &d.Urgency,
		&d.CreatedAt, &d.WasSuccessful, &d.FeedbackScore, &d.FeedbackText, &d.ResolutionTimeMs); err != nil {
		return models.RoutingDecision{}, err
	}
	if len(alternatives) > 0 {
		if err := json.Unmarshal(alternatives, &d.Alternatives); err != nil {
			return models.RoutingDecision{}, err
		}
	}
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &d.Categories); err != nil {
			return models.RoutingDecision{}, err
		}
	}
	return d, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --- expertise profiles ---

const profileColumns = `person_id, organization_id, team, role, manager_id, backup_person_id, skills, updated_at`

func (s *Store) GetProfile(ctx context.Context, personID, organizationID string) (models.ExpertiseProfile, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM expertise_profiles
		WHERE person_id = $1 AND organization_id = $2
	`, personID, organizationID)

	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ExpertiseProfile{}, directory.ErrNotFound
	}
	return p, err
}

// FindExpertsBySkill matches the skill name case-insensitively against the
// skills JSONB array and filters by minimum recorded level.
func (s *Store) FindExpertsBySkill(ctx context.Context, organizationID, skill string, minLevel int) ([]models.ExpertiseProfile, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM expertise_profiles
		WHERE organization_id = $1
		  AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(skills) AS sk
			WHERE lower(sk->>'name') = lower($2) AND (sk->>'level')::int >= $3
		  )
		ORDER BY person_id ASC
	`, organizationID, strings.TrimSpace(skill), minLevel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProfiles(rows)
}

func (s *Store) FindByRole(ctx context.Context, organizationID, role string) ([]models.ExpertiseProfile, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM expertise_profiles
		WHERE organization_id = $1 AND lower(role) = lower($2)
		ORDER BY person_id ASC
	`, organizationID, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProfiles(rows)
}

func (s *Store) ListTeam(ctx context.Context, organizationID, team string) ([]models.ExpertiseProfile, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM expertise_profiles
		WHERE organization_id = $1 AND team = $2
		ORDER BY person_id ASC
	`, organizationID, team)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProfiles(rows)
}

func (s *Store) ListProfiles(ctx context.Context, organizationID string, limit int) ([]models.ExpertiseProfile, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM expertise_profiles
		WHERE organization_id = $1
		ORDER BY person_id ASC
		LIMIT $2
	`, organizationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProfiles(rows)
}

func collectProfiles(rows pgx.Rows) ([]models.ExpertiseProfile, error) {
	var out []models.ExpertiseProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProfile(row rowScanner) (models.ExpertiseProfile, error) {
	var (
		p       models.ExpertiseProfile
		team    *string
		role    *string
		manager *string
		backup  *string
		skills  []byte
	)
	if err := row.Scan(&p.PersonID, &p.OrganizationID, &team, &role, &manager, &backup, &skills, &p.UpdatedAt); err != nil {
		return models.ExpertiseProfile{}, err
	}
	p.Team = deref(team)
	p.Role = deref(role)
	p.ManagerID = deref(manager)
	p.BackupPersonID = deref(backup)
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &p.Skills); err != nil {
			return models.ExpertiseProfile{}, err
		}
	}
	return p, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// --- availability / workload signals ---

// CheckAvailability reads the live availability signal for a person. A
// missing row reports as unavailable rather than erroring so that stale
// person references fail safe toward escalation.
func (s *Store) CheckAvailability(ctx context.Context, personID, organizationID string) (models.Availability, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT is_available, availability_score
		FROM availability_status
		WHERE person_id = $1 AND organization_id = $2
	`, personID, organizationID)

	var a models.Availability
	if err := row.Scan(&a.IsAvailable, &a.Score); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Availability{IsAvailable: false, Score: 0}, nil
		}
		return models.Availability{}, err
	}
	return a, nil
}

func (s *Store) CheckWorkloadCapacity(ctx context.Context, personID, organizationID string) (models.WorkloadCapacity, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT assigned_items, max_capacity
		FROM workload_status
		WHERE person_id = $1 AND organization_id = $2
	`, personID, organizationID)

	var assigned, capacity float64
	if err := row.Scan(&assigned, &capacity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.WorkloadCapacity{HasCapacity: false, CurrentWorkload: 1}, nil
		}
		return models.WorkloadCapacity{}, err
	}
	if capacity <= 0 {
		return models.WorkloadCapacity{HasCapacity: false, CurrentWorkload: 1}, nil
	}

	load := assigned / capacity
	if load > 1 {
		load = 1
	}
	return models.WorkloadCapacity{HasCapacity: load < 1, CurrentWorkload: load}, nil
}

// CountDecisions supports analytics spot checks on the admin surface.
func (s *Store) CountDecisions(ctx context.Context, organizationID string, escalatedOnly bool) (int64, error) {
	query := `SELECT COUNT(*) FROM routing_decisions WHERE organization_id = $1`
	if escalatedOnly {
		query += ` AND was_escalated`
	}
	var n int64
	err := s.Pool.QueryRow(ctx, query, organizationID).Scan(&n)
	return n, err
}
