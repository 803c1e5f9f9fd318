package models

import "time"

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Rank orders urgencies for "equals or exceeds" rule criteria.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 0
	case UrgencyNormal:
		return 1
	case UrgencyHigh:
		return 2
	case UrgencyCritical:
		return 3
	default:
		return 1
	}
}

type HandlerType string

const (
	HandlerPerson HandlerType = "person"
	HandlerTeam   HandlerType = "team"
	HandlerQueue  HandlerType = "queue"
	HandlerAuto   HandlerType = "auto"
)

type LevelType string

const (
	LevelManager LevelType = "manager"
	LevelRole    LevelType = "role"
	LevelPerson  LevelType = "person"
	LevelTeam    LevelType = "team"
	LevelQueue   LevelType = "queue"
)

type IncomingRequest struct {
	Content        string            `json:"content"`
	Subject        string            `json:"subject,omitempty"`
	RequestType    string            `json:"request_type,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	OrganizationID string            `json:"organization_id"`
	UserID         string            `json:"user_id,omitempty"`
}

type CategorizationResult struct {
	Categories []string `json:"categories"`
	Urgency    Urgency  `json:"urgency_level"`
	Confidence float64  `json:"confidence"`
	Source     string   `json:"source"`
}

type RuleCriteria struct {
	Categories     []string `json:"categories,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	SenderDomains  []string `json:"sender_domains,omitempty"`
	UrgencyAtLeast Urgency  `json:"urgency_at_least,omitempty"`
}

type RuleHandler struct {
	Type             HandlerType       `json:"type"`
	TargetID         string            `json:"target_id,omitempty"`
	FallbackTargetID string            `json:"fallback_target_id,omitempty"`
	EscalationPath   []EscalationLevel `json:"escalation_path,omitempty"`
}

// RuleSchedule bounds when a rule is eligible. Hours are "HH:MM" in the
// schedule's timezone; days use time.Weekday numbering (0 = Sunday).
type RuleSchedule struct {
	Timezone    string `json:"timezone,omitempty"`
	ActiveStart string `json:"active_start,omitempty"`
	ActiveEnd   string `json:"active_end,omitempty"`
	ActiveDays  []int  `json:"active_days,omitempty"`
}

type RoutingRule struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	Name           string        `json:"name"`
	Priority       int           `json:"priority"`
	IsActive       bool          `json:"is_active"`
	Criteria       RuleCriteria  `json:"criteria"`
	Handler        RuleHandler   `json:"handler"`
	Schedule       *RuleSchedule `json:"schedule,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type HandlerCandidate struct {
	PersonID          string  `json:"person_id"`
	ExpertiseScore    float64 `json:"expertise_score"`
	AvailabilityScore float64 `json:"availability_score"`
	WorkloadScore     float64 `json:"workload_score"`
	CombinedScore     float64 `json:"combined_score"`
}

type EscalationLevel struct {
	Level       int       `json:"level"`
	Type        LevelType `json:"type"`
	TargetID    string    `json:"target_id,omitempty"`
	TargetRole  string    `json:"target_role,omitempty"`
	WaitMinutes int       `json:"wait_minutes"`
}

type EscalationResult struct {
	HandlerID         string      `json:"handler_id"`
	HandlerType       HandlerType `json:"handler_type"`
	EscalationLevel   int         `json:"escalation_level"`
	Reason            string      `json:"reason"`
	OriginalHandlerID string      `json:"original_handler_id"`
}

type BackupResult struct {
	PersonID          string  `json:"person_id"`
	Strategy          string  `json:"strategy"`
	Reason            string  `json:"reason"`
	ExpertiseScore    float64 `json:"expertise_score"`
	AvailabilityScore float64 `json:"availability_score"`
	WorkloadScore     float64 `json:"workload_score"`
	CombinedScore     float64 `json:"combined_score"`
}

type RoutingDecision struct {
	ID               string             `json:"id"`
	OrganizationID   string             `json:"organization_id"`
	RequestID        string             `json:"request_id"`
	HandlerID        string             `json:"handler_id"`
	HandlerType      HandlerType        `json:"handler_type"`
	MatchedRuleID    *string            `json:"matched_rule_id,omitempty"`
	Confidence       float64            `json:"confidence"`
	WasEscalated     bool               `json:"was_escalated"`
	EscalationLevel  int                `json:"escalation_level"`
	Alternatives     []HandlerCandidate `json:"alternatives,omitempty"`
	Categories       []string           `json:"categories,omitempty"`
	Urgency          Urgency            `json:"urgency_level,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	WasSuccessful    *bool              `json:"was_successful,omitempty"`
	FeedbackScore    *int               `json:"feedback_score,omitempty"`
	FeedbackText     *string            `json:"feedback_text,omitempty"`
	ResolutionTimeMs *int64             `json:"resolution_time_ms,omitempty"`
}

type DecisionFeedback struct {
	WasSuccessful    bool   `json:"was_successful"`
	FeedbackScore    *int   `json:"feedback_score,omitempty"`
	FeedbackText     string `json:"feedback_text,omitempty"`
	ResolutionTimeMs *int64 `json:"resolution_time_ms,omitempty"`
}

type Skill struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

type ExpertiseProfile struct {
	PersonID       string    `json:"person_id"`
	OrganizationID string    `json:"organization_id"`
	Team           string    `json:"team,omitempty"`
	Role           string    `json:"role,omitempty"`
	ManagerID      string    `json:"manager_id,omitempty"`
	BackupPersonID string    `json:"backup_person_id,omitempty"`
	Skills         []Skill   `json:"skills,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Availability struct {
	IsAvailable bool    `json:"is_available"`
	Score       float64 `json:"score"`
}

type WorkloadCapacity struct {
	HasCapacity     bool    `json:"has_capacity"`
	CurrentWorkload float64 `json:"current_workload"`
}
