package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/routewise/backend/internal/models"
)

// RuleStore is the persistence port the cached source reads through to.
type RuleStore interface {
	ListActiveRules(ctx context.Context, organizationID string) ([]models.RoutingRule, error)
}

// RuleSource is a read-through cache for per-organization rule sets. Redis
// outages degrade to direct store reads; they never fail rule matching.
type RuleSource struct {
	Store  RuleStore
	Client *redis.Client
	TTL    time.Duration
	Logger zerolog.Logger
}

func NewRuleSource(store RuleStore, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RuleSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RuleSource{Store: store, Client: client, TTL: ttl, Logger: logger}
}

func ruleKey(organizationID string) string {
	return "rules:" + organizationID
}

func (s *RuleSource) ListActiveRules(ctx context.Context, organizationID string) ([]models.RoutingRule, error) {
	if s.Client != nil {
		raw, err := s.Client.Get(ctx, ruleKey(organizationID)).Bytes()
		if err == nil {
			var rules []models.RoutingRule
			if jsonErr := json.Unmarshal(raw, &rules); jsonErr == nil {
				return rules, nil
			}
			// Corrupt entry, drop it and fall through to the store.
			s.Client.Del(ctx, ruleKey(organizationID))
		} else if !errors.Is(err, redis.Nil) {
			s.Logger.Warn().Err(err).Str("organization_id", organizationID).Msg("rule cache read failed")
		}
	}

	rules, err := s.Store.ListActiveRules(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	if s.Client != nil {
		if raw, err := json.Marshal(rules); err == nil {
			if err := s.Client.Set(ctx, ruleKey(organizationID), raw, s.TTL).Err(); err != nil {
				s.Logger.Warn().Err(err).Str("organization_id", organizationID).Msg("rule cache write failed")
			}
		}
	}
	return rules, nil
}

// Invalidate drops the organization's cached rule set. Called on every rule
// create, update, and delete.
func (s *RuleSource) Invalidate(ctx context.Context, organizationID string) {
	if s.Client == nil {
		return
	}
	if err := s.Client.Del(ctx, ruleKey(organizationID)).Err(); err != nil {
		s.Logger.Warn().Err(err).Str("organization_id", organizationID).Msg("rule cache invalidation failed")
	}
}
