package application

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/example/activity-store/internal/persistence"
)

// RulesetRepository captures the persistence operations needed by the ruleset service.
type RulesetRepository interface {
	CreateRuleset(ctx context.Context, ruleset persistence.Ruleset) (int64, error)
	GetRuleset(ctx context.Context, id int64) (persistence.Ruleset, error)
	ListRulesetsForUser(ctx context.Context, userID int64) ([]persistence.Ruleset, error)
}

// RulesetService validates and stores categorization rulesets. Rules are kept
// for provenance and are never evaluated here.
type RulesetService struct {
	rulesets RulesetRepository
	logger   *slog.Logger
}

// NewRulesetService constructs a ruleset service.
func NewRulesetService(rulesets RulesetRepository, logger *slog.Logger) *RulesetService {
	return &RulesetService{rulesets: rulesets, logger: defaultLogger(logger)}
}

func (s *RulesetService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RulesetService", operation, attrs...)
}

// CreateRuleset validates the rule list and persists it for an existing user.
func (s *RulesetService) CreateRuleset(ctx context.Context, params CreateRulesetParams) (id int64, err error) {
	if s == nil {
		err = fmt.Errorf("RulesetService is nil")
		return
	}
	if s.rulesets == nil {
		err = fmt.Errorf("ruleset repository not configured")
		return
	}

	name := strings.TrimSpace(params.Name)
	logger := s.loggerWith(ctx, "CreateRuleset",
		"user_id", params.UserID,
		"rule_count", len(params.Rules),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create ruleset", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("ruleset_id", id).InfoContext(ctx, "ruleset created")
	}()

	rules, vErr := normalizeRules(params.Rules)
	if name == "" {
		vErr.add("name", "name is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	id, err = s.rulesets.CreateRuleset(ctx, persistence.Ruleset{
		UserID: params.UserID,
		Name:   name,
		Rules:  rules,
	})
	if err != nil {
		id = 0
		err = mapRepoError("create ruleset", err)
	}
	return
}

// GetRuleset returns a ruleset by ID.
func (s *RulesetService) GetRuleset(ctx context.Context, id int64) (persistence.Ruleset, error) {
	if s == nil {
		return persistence.Ruleset{}, fmt.Errorf("RulesetService is nil")
	}
	if s.rulesets == nil {
		return persistence.Ruleset{}, fmt.Errorf("ruleset repository not configured")
	}

	ruleset, err := s.rulesets.GetRuleset(ctx, id)
	if err != nil {
		return persistence.Ruleset{}, mapRepoError("get ruleset", err)
	}
	return ruleset, nil
}

// ListRulesets returns the user's rulesets in creation order.
func (s *RulesetService) ListRulesets(ctx context.Context, userID int64) ([]persistence.Ruleset, error) {
	if s == nil {
		return nil, fmt.Errorf("RulesetService is nil")
	}
	if s.rulesets == nil {
		return nil, nil
	}

	rulesets, err := s.rulesets.ListRulesetsForUser(ctx, userID)
	if err != nil {
		return nil, mapRepoError("list rulesets", err)
	}
	return rulesets, nil
}

// normalizeRules trims rule names and checks every rule. The returned
// validation error is never nil; it lists one entry per offending field.
func normalizeRules(rules []persistence.Rule) ([]persistence.Rule, *ValidationError) {
	vErr := &ValidationError{}
	if len(rules) == 0 {
		vErr.add("rules", "at least one rule is required")
		return nil, vErr
	}

	out := make([]persistence.Rule, 0, len(rules))
	for i, rule := range rules {
		field := fmt.Sprintf("rules[%d]", i)

		names := make([]string, 0, len(rule.Names))
		for _, name := range rule.Names {
			names = append(names, strings.TrimSpace(name))
		}
		switch {
		case len(names) == 0:
			vErr.add(field+".names", "at least one name is required")
		case containsBlank(names):
			vErr.add(field+".names", "names must not be blank")
		}

		switch {
		case strings.TrimSpace(rule.Pattern) == "":
			vErr.add(field+".pattern", "pattern is required")
		default:
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				vErr.add(field+".pattern", "pattern is not a valid regular expression: "+err.Error())
			}
		}

		out = append(out, persistence.Rule{Names: names, Pattern: rule.Pattern})
	}
	return out, vErr
}

func containsBlank(values []string) bool {
	for _, value := range values {
		if value == "" {
			return true
		}
	}
	return false
}
