// Package envrule adds the CMDB environment condition to node classifier
// environment groups.
package envrule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"servicenow-cmdb-integration/internal/classifier"
	"servicenow-cmdb-integration/internal/logger"
	"servicenow-cmdb-integration/internal/metrics"
	"servicenow-cmdb-integration/internal/notify"
	"servicenow-cmdb-integration/internal/rule"
	"servicenow-cmdb-integration/internal/stats"
	"servicenow-cmdb-integration/internal/taskerr"
)

// GroupStore lists and updates classifier groups.
type GroupStore interface {
	ListGroups(ctx context.Context) ([]*classifier.Group, error)
	UpdateGroup(ctx context.Context, g *classifier.Group) error
}

// Merger adds the environment rule to groups. It holds no per-run state;
// every AddEnvironmentRule call reads the groups afresh.
type Merger struct {
	store         GroupStore
	logger        *logger.Logger
	metrics       *metrics.Metrics
	stats         *stats.RunStats
	publisher     notify.Publisher
	updateTimeout time.Duration
}

// Option configures a Merger
type Option func(*Merger)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mg *Merger) { mg.metrics = m }
}

// WithStats records per-group outcomes in s.
func WithStats(s *stats.RunStats) Option {
	return func(mg *Merger) { mg.stats = s }
}

func WithPublisher(p notify.Publisher) Option {
	return func(mg *Merger) { mg.publisher = p }
}

// WithUpdateTimeout bounds each update call. A timed out update counts as that
// group's failure; the remaining groups are still processed.
func WithUpdateTimeout(d time.Duration) Option {
	return func(mg *Merger) { mg.updateTimeout = d }
}

func NewMerger(store GroupStore, log *logger.Logger, opts ...Option) *Merger {
	if log == nil {
		log = logger.NewNop()
	}
	m := &Merger{
		store:     store,
		logger:    log,
		stats:     stats.NewRunStats(),
		publisher: notify.Nop{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddEnvironmentRule makes every named group also match nodes whose CMDB
// environment equals the group's environment. Checks run in phases (existence,
// eligibility, rule shape); each phase reports all of its violations at once and
// a failing phase stops the run before any group is updated.
func (m *Merger) AddEnvironmentRule(ctx context.Context, groupNames []string) error {
	names := dedupe(groupNames)
	runID := uuid.New().String()
	log := m.logger.With("run_id", runID)
	m.stats.SetRequested(len(names))

	listed, err := m.store.ListGroups(ctx)
	if err != nil {
		return taskerr.Classifier(fmt.Sprintf("Failed to get the groups: %s", err), nil, err)
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	groups := make(map[string]*classifier.Group, len(names))
	for _, g := range listed {
		if g != nil && wanted[g.Name] {
			groups[g.Name] = g
		}
	}

	if err := checkExistence(names, groups); err != nil {
		return err
	}
	if err := checkEligibility(names, groups); err != nil {
		return err
	}
	if err := checkRules(names, groups); err != nil {
		return err
	}

	failed := make(map[string]interface{})
	var failedNames []string
	for _, name := range names {
		g := groups[name]
		envRule := rule.EnvironmentRule(g.Environment)

		if rule.HasCondition(g.Rule, envRule) {
			log.Debug(fmt.Sprintf("Skipping the '%s' group since it already has the environment rule added", name))
			m.stats.IncSkipped()
			m.safeMetricsUpdate(func(mt *metrics.Metrics) { mt.IncGroupUpdates("skipped") })
			continue
		}

		updated := g.WithRule(rule.WithCondition(g.Rule, envRule))
		if err := m.update(ctx, updated); err != nil {
			log.Error("failed to add the environment rule",
				"group", name,
				"error", err)
			failed[name] = err.Error()
			failedNames = append(failedNames, name)
			m.stats.IncFailed()
			m.safeMetricsUpdate(func(mt *metrics.Metrics) { mt.IncGroupUpdates("failed") })
			continue
		}

		log.Info("added the environment rule",
			"group", name,
			"environment", g.Environment,
			"rule", updated.Rule.String())
		m.stats.IncUpdated()
		m.safeMetricsUpdate(func(mt *metrics.Metrics) { mt.IncGroupUpdates("updated") })
		m.notify(ctx, log, notify.NewEvent(notify.EventGroupRuleUpdated, runID, name, g.Environment))
	}

	if len(failed) > 0 {
		return taskerr.Classifier(
			fmt.Sprintf("Failed to add the environment rule to groups %s", strings.Join(failedNames, ", ")),
			failed,
			nil,
		)
	}
	return nil
}

func (m *Merger) update(ctx context.Context, g *classifier.Group) error {
	if m.updateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.updateTimeout)
		defer cancel()
	}
	return m.store.UpdateGroup(ctx, g)
}

func (m *Merger) notify(ctx context.Context, log *logger.Logger, event notify.Event) {
	if err := m.publisher.Publish(ctx, event); err != nil {
		log.Warn("failed to publish event",
			"type", event.Type,
			"subject", event.Subject,
			"error", err)
	}
}

func (m *Merger) safeMetricsUpdate(fn func(*metrics.Metrics)) {
	if m.metrics != nil {
		fn(m.metrics)
	}
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
