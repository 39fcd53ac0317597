// Package gormstore persists the collaboration core's aggregates through
// GORM. The reference deployment runs it on SQLite; anything GORM can open
// works, since the package only uses portable query clauses.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/teamflow-ai/teamflow/store"
	"github.com/teamflow-ai/teamflow/types"
)

// Store implements the store package's repository interfaces on a GORM
// connection.
type Store struct {
	db *gorm.DB
}

var (
	_ store.AgentStore       = (*Store)(nil)
	_ store.TaskStore        = (*Store)(nil)
	_ store.TeamStore        = (*Store)(nil)
	_ store.NegotiationStore = (*Store)(nil)
	_ store.ContextStore     = (*Store)(nil)
	_ store.CapabilityStore  = (*Store)(nil)
)

// Open opens a SQLite database at dsn, migrates the schema, and returns a
// ready store. Use ":memory:" for an ephemeral database.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	return New(db)
}

// New wraps an existing GORM connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&agentRecord{},
		&taskRecord{},
		&teamRecord{},
		&negotiationRecord{},
		&contextRecord{},
		&versionRecord{},
		&capabilityRecord{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying connection for callers that manage its
// lifecycle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// upsert saves a record, replacing any existing row with the same key.
func (s *Store) upsert(ctx context.Context, record any) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error
}

// --- agents ---

func (s *Store) SaveAgent(ctx context.Context, agent *types.Agent) error {
	rec, err := newAgentRecord(agent)
	if err != nil {
		return err
	}
	return s.upsert(ctx, rec)
}

func (s *Store) GetAgent(ctx context.Context, id string) (*types.Agent, error) {
	var rec agentRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("agent", id)
	}
	if err != nil {
		return nil, err
	}
	return rec.decode()
}

func (s *Store) ListAgents(ctx context.Context) ([]*types.Agent, error) {
	return s.queryAgents(s.db.WithContext(ctx).Order("id"))
}

func (s *Store) FindAvailable(ctx context.Context) ([]*types.Agent, error) {
	q := s.db.WithContext(ctx).Where("active = ? AND available = ?", true, true).Order("id")
	return s.queryAgents(q)
}

func (s *Store) FindByCapability(ctx context.Context, name string, minLevel float64) ([]*types.Agent, error) {
	agents, err := s.queryAgents(s.db.WithContext(ctx).Where("active = ?", true).Order("id"))
	if err != nil {
		return nil, err
	}
	var out []*types.Agent
	for _, a := range agents {
		if a.HasCapability(name, minLevel) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) FindBySpecialization(ctx context.Context, tag string) ([]*types.Agent, error) {
	agents, err := s.queryAgents(s.db.WithContext(ctx).Where("active = ?", true).Order("id"))
	if err != nil {
		return nil, err
	}
	var out []*types.Agent
	for _, a := range agents {
		if a.HasSpecialization(tag) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) FindByProvider(ctx context.Context, provider string) ([]*types.Agent, error) {
	q := s.db.WithContext(ctx).Where("active = ? AND provider = ?", true, provider).Order("id")
	return s.queryAgents(q)
}

func (s *Store) queryAgents(q *gorm.DB) ([]*types.Agent, error) {
	var recs []agentRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*types.Agent, 0, len(recs))
	for i := range recs {
		a, err := recs[i].decode()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// --- tasks ---

func (s *Store) SaveTask(ctx context.Context, task *types.Task) error {
	rec, err := newTaskRecord(task)
	if err != nil {
		return err
	}
	return s.upsert(ctx, rec)
}

func (s *Store) GetTask(ctx context.Context, id string) (*types.Task, error) {
	var rec taskRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("task", id)
	}
	if err != nil {
		return nil, err
	}
	return rec.decode()
}

func (s *Store) ListTasks(ctx context.Context) ([]*types.Task, error) {
	return s.queryTasks(s.db.WithContext(ctx).Order("id"))
}

func (s *Store) FindUnassignedTasks(ctx context.Context) ([]*types.Task, error) {
	q := s.db.WithContext(ctx).
		Where("assigned_team_id = ?", "").
		Where("status NOT IN ?", []string{
			string(types.TaskCompleted),
			string(types.TaskFailed),
			string(types.TaskCancelled),
		}).
		Order("id")
	return s.queryTasks(q)
}

func (s *Store) FindOverdueTasks(ctx context.Context, now time.Time) ([]*types.Task, error) {
	tasks, err := s.queryTasks(s.db.WithContext(ctx).Order("id"))
	if err != nil {
		return nil, err
	}
	var out []*types.Task
	for _, t := range tasks {
		if t.Overdue(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) queryTasks(q *gorm.DB) ([]*types.Task, error) {
	var recs []taskRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*types.Task, 0, len(recs))
	for i := range recs {
		t, err := recs[i].decode()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// --- teams ---

func (s *Store) SaveTeam(ctx context.Context, team *types.Team) error {
	rec, err := newTeamRecord(team)
	if err != nil {
		return err
	}
	return s.upsert(ctx, rec)
}

func (s *Store) GetTeam(ctx context.Context, id string) (*types.Team, error) {
	var rec teamRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("team", id)
	}
	if err != nil {
		return nil, err
	}
	return rec.decode()
}

func (s *Store) ListTeams(ctx context.Context) ([]*types.Team, error) {
	var recs []teamRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*types.Team, 0, len(recs))
	for i := range recs {
		t, err := recs[i].decode()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&teamRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return types.NotFound("team", id)
	}
	return nil
}

func (s *Store) FindHighPriorityUnfilledRoles(ctx context.Context, minPriority int) ([]*types.Role, error) {
	teams, err := s.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	var out []*types.Role
	for _, t := range teams {
		for _, r := range t.Roles {
			if !r.Filled() && r.Priority >= minPriority {
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- negotiations ---

func (s *Store) SaveNegotiation(ctx context.Context, n *types.Negotiation) error {
	rec, err := newNegotiationRecord(n)
	if err != nil {
		return err
	}
	return s.upsert(ctx, rec)
}

func (s *Store) GetNegotiation(ctx context.Context, id string) (*types.Negotiation, error) {
	var rec negotiationRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("negotiation", id)
	}
	if err != nil {
		return nil, err
	}
	return rec.decode()
}

// --- contexts ---

func (s *Store) SaveContext(ctx context.Context, sc *types.SharedContext) error {
	rec, err := newContextRecord(sc)
	if err != nil {
		return err
	}
	return s.upsert(ctx, rec)
}

func (s *Store) GetContext(ctx context.Context, id string) (*types.SharedContext, error) {
	var rec contextRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("context", id)
	}
	if err != nil {
		return nil, err
	}
	return rec.decode()
}

func (s *Store) ListContexts(ctx context.Context) ([]*types.SharedContext, error) {
	var recs []contextRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*types.SharedContext, 0, len(recs))
	for i := range recs {
		sc, err := recs[i].decode()
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// DeleteContext removes a context and its version chain.
func (s *Store) DeleteContext(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&contextRecord{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NotFound("context", id)
		}
		return tx.Delete(&versionRecord{}, "context_id = ?", id).Error
	})
}

func (s *Store) SaveVersion(ctx context.Context, v *types.ContextVersion) error {
	rec, err := newVersionRecord(v)
	if err != nil {
		return err
	}
	return s.upsert(ctx, rec)
}

func (s *Store) GetVersion(ctx context.Context, contextID, versionID string) (*types.ContextVersion, error) {
	var rec versionRecord
	err := s.db.WithContext(ctx).
		First(&rec, "context_id = ? AND version_id = ?", contextID, versionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("context version", versionID)
	}
	if err != nil {
		return nil, err
	}
	return rec.decode()
}

func (s *Store) ListVersions(ctx context.Context, contextID string) ([]*types.ContextVersion, error) {
	var recs []versionRecord
	err := s.db.WithContext(ctx).
		Where("context_id = ?", contextID).
		Order("number").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]*types.ContextVersion, 0, len(recs))
	for i := range recs {
		v, err := recs[i].decode()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// --- capabilities ---

func (s *Store) SaveCapability(ctx context.Context, c *types.Capability) error {
	rec, err := newCapabilityRecord(c)
	if err != nil {
		return err
	}
	return s.upsert(ctx, rec)
}

func (s *Store) GetCapability(ctx context.Context, name string) (*types.Capability, error) {
	var rec capabilityRecord
	err := s.db.WithContext(ctx).First(&rec, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("capability", name)
	}
	if err != nil {
		return nil, err
	}
	return rec.decode()
}

func (s *Store) ListCapabilities(ctx context.Context) ([]*types.Capability, error) {
	return s.queryCapabilities(s.db.WithContext(ctx).Order("name"))
}

func (s *Store) FindByCategory(ctx context.Context, category string) ([]*types.Capability, error) {
	q := s.db.WithContext(ctx).Where("category = ?", category).Order("name")
	return s.queryCapabilities(q)
}

func (s *Store) queryCapabilities(q *gorm.DB) ([]*types.Capability, error) {
	var recs []capabilityRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*types.Capability, 0, len(recs))
	for i := range recs {
		c, err := recs[i].decode()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
