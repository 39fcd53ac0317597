package gormstore

import (
	"encoding/json"
	"time"

	"github.com/teamflow-ai/teamflow/types"
)

// Each aggregate is stored as a full JSON document plus the scalar columns
// the queries filter or order on. The JSON column is the source of truth;
// the scalars are derived on save. Capability and specialization filters run
// in Go over the narrowed candidate set, keeping the filter semantics
// identical to the in-memory store.

type agentRecord struct {
	ID        string `gorm:"primaryKey"`
	Provider  string `gorm:"index"`
	Active    bool   `gorm:"index"`
	Available bool
	Data      []byte
	UpdatedAt time.Time
}

func (agentRecord) TableName() string { return "agents" }

func newAgentRecord(a *types.Agent) (*agentRecord, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return &agentRecord{
		ID:        a.ID,
		Provider:  a.Provider,
		Active:    a.Active,
		Available: a.Available,
		Data:      data,
	}, nil
}

func (r *agentRecord) decode() (*types.Agent, error) {
	var a types.Agent
	if err := json.Unmarshal(r.Data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

type taskRecord struct {
	ID             string `gorm:"primaryKey"`
	Status         string `gorm:"index"`
	AssignedTeamID string `gorm:"index"`
	DueAt          time.Time
	Data           []byte
	UpdatedAt      time.Time
}

func (taskRecord) TableName() string { return "tasks" }

func newTaskRecord(t *types.Task) (*taskRecord, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return &taskRecord{
		ID:             t.ID,
		Status:         string(t.Status),
		AssignedTeamID: t.AssignedTeamID,
		DueAt:          t.DueAt,
		Data:           data,
	}, nil
}

func (r *taskRecord) decode() (*types.Task, error) {
	var t types.Task
	if err := json.Unmarshal(r.Data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

type teamRecord struct {
	ID        string `gorm:"primaryKey"`
	Status    string `gorm:"index"`
	Data      []byte
	UpdatedAt time.Time
}

func (teamRecord) TableName() string { return "teams" }

func newTeamRecord(t *types.Team) (*teamRecord, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return &teamRecord{ID: t.ID, Status: string(t.Status), Data: data}, nil
}

func (r *teamRecord) decode() (*types.Team, error) {
	var t types.Team
	if err := json.Unmarshal(r.Data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

type negotiationRecord struct {
	ID        string `gorm:"primaryKey"`
	Status    string `gorm:"index"`
	Data      []byte
	UpdatedAt time.Time
}

func (negotiationRecord) TableName() string { return "negotiations" }

func newNegotiationRecord(n *types.Negotiation) (*negotiationRecord, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return &negotiationRecord{ID: n.ID, Status: string(n.Status), Data: data}, nil
}

func (r *negotiationRecord) decode() (*types.Negotiation, error) {
	var n types.Negotiation
	if err := json.Unmarshal(r.Data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

type contextRecord struct {
	ID        string `gorm:"primaryKey"`
	Type      string `gorm:"index"`
	Data      []byte
	UpdatedAt time.Time
}

func (contextRecord) TableName() string { return "contexts" }

func newContextRecord(sc *types.SharedContext) (*contextRecord, error) {
	data, err := json.Marshal(sc)
	if err != nil {
		return nil, err
	}
	return &contextRecord{ID: sc.ID, Type: sc.Type, Data: data}, nil
}

func (r *contextRecord) decode() (*types.SharedContext, error) {
	var sc types.SharedContext
	if err := json.Unmarshal(r.Data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// versionRecord keys on (context_id, version_id) so a context's chain
// deletes as a unit when the context goes away.
type versionRecord struct {
	ContextID string `gorm:"primaryKey"`
	VersionID string `gorm:"primaryKey"`
	Number    int    `gorm:"index"`
	Data      []byte
	CreatedAt time.Time
}

func (versionRecord) TableName() string { return "context_versions" }

func newVersionRecord(v *types.ContextVersion) (*versionRecord, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &versionRecord{
		ContextID: v.ContextID,
		VersionID: v.ID,
		Number:    v.Number,
		Data:      data,
	}, nil
}

func (r *versionRecord) decode() (*types.ContextVersion, error) {
	var v types.ContextVersion
	if err := json.Unmarshal(r.Data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

type capabilityRecord struct {
	Name      string `gorm:"primaryKey"`
	Category  string `gorm:"index"`
	Data      []byte
	UpdatedAt time.Time
}

func (capabilityRecord) TableName() string { return "capabilities" }

func newCapabilityRecord(c *types.Capability) (*capabilityRecord, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return &capabilityRecord{Name: c.Name, Category: c.Category, Data: data}, nil
}

func (r *capabilityRecord) decode() (*types.Capability, error) {
	var c types.Capability
	if err := json.Unmarshal(r.Data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
