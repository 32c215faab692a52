package agents

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu          sync.Mutex
	agents      map[string]*Agent // keyed by retell_agent_id
	assignments []*Assignment
	clock       func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		agents: make(map[string]*Agent),
		clock:  time.Now,
	}
}

func (r *MemoryRepo) SetClock(clock func() time.Time) { r.clock = clock }

func (r *MemoryRepo) UpsertByRetellID(ctx context.Context, a Agent) (UpsertResult, error) {
	if a.RetellAgentID == "" {
		return UpsertResult{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock().UTC()
	if cur, ok := r.agents[a.RetellAgentID]; ok {
		// CompanyID and RatePerMinute are operator-set; sync never overwrites.
		cur.Name = a.Name
		cur.VoiceID = a.VoiceID
		cur.Language = a.Language
		if cur.Status == StatusInactive {
			cur.Status = StatusActive
		}
		cur.UpdatedAt = now
		return UpsertResult{Agent: *cur, Created: false}, nil
	}

	created := &Agent{
		ID:            uuid.NewString(),
		RetellAgentID: a.RetellAgentID,
		CompanyID:     a.CompanyID,
		Name:          a.Name,
		VoiceID:       a.VoiceID,
		Language:      a.Language,
		RatePerMinute: a.RatePerMinute,
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.agents[a.RetellAgentID] = created
	return UpsertResult{Agent: *created, Created: true}, nil
}

func (r *MemoryRepo) DeactivateMissing(ctx context.Context, keep []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}

	n := 0
	now := r.clock().UTC()
	for _, a := range r.agents {
		if a.Status == StatusActive && !keepSet[a.RetellAgentID] {
			a.Status = StatusInactive
			a.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) ListActive(ctx context.Context) ([]Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Agent
	for _, a := range r.agents {
		if a.Status == StatusActive {
			out = append(out, *a)
		}
	}
	sortByName(out)
	return out, nil
}

func (r *MemoryRepo) ListUnassigned(ctx context.Context) ([]Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	assigned := make(map[string]bool)
	for _, s := range r.assignments {
		assigned[s.AgentID] = true
	}

	var out []Agent
	for _, a := range r.agents {
		if a.Status == StatusActive && !assigned[a.ID] {
			out = append(out, *a)
		}
	}
	sortByName(out)
	return out, nil
}

func (r *MemoryRepo) GetByRetellID(ctx context.Context, retellAgentID string) (Agent, error) {
	if retellAgentID == "" {
		return Agent{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.agents[retellAgentID]; ok {
		return *a, nil
	}
	return Agent{}, ErrNotFound
}

func (r *MemoryRepo) SetPrimary(ctx context.Context, userID, companyID, agentID string) (Assignment, error) {
	if userID == "" || companyID == "" || agentID == "" {
		return Assignment{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var target *Agent
	for _, a := range r.agents {
		if a.ID == agentID {
			target = a
			break
		}
	}
	if target == nil {
		return Assignment{}, ErrNotFound
	}
	if !target.Status.Assignable() {
		return Assignment{}, ErrInactiveAgent
	}

	var existing *Assignment
	for _, s := range r.assignments {
		if s.UserID == userID {
			if s.AgentID == agentID {
				existing = s
			} else {
				s.IsPrimary = false
			}
		}
	}
	if existing != nil {
		existing.IsPrimary = true
		return *existing, nil
	}

	created := &Assignment{
		ID:        uuid.NewString(),
		UserID:    userID,
		CompanyID: companyID,
		AgentID:   agentID,
		IsPrimary: true,
		CreatedAt: r.clock().UTC(),
	}
	r.assignments = append(r.assignments, created)
	return *created, nil
}

func (r *MemoryRepo) ListAssignments(ctx context.Context, userID string) ([]Assignment, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Assignment
	for _, s := range r.assignments {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) ResolvePrimaryUser(ctx context.Context, retellAgentID string) (Assignment, error) {
	if retellAgentID == "" {
		return Assignment{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[retellAgentID]
	if !ok {
		return Assignment{}, ErrNotFound
	}
	for _, s := range r.assignments {
		if s.AgentID == a.ID && s.IsPrimary {
			return *s, nil
		}
	}
	return Assignment{}, ErrNotFound
}

func sortByName(agents []Agent) {
	sort.SliceStable(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
}
