package memory

import (
	"LinkTrace-Backend/internal/domain"
	"LinkTrace-Backend/internal/repository"
	"context"
	"strings"
	"sync"
	"time"
)

// MemStorage is an in-memory Storage implementation used by tests and local
// runs without a database.
type MemStorage struct {
	mu sync.RWMutex

	operators map[string]*domain.Operator
	trackers  map[int64]*domain.Tracker
	visitors  map[string]*domain.Visitor

	instancesByUUID map[string]*domain.TrackingInstance
	instancesByID   map[int64]*domain.TrackingInstance
	pairs           map[[2]int64]struct{}

	accesses []*domain.Access

	emailsByID      map[int64]*domain.SentEmail
	emailsByTracker map[int64]*domain.SentEmail

	unknown *domain.TrackingInstance

	operatorCounter int64
	trackerCounter  int64
	visitorCounter  int64
	instanceCounter int64
	accessCounter   int64
	emailCounter    int64
}

func New() *MemStorage {
	return &MemStorage{
		operators:       make(map[string]*domain.Operator),
		trackers:        make(map[int64]*domain.Tracker),
		visitors:        make(map[string]*domain.Visitor),
		instancesByUUID: make(map[string]*domain.TrackingInstance),
		instancesByID:   make(map[int64]*domain.TrackingInstance),
		pairs:           make(map[[2]int64]struct{}),
		emailsByID:      make(map[int64]*domain.SentEmail),
		emailsByTracker: make(map[int64]*domain.SentEmail),
	}
}

// --- Operator Methods ---

func (s *MemStorage) CreateOperator(_ context.Context, email, passwordHash string) (*domain.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := s.operators[key]; exists {
		return nil, repository.ErrOperatorExists
	}

	s.operatorCounter++
	op := &domain.Operator{
		ID:           s.operatorCounter,
		Email:        key,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	s.operators[key] = op
	return op, nil
}

func (s *MemStorage) GetOperatorByEmail(_ context.Context, email string) (*domain.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.operators[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrOperatorNotFound
	}
	return op, nil
}

// --- Tracker Methods ---

func (s *MemStorage) CreateTracker(_ context.Context, tracker *domain.Tracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trackerCounter++
	tracker.ID = s.trackerCounter
	tracker.CreatedAt = time.Now()
	s.trackers[tracker.ID] = tracker
	return nil
}

func (s *MemStorage) GetTracker(_ context.Context, id int64) (*domain.Tracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tracker, ok := s.trackers[id]
	if !ok {
		return nil, repository.ErrTrackerNotFound
	}
	return tracker, nil
}

func (s *MemStorage) ListTrackers(_ context.Context) ([]*domain.Tracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trackers := make([]*domain.Tracker, 0, len(s.trackers))
	for _, t := range s.trackers {
		trackers = append(trackers, t)
	}
	return trackers, nil
}

// --- Visitor Methods ---

func (s *MemStorage) CreateVisitor(_ context.Context, visitor *domain.Visitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.visitors[visitor.Username]; exists {
		return repository.ErrVisitorExists
	}

	s.visitorCounter++
	visitor.ID = s.visitorCounter
	visitor.CreatedAt = time.Now()
	s.visitors[visitor.Username] = visitor
	return nil
}

func (s *MemStorage) GetVisitorByUsername(_ context.Context, username string) (*domain.Visitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	visitor, ok := s.visitors[username]
	if !ok {
		return nil, repository.ErrVisitorNotFound
	}
	return visitor, nil
}

func (s *MemStorage) ListVisitors(_ context.Context) ([]*domain.Visitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	visitors := make([]*domain.Visitor, 0, len(s.visitors))
	for _, v := range s.visitors {
		visitors = append(visitors, v)
	}
	return visitors, nil
}

// --- Instance Methods ---

func (s *MemStorage) AssignVisitor(_ context.Context, trackerID, visitorID int64) (*domain.TrackingInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignLocked(trackerID, visitorID)
}

func (s *MemStorage) assignLocked(trackerID, visitorID int64) (*domain.TrackingInstance, error) {
	if _, ok := s.trackers[trackerID]; !ok {
		return nil, repository.ErrTrackerNotFound
	}
	if !s.visitorExistsLocked(visitorID) {
		return nil, repository.ErrVisitorNotFound
	}

	pair := [2]int64{trackerID, visitorID}
	if _, exists := s.pairs[pair]; exists {
		return nil, repository.ErrDuplicateAssignment
	}

	s.instanceCounter++
	inst := &domain.TrackingInstance{
		ID:        s.instanceCounter,
		TrackerID: trackerID,
		VisitorID: visitorID,
		UUID:      domain.NewInstanceUUID(),
		CreatedAt: time.Now(),
	}
	s.pairs[pair] = struct{}{}
	s.instancesByUUID[inst.UUID] = inst
	s.instancesByID[inst.ID] = inst
	return inst, nil
}

func (s *MemStorage) visitorExistsLocked(id int64) bool {
	for _, v := range s.visitors {
		if v.ID == id {
			return true
		}
	}
	return false
}

func (s *MemStorage) GetInstanceByUUID(_ context.Context, uuid string) (*domain.TrackingInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instancesByUUID[uuid]
	if !ok {
		return nil, repository.ErrInstanceNotFound
	}
	return inst, nil
}

func (s *MemStorage) ListTrackerInstances(_ context.Context, trackerID int64) ([]*domain.TrackingInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var instances []*domain.TrackingInstance
	for _, inst := range s.instancesByID {
		if inst.TrackerID == trackerID {
			instances = append(instances, inst)
		}
	}
	return instances, nil
}

func (s *MemStorage) MarkNotified(_ context.Context, instanceID int64, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instancesByID[instanceID]
	if !ok {
		return repository.ErrInstanceNotFound
	}
	inst.Notified = &when
	return nil
}

func (s *MemStorage) UnknownInstance(_ context.Context) (*domain.TrackingInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unknown != nil {
		return s.unknown, nil
	}

	tracker := &domain.Tracker{Name: domain.UnknownTrackerName}
	s.trackerCounter++
	tracker.ID = s.trackerCounter
	s.trackers[tracker.ID] = tracker

	visitor, ok := s.visitors[domain.UnknownVisitorName]
	if !ok {
		s.visitorCounter++
		visitor = &domain.Visitor{ID: s.visitorCounter, Username: domain.UnknownVisitorName}
		s.visitors[visitor.Username] = visitor
	}

	inst, err := s.assignLocked(tracker.ID, visitor.ID)
	if err != nil {
		return nil, err
	}
	s.unknown = inst
	return inst, nil
}

// --- Access Ledger Methods ---

func (s *MemStorage) AppendAccess(_ context.Context, access *domain.Access) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessCounter++
	access.ID = s.accessCounter
	access.CreatedAt = time.Now()
	s.accesses = append(s.accesses, access)
	return nil
}

func (s *MemStorage) InstanceStats(_ context.Context, instanceID int64) (*domain.AccessStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked(instanceID), nil
}

func (s *MemStorage) statsLocked(instanceID int64) *domain.AccessStats {
	stats := &domain.AccessStats{}
	for _, a := range s.accesses {
		if a.InstanceID != instanceID || !a.Result.Counted() || a.Time == nil {
			continue
		}
		stats.AccessCount++
		if stats.FirstAccess == nil || a.Time.Before(*stats.FirstAccess) {
			t := *a.Time
			stats.FirstAccess = &t
		}
		if stats.RecentAccess == nil || a.Time.After(*stats.RecentAccess) {
			t := *a.Time
			stats.RecentAccess = &t
		}
	}
	return stats
}

func (s *MemStorage) CountReadInstances(_ context.Context, trackerID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var read int64
	for _, inst := range s.instancesByID {
		if inst.TrackerID != trackerID {
			continue
		}
		if s.statsLocked(inst.ID).WasAccessed() {
			read++
		}
	}
	return read, nil
}

// AccessCountFor reports the total number of ledger rows for an instance,
// counted or not. Test helper.
func (s *MemStorage) AccessCountFor(instanceID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.accesses {
		if a.InstanceID == instanceID {
			n++
		}
	}
	return n
}

// --- Email Methods ---

func (s *MemStorage) SaveEmail(_ context.Context, email *domain.SentEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emailCounter++
	email.ID = s.emailCounter
	email.CreatedAt = time.Now()
	s.emailsByID[email.ID] = email
	s.emailsByTracker[email.TrackerID] = email
	return nil
}

func (s *MemStorage) GetEmail(_ context.Context, id int64) (*domain.SentEmail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.emailsByID[id]
	if !ok {
		return nil, repository.ErrEmailNotFound
	}
	return email, nil
}

func (s *MemStorage) GetEmailByTracker(_ context.Context, trackerID int64) (*domain.SentEmail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.emailsByTracker[trackerID]
	if !ok {
		return nil, repository.ErrEmailNotFound
	}
	return email, nil
}
