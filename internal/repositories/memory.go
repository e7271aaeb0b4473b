package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"conversation-service/internal/idgen"
	"conversation-service/internal/models"
)

type memoryThread struct {
	mu       sync.Mutex
	thread   models.Thread
	messages []models.Message
	deleted  bool
}

// MemoryStore keeps threads and messages in process. The index lock only guards the
// maps; every thread has its own mutex so work on different threads never contends.
type MemoryStore struct {
	ids idgen.Generator
	now func() time.Time

	mu      sync.RWMutex
	threads map[int64]*memoryThread
	pairs   map[[2]string]int64
}

// NewMemoryStore builds an empty store.
func NewMemoryStore(ids idgen.Generator) *MemoryStore {
	return &MemoryStore{
		ids:     ids,
		now:     time.Now,
		threads: make(map[int64]*memoryThread),
		pairs:   make(map[[2]string]int64),
	}
}

func (s *MemoryStore) CreateOrGetThread(ctx context.Context, initiatorID, recipientID string) (models.Thread, bool, error) {
	if initiatorID == recipientID {
		return models.Thread{}, false, ErrSelfThread
	}
	low, high := models.CanonicalPair(initiatorID, recipientID)
	key := [2]string{low, high}

	s.mu.Lock()
	if id, ok := s.pairs[key]; ok {
		entry := s.threads[id]
		s.mu.Unlock()
		entry.mu.Lock()
		thread, deleted := entry.thread.Clone(), entry.deleted
		entry.mu.Unlock()
		if deleted {
			// deleted between the index lookup and the thread lock; the pair is free again
			return s.CreateOrGetThread(ctx, initiatorID, recipientID)
		}
		return thread, false, nil
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	entry := &memoryThread{thread: models.Thread{
		ID:             s.ids.Next(),
		ParticipantIDs: []string{low, high},
		AcceptedBy:     []string{initiatorID},
		ArchivedBy:     []string{},
		MutedBy:        []string{},
		ContactedBy:    []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}}
	s.threads[entry.thread.ID] = entry
	s.pairs[key] = entry.thread.ID
	s.mu.Unlock()

	return entry.thread.Clone(), true, nil
}

func (s *MemoryStore) entry(threadID int64) (*memoryThread, error) {
	s.mu.RLock()
	entry, ok := s.threads[threadID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrThreadNotFound
	}
	return entry, nil
}

// withThread runs fn while holding the thread's lock.
func (s *MemoryStore) withThread(threadID int64, fn func(e *memoryThread) error) error {
	entry, err := s.entry(threadID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return ErrThreadNotFound
	}
	return fn(entry)
}

func (s *MemoryStore) GetThread(ctx context.Context, threadID int64) (models.Thread, error) {
	var out models.Thread
	err := s.withThread(threadID, func(e *memoryThread) error {
		out = e.thread.Clone()
		return nil
	})
	return out, err
}

func (s *MemoryStore) ListThreadsForUser(ctx context.Context, userID string) ([]models.Thread, error) {
	s.mu.RLock()
	entries := make([]*memoryThread, 0)
	for key, id := range s.pairs {
		if key[0] == userID || key[1] == userID {
			entries = append(entries, s.threads[id])
		}
	}
	s.mu.RUnlock()

	threads := make([]models.Thread, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			threads = append(threads, e.thread.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(threads, func(i, j int) bool {
		ai, aj := threads[i].LastActivity(), threads[j].LastActivity()
		if ai.Equal(aj) {
			return threads[i].ID > threads[j].ID
		}
		return ai.After(aj)
	})
	return threads, nil
}

func (s *MemoryStore) AddAccepted(ctx context.Context, threadID int64, userID string) (models.Thread, error) {
	return s.updateSet(threadID, userID, func(t *models.Thread) {
		t.AcceptedBy = addID(t.AcceptedBy, userID)
	})
}

func (s *MemoryStore) ToggleArchived(ctx context.Context, threadID int64, userID string) (models.Thread, error) {
	return s.updateSet(threadID, userID, func(t *models.Thread) {
		t.ArchivedBy = toggleID(t.ArchivedBy, userID)
	})
}

func (s *MemoryStore) ToggleMuted(ctx context.Context, threadID int64, userID string) (models.Thread, error) {
	return s.updateSet(threadID, userID, func(t *models.Thread) {
		t.MutedBy = toggleID(t.MutedBy, userID)
	})
}

func (s *MemoryStore) updateSet(threadID int64, userID string, mutate func(t *models.Thread)) (models.Thread, error) {
	var out models.Thread
	err := s.withThread(threadID, func(e *memoryThread) error {
		if !e.thread.IsParticipant(userID) {
			return ErrNotParticipant
		}
		mutate(&e.thread)
		e.thread.UpdatedAt = laterOf(s.now().UTC(), e.thread.UpdatedAt)
		out = e.thread.Clone()
		return nil
	})
	return out, err
}

func (s *MemoryStore) DeleteThread(ctx context.Context, threadID int64) error {
	entry, err := s.entry(threadID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	if entry.deleted {
		entry.mu.Unlock()
		return ErrThreadNotFound
	}
	entry.deleted = true
	entry.messages = nil
	key := [2]string{entry.thread.ParticipantIDs[0], entry.thread.ParticipantIDs[1]}
	entry.mu.Unlock()

	s.mu.Lock()
	delete(s.threads, threadID)
	if s.pairs[key] == threadID {
		delete(s.pairs, key)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg models.Message) (models.AppendResult, error) {
	var result models.AppendResult
	err := s.withThread(msg.ThreadID, func(e *memoryThread) error {
		if !e.thread.IsParticipant(msg.SenderID) {
			return ErrNotParticipant
		}
		msg.ID = s.ids.Next()
		msg.CreatedAt = nextTimestamp(s.now(), e.thread.LastMessageAt)
		msg.JobContext = msg.JobContext.Clone()

		firstContact := !containsUser(e.thread.ContactedBy, msg.SenderID)
		e.thread.ContactedBy = addID(e.thread.ContactedBy, msg.SenderID)
		ts := msg.CreatedAt
		e.thread.LastMessageAt = &ts
		e.thread.UpdatedAt = laterOf(ts, e.thread.UpdatedAt)
		e.messages = append(e.messages, msg)

		result = models.AppendResult{Message: msg, Thread: e.thread.Clone(), FirstContact: firstContact}
		return nil
	})
	return result, err
}

func (s *MemoryStore) ListMessages(ctx context.Context, threadID int64, limit int) ([]models.Message, error) {
	var out []models.Message
	err := s.withThread(threadID, func(e *memoryThread) error {
		msgs := e.messages
		if limit > 0 && len(msgs) > limit {
			msgs = msgs[len(msgs)-limit:]
		}
		out = make([]models.Message, 0, len(msgs))
		for _, m := range msgs {
			m.JobContext = m.JobContext.Clone()
			out = append(out, m)
		}
		return nil
	})
	return out, err
}

func addID(ids []string, id string) []string {
	if containsUser(ids, id) {
		return ids
	}
	return append(ids, id)
}

func toggleID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			out := make([]string, 0, len(ids)-1)
			out = append(out, ids[:i]...)
			return append(out, ids[i+1:]...)
		}
	}
	return append(ids, id)
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// MemoryPreferenceRepo stores preferences in process.
type MemoryPreferenceRepo struct {
	mu    sync.RWMutex
	prefs map[string]models.Preferences
}

func NewMemoryPreferenceRepo() *MemoryPreferenceRepo {
	return &MemoryPreferenceRepo{prefs: make(map[string]models.Preferences)}
}

func (r *MemoryPreferenceRepo) GetPreferences(ctx context.Context, userID string) (models.Preferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(models.Preferences, len(r.prefs[userID]))
	for k, v := range r.prefs[userID] {
		out[k] = v
	}
	return out, nil
}

func (r *MemoryPreferenceRepo) MergePreferences(ctx context.Context, userID string, partial models.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.prefs[userID]
	if !ok {
		stored = make(models.Preferences, len(partial))
		r.prefs[userID] = stored
	}
	for k, v := range partial {
		stored[k] = v
	}
	return nil
}

// MemoryDirectory serves profiles and jobs registered with Put*.
type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
	jobs     map[string]models.JobContext
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		profiles: make(map[string]models.Profile),
		jobs:     make(map[string]models.JobContext),
	}
}

func (d *MemoryDirectory) PutProfile(p models.Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.UserID] = p
}

func (d *MemoryDirectory) PutJob(j models.JobContext) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs[j.JobID] = j
}

func (d *MemoryDirectory) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[userID]
	if !ok {
		return models.Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (d *MemoryDirectory) GetJob(ctx context.Context, jobID string) (models.JobContext, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	j, ok := d.jobs[jobID]
	if !ok {
		return models.JobContext{}, ErrJobNotFound
	}
	return j, nil
}

var (
	_ ThreadRepository     = (*MemoryStore)(nil)
	_ MessageRepository    = (*MemoryStore)(nil)
	_ PreferenceRepository = (*MemoryPreferenceRepo)(nil)
	_ ProfileDirectory     = (*MemoryDirectory)(nil)
	_ JobDirectory         = (*MemoryDirectory)(nil)
	_ ThreadRepository     = (*ThreadRepo)(nil)
	_ MessageRepository    = (*MessageRepo)(nil)
	_ PreferenceRepository = (*PreferenceRepo)(nil)
	_ ProfileDirectory     = (*ProfileRepo)(nil)
	_ JobDirectory         = (*JobRepo)(nil)
)
