package bot

import (
	"sync"

	"notesbot/internal/model"
)

// Step identifies what input the bot is waiting for from a user.
type Step string

// Conversation steps. StepIdentifier is parameterized by the platform in
// State, giving one awaiting-identifier state per platform.
const (
	StepNone        Step = ""
	StepIdentifier  Step = "awaiting_identifier"
	StepKeyword     Step = "awaiting_keyword"
	StepNoteContent Step = "awaiting_note_content"
)

// State is one user's pending conversation slot.
type State struct {
	Step     Step
	Platform model.Platform
}

// Pending reports whether the user is inside a multi-step flow.
func (s State) Pending() bool { return s.Step != StepNone }

const sessionShards = 16

type sessionShard struct {
	mu     sync.Mutex
	states map[int64]State
	locks  map[int64]*sync.Mutex
}

// Sessions tracks per-user conversation state. State is process-local:
// a restart loses in-flight multi-step input and the user simply
// restarts the flow. Each user additionally gets a processing lock so one
// event is handled to completion before the next event from the same user,
// while different users proceed concurrently.
type Sessions struct {
	shards [sessionShards]*sessionShard
}

// NewSessions creates an empty session store.
func NewSessions() *Sessions {
	s := &Sessions{}
	for i := range s.shards {
		s.shards[i] = &sessionShard{
			states: make(map[int64]State),
			locks:  make(map[int64]*sync.Mutex),
		}
	}
	return s
}

func (s *Sessions) shard(userID int64) *sessionShard {
	return s.shards[uint64(userID)%sessionShards]
}

// Get returns the user's current state.
func (s *Sessions) Get(userID int64) State {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.states[userID]
}

// Set replaces the user's current state.
func (s *Sessions) Set(userID int64, state State) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.states[userID] = state
}

// Clear resets the user's state to none.
func (s *Sessions) Clear(userID int64) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.states, userID)
}

// Acquire takes the user's processing lock and returns its release func.
func (s *Sessions) Acquire(userID int64) func() {
	sh := s.shard(userID)
	sh.mu.Lock()
	l, ok := sh.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		sh.locks[userID] = l
	}
	sh.mu.Unlock()

	l.Lock()
	return l.Unlock
}
