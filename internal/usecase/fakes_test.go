package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"github.com/ErlanBelekov/notes-api/internal/email"
)

// ---- users ----

// memUserRepo is a stateful in-memory UserRepository. Setting failWith makes
// every call return that error.
type memUserRepo struct {
	mu       sync.Mutex
	byID     map[string]*domain.User
	seq      int
	failWith error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[string]*domain.User)}
}

func clone(u *domain.User) *domain.User {
	cp := *u
	if u.Challenge != nil {
		c := *u.Challenge
		cp.Challenge = &c
	}
	if u.RefreshTokenHash != nil {
		h := *u.RefreshTokenHash
		cp.RefreshTokenHash = &h
	}
	return &cp
}

func (r *memUserRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return nil, domain.ErrEmailTaken
		}
	}
	r.seq++
	stored := clone(u)
	stored.ID = fmt.Sprintf("user-%d", r.seq)
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.byID[stored.ID] = stored
	return clone(stored), nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return clone(u), nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, addr string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, u := range r.byID {
		if u.Email == addr {
			return clone(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) SetChallenge(_ context.Context, userID string, c domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	c.Attempts = 0
	u.Challenge = &c
	return nil
}

func (r *memUserRepo) ConsumeChallenge(_ context.Context, userID, codeHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok || u.Challenge == nil || u.Challenge.CodeHash != codeHash {
		return domain.ErrInvalidCode
	}
	u.Challenge = nil
	return nil
}

func (r *memUserRepo) IncrementChallengeAttempts(_ context.Context, userID, codeHash string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok || u.Challenge == nil || u.Challenge.CodeHash != codeHash {
		return 0, domain.ErrInvalidCode
	}
	u.Challenge.Attempts++
	return u.Challenge.Attempts, nil
}

func (r *memUserRepo) ClearChallenge(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[userID]; ok {
		u.Challenge = nil
	}
	return nil
}

func (r *memUserRepo) SweepExpiredChallenges(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.byID {
		if u.Challenge != nil && u.Challenge.Expired(now) {
			u.Challenge = nil
			n++
		}
	}
	return n, nil
}

func (r *memUserRepo) SetRefreshTokenHash(_ context.Context, userID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.RefreshTokenHash = &hash
	return nil
}

func (r *memUserRepo) RotateRefreshTokenHash(_ context.Context, userID, oldHash, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok || u.RefreshTokenHash == nil || *u.RefreshTokenHash != oldHash {
		return domain.ErrRefreshTokenReused
	}
	u.RefreshTokenHash = &newHash
	return nil
}

func (r *memUserRepo) ClearRefreshTokenHash(_ context.Context, userID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[userID]; ok && u.RefreshTokenHash != nil && *u.RefreshTokenHash == hash {
		u.RefreshTokenHash = nil
	}
	return nil
}

func (r *memUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *memUserRepo) stored(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.byID[id])
}

// ---- notes ----

type memNoteRepo struct {
	mu    sync.Mutex
	notes []*domain.Note
	seq   int
	now   time.Time
}

func newMemNoteRepo() *memNoteRepo {
	return &memNoteRepo{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *memNoteRepo) Create(_ context.Context, n *domain.Note) (*domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.now = r.now.Add(time.Second)
	cp := *n
	cp.ID = fmt.Sprintf("note-%d", r.seq)
	cp.CreatedAt = r.now
	cp.UpdatedAt = r.now
	r.notes = append(r.notes, &cp)
	out := cp
	return &out, nil
}

func (r *memNoteRepo) ListByOwner(_ context.Context, ownerID string) ([]*domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Note
	for _, n := range r.notes {
		if n.OwnerID == ownerID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memNoteRepo) Delete(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.notes {
		if n.ID == id && n.OwnerID == ownerID {
			r.notes = append(r.notes[:i], r.notes[i+1:]...)
			return nil
		}
	}
	return domain.ErrNoteNotFound
}

// ---- email ----

// captureSender records every message and returns sendErr, if set.
type captureSender struct {
	mu      sync.Mutex
	sent    []email.Message
	sendErr error
}

func (s *captureSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, msg)
	return nil
}

// lastCode extracts the code from the most recent message.
func (s *captureSender) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return ""
	}
	var code string
	fmt.Sscanf(s.sent[len(s.sent)-1].Text, "Your OTP is %6s.", &code)
	return code
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
