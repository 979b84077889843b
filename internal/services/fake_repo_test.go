package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/user-api/internal/models"
	"github.com/isdelr/user-api/internal/repository"
)

// memRepo is an in-memory UserRepository that counts calls.
type memRepo struct {
	mu    sync.Mutex
	users map[string]models.User
	calls int
	err   error
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[string]models.User)}
}

func (r *memRepo) touch() error {
	r.calls++
	return r.err
}

func (r *memRepo) List(ctx context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.touch(); err != nil {
		return nil, err
	}
	out := []models.User{}
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.touch(); err != nil {
		return models.User{}, err
	}
	u, ok := r.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r *memRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.touch(); err != nil {
		return models.User{}, err
	}
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

func (r *memRepo) Create(ctx context.Context, email, passwordHash string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.touch(); err != nil {
		return models.User{}, err
	}
	for _, u := range r.users {
		if u.Email == email {
			return models.User{}, repository.ErrConflict
		}
	}
	now := time.Now().UTC()
	u := models.User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, CreatedAt: now, UpdatedAt: now}
	r.users[u.ID] = u
	return u, nil
}

func (r *memRepo) Update(ctx context.Context, id string, upd models.UserUpdate) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.touch(); err != nil {
		return models.User{}, err
	}
	u, ok := r.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	if upd.Email != nil {
		for _, other := range r.users {
			if other.ID != id && other.Email == *upd.Email {
				return models.User{}, repository.ErrConflict
			}
		}
		u.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return u, nil
}

func (r *memRepo) Delete(ctx context.Context, id string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.touch(); err != nil {
		return models.User{}, err
	}
	u, ok := r.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	delete(r.users, id)
	return u, nil
}

// recordingEvents captures events instead of storing them.
type recordingEvents struct {
	mu     sync.Mutex
	events []models.Event
}

func (e *recordingEvents) CreateEvent(ctx context.Context, eventType, level, message string, userID *string) (models.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ev := models.Event{Type: eventType, Level: level, Message: message, UserID: userID}
	e.events = append(e.events, ev)
	return ev, nil
}

func (e *recordingEvents) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return e.events, nil
}

func (e *recordingEvents) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}
