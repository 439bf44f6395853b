package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/iliyamo/storefront/internal/model"
	"github.com/iliyamo/storefront/internal/payment"
	"github.com/iliyamo/storefront/internal/queue"
	"github.com/iliyamo/storefront/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryUsers is an in-memory UserStore with the same uniqueness rule
// as the real stores.
type memoryUsers struct {
	mu      sync.Mutex
	byID    map[string]model.User
	nextID  int
	failAll error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]model.User{}}
}

func (m *memoryUsers) Create(_ context.Context, u model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return model.User{}, m.failAll
	}
	u.Email = model.NormalizeEmail(u.Email)
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	m.nextID++
	u.ID = strconv.Itoa(m.nextID)
	m.byID[u.ID] = u
	return u, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return model.User{}, m.failAll
	}
	email = model.NormalizeEmail(email)
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return model.User{}, m.failAll
	}
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUsers) HasAdmin(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return false, m.failAll
	}
	for _, u := range m.byID {
		if u.Role == model.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryUsers) UpdateRole(_ context.Context, id, role string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	u.Role = role
	m.byID[id] = u
	return u, nil
}

// fakeProcessor records calls and returns canned results.
type fakeProcessor struct {
	mu sync.Mutex

	created    []payment.CreateParams
	createOut  payment.Session
	createErr  error
	getCalls   int
	listCalls  int
	session    payment.Session
	getErr     error
	lineItems  []payment.LineItem
	listErr    error
	blockUntil <-chan struct{}
}

func (f *fakeProcessor) CreateSession(ctx context.Context, p payment.CreateParams) (payment.Session, error) {
	f.mu.Lock()
	f.created = append(f.created, p)
	f.mu.Unlock()
	if f.blockUntil != nil {
		select {
		case <-f.blockUntil:
		case <-ctx.Done():
			return payment.Session{}, ctx.Err()
		}
	}
	if f.createErr != nil {
		return payment.Session{}, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeProcessor) GetSession(_ context.Context, id string) (payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return payment.Session{}, f.getErr
	}
	s := f.session
	s.ID = id
	return s, nil
}

func (f *fakeProcessor) ListLineItems(_ context.Context, _ string) ([]payment.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]payment.LineItem(nil), f.lineItems...), nil
}

func (f *fakeProcessor) createCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// recordingPublisher captures audit events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.CheckoutCreatedEvent
	err    error
}

func (p *recordingPublisher) PublishCheckoutCreated(_ context.Context, ev queue.CheckoutCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

var errStoreDown = errors.New("store unavailable")
