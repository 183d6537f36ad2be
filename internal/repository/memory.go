package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

// NewMemory returns the in-process storage driver. Nothing survives a restart.
func NewMemory() *Set {
	return &Set{
		Users:    &memoryUsers{byID: map[string]domain.User{}},
		Products: &memoryProducts{byID: map[string]domain.Product{}},
		Orders:   &memoryOrders{byID: map[string]domain.Order{}},
		Tokens:   NewMemoryTokenRepository(time.Now),
	}
}

type memoryUsers struct {
	mu   sync.RWMutex
	byID map[string]domain.User
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrUserAlreadyExists
		}
	}
	m.byID[user.ID] = *user
	return nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *memoryUsers) MarkVerified(_ context.Context, id string) error {
	return m.modify(id, func(u *domain.User) { u.Verified = true })
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return m.modify(id, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (m *memoryUsers) modify(id string, fn func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	m.byID[id] = u
	return nil
}

type memoryProducts struct {
	mu   sync.RWMutex
	byID map[string]domain.Product
}

func (m *memoryProducts) Create(_ context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[product.ID] = *product
	return nil
}

func (m *memoryProducts) Update(_ context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.byID[product.ID]
	if !ok {
		return ErrProductNotFound
	}
	next := *product
	next.CreatedAt = current.CreatedAt
	if !next.HasImage() {
		next.Image = current.Image
	}
	m.byID[product.ID] = next
	return nil
}

func (m *memoryProducts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrProductNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memoryProducts) FindByID(_ context.Context, id string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (m *memoryProducts) List(_ context.Context) ([]*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	products := make([]*domain.Product, 0, len(m.byID))
	for _, p := range m.byID {
		p := p
		products = append(products, &p)
	}
	sort.Slice(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

type memoryOrders struct {
	mu   sync.RWMutex
	byID map[string]domain.Order
}

func (m *memoryOrders) Create(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *order
	stored.Items = append([]domain.OrderItem(nil), order.Items...)
	m.byID[order.ID] = stored
	return nil
}

func (m *memoryOrders) FindByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return &o, nil
}

func (m *memoryOrders) List(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orders := []*domain.Order{}
	for _, o := range m.byID {
		if userID != "" && o.UserID != userID {
			continue
		}
		o := o
		o.Items = append([]domain.OrderItem(nil), o.Items...)
		orders = append(orders, &o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
	return orders, nil
}

func (m *memoryOrders) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != from {
		return ErrStatusChanged
	}
	o.Status = to
	m.byID[id] = o
	return nil
}

type memoryToken struct {
	userID    string
	expiresAt time.Time
}

type memoryTokens struct {
	mu     sync.Mutex
	now    func() time.Time
	tokens map[string]memoryToken
	byUser map[string]string
}

// NewMemoryTokenRepository creates a TokenRepository whose expiry follows now.
func NewMemoryTokenRepository(now func() time.Time) TokenRepository {
	return &memoryTokens{
		now:    now,
		tokens: map[string]memoryToken{},
		byUser: map[string]string{},
	}
}

func (m *memoryTokens) Issue(_ context.Context, kind TokenKind, userID string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userKey := string(kind) + ":" + userID
	if existing, ok := m.byUser[userKey]; ok {
		if t, live := m.live(kind, existing); live && t.userID == userID {
			return existing, nil
		}
	}

	token := uuid.NewString()
	m.tokens[string(kind)+":"+token] = memoryToken{userID: userID, expiresAt: m.now().Add(ttl)}
	m.byUser[userKey] = token
	return token, nil
}

func (m *memoryTokens) Resolve(_ context.Context, kind TokenKind, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.live(kind, token)
	if !ok {
		return "", ErrTokenNotFound
	}
	return t.userID, nil
}

func (m *memoryTokens) Consume(_ context.Context, kind TokenKind, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.live(kind, token)
	if !ok {
		return "", ErrTokenNotFound
	}
	delete(m.tokens, string(kind)+":"+token)
	delete(m.byUser, string(kind)+":"+t.userID)
	return t.userID, nil
}

// live must be called with mu held.
func (m *memoryTokens) live(kind TokenKind, token string) (memoryToken, bool) {
	key := string(kind) + ":" + token
	t, ok := m.tokens[key]
	if !ok {
		return memoryToken{}, false
	}
	if !m.now().Before(t.expiresAt) {
		delete(m.tokens, key)
		return memoryToken{}, false
	}
	return t, true
}
