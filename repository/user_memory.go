package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"civictrack/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*models.User
	now   func() time.Time
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users: make(map[primitive.ObjectID]*models.User),
		now:   time.Now,
	}
}

func (r *InMemoryUserRepository) Create(_ context.Context, user *models.User) error {
	if err := user.BeforePersist(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := r.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user.Clone()
	return nil
}

func (r *InMemoryUserRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return user.Clone(), nil
}

func (r *InMemoryUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range r.users {
		if user.Email == email {
			return user.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryUserRepository) Find(_ context.Context, filter UserFilter) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, 0)
	for _, user := range r.users {
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		if filter.Department != nil && !user.InDepartment(*filter.Department) {
			continue
		}
		out = append(out, *user.Clone())
	}
	return out, nil
}

func (r *InMemoryUserRepository) SetDepartment(_ context.Context, id primitive.ObjectID, deptID *primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	if deptID == nil {
		user.Department = nil
	} else {
		v := *deptID
		user.Department = &v
	}
	user.UpdatedAt = r.now()
	return nil
}

func (r *InMemoryUserRepository) AppendTransaction(_ context.Context, id primitive.ObjectID, tx models.Transaction) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if user.Wallet.Balance+tx.Coins < 0 {
		return nil, ErrConflict
	}
	user.Wallet.Balance += tx.Coins
	user.Wallet.Transactions = append(user.Wallet.Transactions, tx)
	user.UpdatedAt = r.now()
	return user.Clone(), nil
}
