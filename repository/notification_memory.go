package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"civictrack/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type InMemoryNotificationRepository struct {
	mu            sync.RWMutex
	notifications map[primitive.ObjectID]*models.Notification
	now           func() time.Time
}

func NewInMemoryNotificationRepository() *InMemoryNotificationRepository {
	return &InMemoryNotificationRepository{
		notifications: make(map[primitive.ObjectID]*models.Notification),
		now:           time.Now,
	}
}

func (r *InMemoryNotificationRepository) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	now := r.now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	r.notifications[n.ID] = n.Clone()
	return nil
}

func (r *InMemoryNotificationRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n.Clone(), nil
}

func (r *InMemoryNotificationRepository) list(limit int, keep func(*models.Notification) bool) []models.Notification {
	out := make([]models.Notification, 0)
	for _, n := range r.notifications {
		if keep(n) {
			out = append(out, *n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *InMemoryNotificationRepository) ListPersonal(_ context.Context, userID primitive.ObjectID, limit int) ([]models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.list(limit, func(n *models.Notification) bool {
		return n.RecipientUser != nil && *n.RecipientUser == userID && !n.IsArchived
	}), nil
}

func (r *InMemoryNotificationRepository) ListDepartment(_ context.Context, deptID, viewer primitive.ObjectID, limit int) ([]models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.list(limit, func(n *models.Notification) bool {
		return n.RecipientDepartment != nil && *n.RecipientDepartment == deptID && !n.ArchivedByUser(viewer)
	}), nil
}

func (r *InMemoryNotificationRepository) mutate(id primitive.ObjectID, fn func(*models.Notification)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok {
		return ErrNotFound
	}
	fn(n)
	n.UpdatedAt = r.now()
	return nil
}

func (r *InMemoryNotificationRepository) MarkPersonalRead(_ context.Context, id primitive.ObjectID) error {
	return r.mutate(id, func(n *models.Notification) { n.IsRead = true })
}

func (r *InMemoryNotificationRepository) ArchivePersonal(_ context.Context, id primitive.ObjectID) error {
	return r.mutate(id, func(n *models.Notification) { n.IsArchived = true })
}

func (r *InMemoryNotificationRepository) AddReadReceipt(_ context.Context, id, userID primitive.ObjectID, at time.Time) error {
	return r.mutate(id, func(n *models.Notification) {
		if !n.ReadByUser(userID) {
			n.ReadBy = append(n.ReadBy, models.Receipt{User: userID, At: at})
		}
	})
}

func (r *InMemoryNotificationRepository) AddArchiveReceipt(_ context.Context, id, userID primitive.ObjectID, at time.Time) error {
	return r.mutate(id, func(n *models.Notification) {
		if !n.ArchivedByUser(userID) {
			n.ArchivedBy = append(n.ArchivedBy, models.Receipt{User: userID, At: at})
		}
	})
}

func (r *InMemoryNotificationRepository) MarkAllPersonalRead(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed int64
	for _, n := range r.notifications {
		if n.RecipientUser != nil && *n.RecipientUser == userID && !n.IsRead {
			n.IsRead = true
			n.UpdatedAt = r.now()
			changed++
		}
	}
	return changed, nil
}

func (r *InMemoryNotificationRepository) MarkAllDepartmentRead(_ context.Context, deptID, userID primitive.ObjectID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed int64
	for _, n := range r.notifications {
		if n.RecipientDepartment == nil || *n.RecipientDepartment != deptID || n.ReadByUser(userID) {
			continue
		}
		n.ReadBy = append(n.ReadBy, models.Receipt{User: userID, At: at})
		n.UpdatedAt = r.now()
		changed++
	}
	return changed, nil
}

func (r *InMemoryNotificationRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notifications[id]; !ok {
		return ErrNotFound
	}
	delete(r.notifications, id)
	return nil
}
