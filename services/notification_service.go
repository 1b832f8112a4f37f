package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"civictrack/metrics"
	"civictrack/models"
	"civictrack/repository"
	"civictrack/ws"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const NotificationEvent = "notification"

// Realtime is the push channel notifications are fanned out on.
type Realtime interface {
	EmitToRoom(room, event string, payload any) error
}

// Audience addresses a notification to exactly one user or one department.
type Audience struct {
	User       *primitive.ObjectID
	Department *primitive.ObjectID
}

func UserAudience(id primitive.ObjectID) Audience {
	return Audience{User: &id}
}

func DepartmentAudience(id primitive.ObjectID) Audience {
	return Audience{Department: &id}
}

func (a Audience) room() string {
	if a.User != nil {
		return ws.UserRoom(*a.User)
	}
	return ws.DepartmentRoom(*a.Department)
}

func (a Audience) label() string {
	if a.User != nil {
		return "user"
	}
	return "department"
}

type NotificationInput struct {
	Title   string
	Message string
	Type    models.NotificationType
	Issue   *primitive.ObjectID
}

// BroadcastInput is an admin-authored notification. UserID wins over the
// other selectors; DepartmentID alone targets the shared department feed;
// Role fans out one personal notification per matching user, optionally
// narrowed by DepartmentID; models.RoleAll matches every role.
type BroadcastInput struct {
	Title        string
	Message      string
	Type         models.NotificationType
	UserID       *primitive.ObjectID
	DepartmentID *primitive.ObjectID
	Role         models.Role
}

type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	departments   repository.DepartmentRepository
	realtime      Realtime
	metrics       *metrics.Metrics
	logger        *slog.Logger
	now           func() time.Time
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	departments repository.DepartmentRepository,
	realtime Realtime,
	m *metrics.Metrics,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		users:         users,
		departments:   departments,
		realtime:      realtime,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

// Notify persists a notification and then pushes it to the audience's room.
// A failed push is logged; the stored record stays authoritative.
func (s *NotificationService) Notify(ctx context.Context, audience Audience, in NotificationInput) (*models.Notification, error) {
	if (audience.User == nil) == (audience.Department == nil) {
		return nil, invalid("recipient", "exactly one of user or department is required")
	}
	if in.Type == "" {
		in.Type = models.NotificationSystem
	}
	if !in.Type.Valid() {
		return nil, invalid("type", "must be ISSUE, WALLET or SYSTEM")
	}

	n := &models.Notification{
		RecipientUser:       audience.User,
		RecipientDepartment: audience.Department,
		Issue:               in.Issue,
		Title:               in.Title,
		Message:             in.Message,
		Type:                in.Type,
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, err
	}
	s.metrics.IncNotification(audience.label(), string(n.Type))
	s.push(ctx, audience.room(), n)
	return n, nil
}

func (s *NotificationService) push(ctx context.Context, room string, n *models.Notification) {
	if s.realtime == nil {
		return
	}
	if err := s.realtime.EmitToRoom(room, NotificationEvent, n); err != nil {
		s.metrics.IncPushFailure()
		s.logger.WarnContext(ctx, "realtime push failed",
			"room", room, "notification", n.ID.Hex(), "error", err)
	}
}

func (s *NotificationService) load(ctx context.Context, id primitive.ObjectID) (*models.Notification, error) {
	n, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return n, nil
}

// MarkRead marks id read for actor. Personal notifications flip their own
// flag; department notifications record a receipt for actor only.
func (s *NotificationService) MarkRead(ctx context.Context, id primitive.ObjectID, actor *models.User) (*models.Notification, error) {
	n, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case n.IsPersonal():
		if *n.RecipientUser != actor.ID {
			return nil, ErrForbidden
		}
		if err := s.notifications.MarkPersonalRead(ctx, id); err != nil {
			return nil, storeErr(err)
		}
	case actor.InDepartment(*n.RecipientDepartment):
		if err := s.notifications.AddReadReceipt(ctx, id, actor.ID, s.now()); err != nil {
			return nil, storeErr(err)
		}
	default:
		return nil, ErrForbidden
	}

	n, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewFor(n, actor.ID), nil
}

// MarkAllRead marks every personal and department notification of actor read
// and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor *models.User) (int64, error) {
	changed, err := s.notifications.MarkAllPersonalRead(ctx, actor.ID)
	if err != nil {
		return 0, err
	}
	if actor.Department != nil {
		n, err := s.notifications.MarkAllDepartmentRead(ctx, *actor.Department, actor.ID, s.now())
		if err != nil {
			return changed, err
		}
		changed += n
	}
	return changed, nil
}

// Archive hides a notification from actor's feed. Admins delete outright.
func (s *NotificationService) Archive(ctx context.Context, id primitive.ObjectID, actor *models.User) error {
	n, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	switch {
	case actor.Role == models.RoleAdmin:
		return storeErr(s.notifications.Delete(ctx, id))
	case n.IsPersonal():
		// Only citizens soft-delete their own personal notifications.
		if actor.Role != models.RoleCitizen || *n.RecipientUser != actor.ID {
			return ErrForbidden
		}
		return storeErr(s.notifications.ArchivePersonal(ctx, id))
	case actor.Role == models.RoleStaff && actor.InDepartment(*n.RecipientDepartment):
		return storeErr(s.notifications.AddArchiveReceipt(ctx, id, actor.ID, s.now()))
	}
	return ErrForbidden
}

// ListFor returns actor's feed. Department entries get IsRead computed from
// actor's receipt.
func (s *NotificationService) ListFor(ctx context.Context, actor *models.User) (*models.Feed, error) {
	personal, err := s.notifications.ListPersonal(ctx, actor.ID, repository.FeedLimit)
	if err != nil {
		return nil, err
	}
	feed := &models.Feed{Personal: personal, Department: []models.Notification{}}
	if actor.Department == nil {
		return feed, nil
	}

	shared, err := s.notifications.ListDepartment(ctx, *actor.Department, actor.ID, repository.FeedLimit)
	if err != nil {
		return nil, err
	}
	for i := range shared {
		feed.Department = append(feed.Department, *viewFor(&shared[i], actor.ID))
	}
	return feed, nil
}

func viewFor(n *models.Notification, viewer primitive.ObjectID) *models.Notification {
	if n.IsPersonal() {
		return n
	}
	out := n.Clone()
	out.IsRead = n.ReadByUser(viewer)
	out.IsArchived = n.ArchivedByUser(viewer)
	return out
}

// Broadcast sends an admin notification. See BroadcastInput for targeting.
func (s *NotificationService) Broadcast(ctx context.Context, actor *models.User, in BroadcastInput) ([]models.Notification, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	if in.Title == "" {
		return nil, invalid("title", "is required")
	}
	if in.Message == "" {
		return nil, invalid("message", "is required")
	}
	if in.Role != "" && in.Role != models.RoleAll && !in.Role.Valid() {
		return nil, invalid("role", "must be CITIZEN, STAFF, ADMIN or ALL")
	}
	msg := NotificationInput{Title: in.Title, Message: in.Message, Type: in.Type}

	switch {
	case in.UserID != nil:
		if _, err := s.users.FindByID(ctx, *in.UserID); err != nil {
			return nil, storeErr(err)
		}
		n, err := s.Notify(ctx, UserAudience(*in.UserID), msg)
		if err != nil {
			return nil, err
		}
		return []models.Notification{*n}, nil

	case in.Role != "":
		if in.DepartmentID != nil {
			if _, err := s.departments.FindByID(ctx, *in.DepartmentID); err != nil {
				return nil, storeErr(err)
			}
		}
		filter := repository.UserFilter{Role: in.Role, Department: in.DepartmentID}
		if in.Role == models.RoleAll {
			filter.Role = ""
		}
		users, err := s.users.Find(ctx, filter)
		if err != nil {
			return nil, err
		}
		out := make([]models.Notification, 0, len(users))
		for _, u := range users {
			n, err := s.Notify(ctx, UserAudience(u.ID), msg)
			if err != nil {
				return out, err
			}
			out = append(out, *n)
		}
		return out, nil

	case in.DepartmentID != nil:
		if _, err := s.departments.FindByID(ctx, *in.DepartmentID); err != nil {
			return nil, storeErr(err)
		}
		n, err := s.Notify(ctx, DepartmentAudience(*in.DepartmentID), msg)
		if err != nil {
			return nil, err
		}
		return []models.Notification{*n}, nil
	}
	return nil, invalid("recipient", "one of userId, departmentId or role is required")
}

// notifyQuietly is used for side effects after a committed write.
func (s *NotificationService) notifyQuietly(ctx context.Context, audience Audience, in NotificationInput) {
	if _, err := s.Notify(ctx, audience, in); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.ErrorContext(ctx, "failed to create notification",
			"audience", audience.label(), "type", in.Type, "error", err)
	}
}
