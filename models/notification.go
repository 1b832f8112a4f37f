package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationIssue  NotificationType = "ISSUE"
	NotificationWallet NotificationType = "WALLET"
	NotificationSystem NotificationType = "SYSTEM"
)

func (t NotificationType) Valid() bool {
	return t == NotificationIssue || t == NotificationWallet || t == NotificationSystem
}

// Receipt records when one user read or archived a shared notification.
type Receipt struct {
	User primitive.ObjectID `bson:"user" json:"user"`
	At   time.Time          `bson:"at" json:"at"`
}

// Notification is addressed to exactly one of a user or a department.
// IsRead/IsArchived apply to personal notifications; department notifications
// track per-staff state in ReadBy/ArchivedBy.
type Notification struct {
	ID                  primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	RecipientUser       *primitive.ObjectID `bson:"recipientUser" json:"recipientUser"`
	RecipientDepartment *primitive.ObjectID `bson:"recipientDepartment" json:"recipientDepartment"`
	Issue               *primitive.ObjectID `bson:"issue" json:"issue"`
	Title               string              `bson:"title" json:"title"`
	Message             string              `bson:"message" json:"message"`
	Type                NotificationType    `bson:"type" json:"type"`
	IsRead              bool                `bson:"isRead" json:"isRead"`
	IsArchived          bool                `bson:"isArchived" json:"isArchived"`
	ReadBy              []Receipt           `bson:"isReadBy" json:"-"`
	ArchivedBy          []Receipt           `bson:"isArchivedBy" json:"-"`
	CreatedAt           time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time           `bson:"updatedAt" json:"updatedAt"`
}

func (n *Notification) IsPersonal() bool {
	return n.RecipientUser != nil
}

func (n *Notification) ReadByUser(userID primitive.ObjectID) bool {
	return hasReceipt(n.ReadBy, userID)
}

func (n *Notification) ArchivedByUser(userID primitive.ObjectID) bool {
	return hasReceipt(n.ArchivedBy, userID)
}

func (n *Notification) Clone() *Notification {
	out := *n
	out.ReadBy = append([]Receipt(nil), n.ReadBy...)
	out.ArchivedBy = append([]Receipt(nil), n.ArchivedBy...)
	return &out
}

func hasReceipt(receipts []Receipt, userID primitive.ObjectID) bool {
	for _, r := range receipts {
		if r.User == userID {
			return true
		}
	}
	return false
}

// Feed is a user's notification inbox. Department entries carry an IsRead
// value computed for the viewing user.
type Feed struct {
	Personal   []Notification `json:"personal"`
	Department []Notification `json:"department"`
}
