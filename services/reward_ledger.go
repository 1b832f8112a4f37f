package services

import (
	"context"
	"time"

	"civictrack/metrics"
	"civictrack/models"
	"civictrack/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AcknowledgmentReward      int64 = 1
	AcknowledgmentDescription       = "Reward for a verified issue report"
)

type RewardLedger struct {
	users   repository.UserRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRewardLedger(users repository.UserRepository, m *metrics.Metrics) *RewardLedger {
	return &RewardLedger{users: users, metrics: m, now: time.Now}
}

// CreditFirstAcknowledgment pays the reporter for an issue that was just
// acknowledged. The caller guarantees it runs once per issue.
func (l *RewardLedger) CreditFirstAcknowledgment(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := l.users.AppendTransaction(ctx, userID, models.Transaction{
		Description: AcknowledgmentDescription,
		Coins:       AcknowledgmentReward,
		Date:        l.now(),
	})
	if err != nil {
		return nil, storeErr(err)
	}
	l.metrics.IncRewardCredit()
	return user, nil
}
