package repo

import (
	"context"
	"fmt"

	"productsnap/internal/domain"
	"productsnap/internal/infra"
	"productsnap/internal/sqlinline"
)

// SubscriptionRepositoryPG reads and writes the billing view used by admission.
type SubscriptionRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewSubscriptionRepository(sql infra.SQLExecutor) *SubscriptionRepositoryPG {
	return &SubscriptionRepositoryPG{sql: sql}
}

// GetByUserID returns domain.ErrNotFound when the user has no subscription row.
func (r *SubscriptionRepositoryPG) GetByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	var (
		sub    domain.Subscription
		plan   string
		status string
	)
	err := r.sql.QueryRow(ctx, sqlinline.QSelectSubscription, userID).Scan(
		&sub.UserID,
		&plan,
		&status,
		&sub.CurrentPeriodEnd,
		&sub.CancelAtPeriodEnd,
		&sub.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	sub.Plan = domain.Plan(plan)
	sub.Status = domain.SubscriptionStatus(status)
	return &sub, nil
}

func (r *SubscriptionRepositoryPG) Upsert(ctx context.Context, sub *domain.Subscription) error {
	if sub == nil {
		return fmt.Errorf("subscription is required")
	}
	if !sub.Plan.Valid() {
		return fmt.Errorf("unknown plan %q", sub.Plan)
	}
	_, err := r.sql.Exec(ctx, sqlinline.QUpsertSubscription,
		sub.UserID,
		string(sub.Plan),
		string(sub.Status),
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
	)
	return err
}

var _ domain.SubscriptionRepository = (*SubscriptionRepositoryPG)(nil)
