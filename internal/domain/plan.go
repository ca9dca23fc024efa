package domain

import "time"

// Plan enumerates billing plans.
type Plan string

const (
	PlanFree         Plan = "free"
	PlanBasicMonthly Plan = "basic_monthly"
	PlanBasicYearly  Plan = "basic_yearly"
	PlanProMonthly   Plan = "pro_monthly"
	PlanProYearly    Plan = "pro_yearly"
)

// Plans lists every known plan.
var Plans = []Plan{PlanFree, PlanBasicMonthly, PlanBasicYearly, PlanProMonthly, PlanProYearly}

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	for _, known := range Plans {
		if known == p {
			return true
		}
	}
	return false
}

// SubscriptionStatus enumerates billing states reported by the payment provider.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionPending   SubscriptionStatus = "pending"
)

// Subscription is the read-only billing view of a user.
type Subscription struct {
	UserID            string
	Plan              Plan
	Status            SubscriptionStatus
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	UpdatedAt         time.Time
}

// EffectivePlan returns the plan used for limiting. Anything but an active
// subscription is limited as the free tier.
func (s *Subscription) EffectivePlan() Plan {
	if s == nil || s.Status != SubscriptionActive || !s.Plan.Valid() {
		return PlanFree
	}
	return s.Plan
}

// Period is the window a usage counter covers.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// PlanLimits is the static per-plan admission configuration.
type PlanLimits struct {
	MaxJobs       int
	MaxConcurrent int
	Period        Period
}

// PlanLimitTable maps plans to limits.
type PlanLimitTable map[Plan]PlanLimits

// For returns the limits of plan, falling back to the free tier.
func (t PlanLimitTable) For(plan Plan) PlanLimits {
	if l, ok := t[plan]; ok {
		return l
	}
	return t[PlanFree]
}
