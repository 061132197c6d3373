package domain

// SubscriptionPlan is the billing basis of a product or cart line.
// The zero value means no plan was chosen.
type SubscriptionPlan string

const (
	PlanMonthly    SubscriptionPlan = "MONTHLY"
	PlanYearly     SubscriptionPlan = "YEARLY"
	PlanPerUser    SubscriptionPlan = "PER_USER"
	PlanPerMachine SubscriptionPlan = "PER_MACHINE"
)

func (p SubscriptionPlan) String() string {
	return string(p)
}
