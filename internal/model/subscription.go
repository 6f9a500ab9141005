package model

import "time"

// SubscriptionPeriodMonths is the length of one activation.
const SubscriptionPeriodMonths = 1

// AddMonth returns t advanced by one calendar month. Day overflow
// normalizes into the following month, so Jan 31 becomes Mar 3
// (or Mar 2 in a leap year).
func AddMonth(t time.Time) time.Time {
	return t.AddDate(0, SubscriptionPeriodMonths, 0)
}

// SubscriptionStatus is the caller-visible subscription state.
type SubscriptionStatus struct {
	IsSubscribed     bool       `json:"isSubscribed"`
	SubscriptionEnds *time.Time `json:"subscriptionEnds"`
	Expired          bool       `json:"-"`
}

// Message returns the human-readable status line.
func (s SubscriptionStatus) Message() string {
	if s.IsSubscribed {
		return "You have a valid subscription"
	}
	return "Please renew your subscription"
}
