// Package notify sends the staff email announcing a new submission. Delivery
// is best-effort: the submission workflow never fails because of it.
package notify

import "context"

// ApplicationEmail is the structured payload for one notification.
type ApplicationEmail struct {
	CompanyName string
	FullName    string
	Email       string
	Phone       string
	Address     string
	Notes       string
	PassportURL string
	BillURL     string
}

type Notifier interface {
	Send(ctx context.Context, msg ApplicationEmail) error
}

// Disabled is used when no mail provider is configured.
type Disabled struct{}

func (Disabled) Send(context.Context, ApplicationEmail) error { return nil }
