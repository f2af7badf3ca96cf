package domain

import "time"

// ActivityStatus marks the outcome of an audited action.
type ActivityStatus string

const (
	ActivitySuccess ActivityStatus = "success"
	ActivityFailed  ActivityStatus = "failed"
)

// Activity action kinds recorded on the audit trail.
const (
	ActionRegister        = "register"
	ActionOTPVerification = "otp-verification"
	ActionLogin           = "login"
	ActionLogout          = "logout"
	ActionForgotPassword  = "forgot-password"
	ActionResetPassword   = "reset-password"
	ActionProfileUpdate   = "profile-update"
	ActionRoleChange      = "role-change"
	ActionUserDeletion    = "user-deletion"
	ActionAccountLockout  = "account-lockout"
)

// ActivityEntry is a single append-only audit record emitted for every
// security-relevant action. The trail is an external collaborator: the core
// only publishes entries, it never reads them back.
type ActivityEntry struct {
	EventID    string
	UserID     *string
	Email      string
	Action     string
	Status     ActivityStatus
	Detail     string
	IP         string
	UserAgent  string
	OccurredAt time.Time
}
