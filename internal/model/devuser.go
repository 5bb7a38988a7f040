package model

// Dev user constants for no-auth mode.
// These are well-known IDs used when AUTH_ENABLED=false.
const (
	// DevUserID is the reserved user ID for unauthenticated access.
	// This user is created during database seeding when auth is disabled.
	DevUserID = "00000000-0000-0000-0000-000000000001"

	// DevUserEmail is the email for the dev user.
	DevUserEmail = "dev@local"

	// DevUserName is the display name for the dev user.
	DevUserName = "Dev User"
)

// NewDevUser creates the fixed-identity user model for no-auth mode.
// The dev user is an admin so that privileged actions (agent verification)
// stay reachable in local development.
func NewDevUser(id string) *User {
	if id == "" {
		id = DevUserID
	}
	return &User{
		ID:      id,
		Email:   DevUserEmail,
		Name:    DevUserName,
		IsAdmin: true,
	}
}
