package domain

// SessionStatus is the lifecycle state of the single process-wide session.
type SessionStatus string

const (
	StatusUnauthenticated SessionStatus = "unauthenticated"
	StatusAuthenticating  SessionStatus = "authenticating"
	StatusAuthenticated   SessionStatus = "authenticated"
	StatusError           SessionStatus = "error"
)

// SessionState is a point-in-time snapshot of the session: its status, the
// identity when authenticated, and the failure reason when status is
// StatusError. Identity is nil in every status except StatusAuthenticated.
type SessionState struct {
	Status   SessionStatus
	Identity *Identity
	Reason   string
}

// Authenticated reports whether the snapshot carries a live identity.
func (s SessionState) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil
}

// Credentials are the inputs to a login attempt.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration are the inputs to account creation.
type Registration struct {
	Username string `json:"username" validate:"required,min=3,max=80"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name,omitempty" validate:"max=100"`
}

// AuthResult is the outcome of authenticate/register. It is a value, not an
// error: credential rejection is an expected path rendered inline by the UI.
type AuthResult struct {
	Success bool
	Message string
}
