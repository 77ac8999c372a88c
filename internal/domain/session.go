package domain

type AuthStatus int

const (
	AuthUnknown AuthStatus = iota
	AuthUnauthenticated
	AuthAuthenticated
)

func (s AuthStatus) String() string {
	switch s {
	case AuthUnauthenticated:
		return "unauthenticated"
	case AuthAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

func (s AuthStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type UserInfo struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	ProfileID string `json:"profile_id,omitempty"`
	Email     string `json:"email,omitempty"`
}

type Device struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
