package auth

// User represents an account that can sign in.
type User struct {
	ID           int64
	Login        string
	PasswordHash string
	IsActive     bool
}

// SignIn is the outcome of a successful login.
type SignIn struct {
	UserID   int64 `json:"user_id"`
	ClientID int64 `json:"client_id"`
}
