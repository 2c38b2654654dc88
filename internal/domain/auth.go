package domain

import "time"

// User is an operator account stored in the users collection.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterRequest creates a new operator account.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse confirms account creation.
type RegisterResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// LoginRequest authenticates an operator.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the session token. The session itself expires
// server-side after the inactivity timeout.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
	User        *User  `json:"user"`
}
