// Package auth is the identity layer: email/password and federated sign-in,
// profile updates, session lookup and observation, plus the user meta
// document each account owns.
package auth

import (
	"context"
	"errors"
	"time"
)

// Role is the user meta role used by menu filtering.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Collection names.
const (
	UsersCollection     = "users"
	UserMetasCollection = "usermetas"
)

// ProviderPassword marks accounts created with email and password.
const ProviderPassword = "password"

var (
	// ErrNoSession is returned for unknown or expired session tokens.
	ErrNoSession = errors.New("auth: no active session")
	// ErrNoVerifier is returned by federated login when no verifier is set.
	ErrNoVerifier = errors.New("auth: federated login is not configured")
)

// User is the public view of an account.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Provider    string `json:"provider"`
}

// UserMeta is the application document stored next to each account.
type UserMeta struct {
	ID               string    `json:"id,omitempty"`
	DisplayName      string    `json:"displayName"`
	Email            string    `json:"email"`
	Role             Role      `json:"role"`
	RegistrationDate time.Time `json:"registrationDate"`
}

// DefaultUserMeta is merged under every new meta document.
var DefaultUserMeta = UserMeta{Role: RoleMember}

// Session binds an opaque token to an account.
type Session struct {
	Token     string    `json:"token"`
	UID       string    `json:"uid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Profile is a profile change. Nil display name or photo leave the current
// value; empty email or password are not changed.
type Profile struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
	Email       string  `json:"email,omitempty"`
	Password    string  `json:"password,omitempty"`
}

// Identity is what a federated provider vouches for.
type Identity struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
	PhotoURL    string
}

// Verifier checks a federated credential (an ID token, an assertion) and
// returns the identity behind it.
type Verifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, credential string) (Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, credential string) (Identity, error) {
	return f(ctx, credential)
}

// Provider is the identity contract.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (Session, User, error)
	Login(ctx context.Context, email, password string) (Session, User, error)
	LoginFederated(ctx context.Context, credential string) (Session, User, error)
	Logout(ctx context.Context, token string) error
	UpdateProfile(ctx context.Context, token string, profile Profile) (User, error)
	Current(ctx context.Context, token string) (User, error)
	// Observe streams the user behind token whenever it changes. A nil
	// user means the session ended. The current user is sent first.
	Observe(ctx context.Context, token string) (<-chan *User, error)
}
