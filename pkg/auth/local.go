package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/pkg/apperr"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/store"
)

// DefaultSessionTTL is how long a session stays valid.
const DefaultSessionTTL = 24 * time.Hour

// Local authenticates against accounts kept in a document store.
type Local struct {
	docs     store.Store
	verifier Verifier
	logger   *zap.SugaredLogger
	ttl      time.Duration
	now      func() time.Time
	hash     func(string) (string, error)

	mu       sync.RWMutex
	sessions map[string]Session
	watchers map[*watcher]struct{}
}

type watcher struct {
	token string
	uid   string
	ch    chan *User
}

// LocalOption customises Local.
type LocalOption func(*Local)

// WithVerifier enables federated login.
func WithVerifier(v Verifier) LocalOption {
	return func(l *Local) { l.verifier = v }
}

// WithLogger sets the provider logger.
func WithLogger(logger *zap.SugaredLogger) LocalOption {
	return func(l *Local) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) LocalOption {
	return func(l *Local) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) {
		if now != nil {
			l.now = now
		}
	}
}

// WithHasher replaces bcrypt hashing, e.g. with a lower cost in tests.
func WithHasher(hash func(string) (string, error)) LocalOption {
	return func(l *Local) {
		if hash != nil {
			l.hash = hash
		}
	}
}

// NewLocal returns a provider storing accounts and metas in docs.
func NewLocal(docs store.Store, opts ...LocalOption) *Local {
	l := &Local{
		docs:     docs,
		logger:   zap.NewNop().Sugar(),
		ttl:      DefaultSessionTTL,
		now:      time.Now,
		hash:     HashPassword,
		sessions: map[string]Session{},
		watchers: map[*watcher]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

var _ Provider = (*Local)(nil)

// SignUp creates an account and its meta document, then opens a session.
func (l *Local) SignUp(ctx context.Context, email, password string) (Session, User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, User{}, err
	}
	if !Strong(password) {
		return Session{}, User{}, apperr.FromAuth("auth/weak-password", nil)
	}
	if _, _, err := l.findByEmail(ctx, email); err == nil {
		return Session{}, User{}, apperr.FromAuth("auth/email-already-in-use", nil)
	} else if apperr.CodeOf(err) != apperr.CodeUserNotFound {
		return Session{}, User{}, err
	}
	hash, err := l.hash(password)
	if err != nil {
		return Session{}, User{}, fmt.Errorf("auth: hash password: %w", err)
	}

	user := User{UID: uuid.NewString(), Email: email, Provider: ProviderPassword}
	rec := userRecord(user)
	rec["hash"] = hash
	if err := l.docs.Set(ctx, UsersCollection, user.UID, rec, false); err != nil {
		return Session{}, User{}, fmt.Errorf("auth: create user: %w", err)
	}
	if err := l.buildMeta(ctx, user); err != nil {
		return Session{}, User{}, err
	}
	l.logger.Infow("user signed up", "uid", user.UID)
	return l.open(user), user, nil
}

// Login checks email and password.
func (l *Local) Login(ctx context.Context, email, password string) (Session, User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, User{}, err
	}
	user, rec, err := l.findByEmail(ctx, email)
	if err != nil {
		return Session{}, User{}, err
	}
	hash := model.Stringify(rec["hash"])
	if hash == "" || !CheckPasswordHash(password, hash) {
		l.logger.Debugw("login rejected", "uid", user.UID)
		return Session{}, User{}, apperr.FromAuth("auth/wrong-password", nil)
	}
	return l.open(user), user, nil
}

// LoginFederated signs in with a verified third-party identity. The account
// is created on first login and the meta document only when missing.
func (l *Local) LoginFederated(ctx context.Context, credential string) (Session, User, error) {
	if l.verifier == nil {
		return Session{}, User{}, apperr.New(apperr.CodeUnauthenticated, ErrNoVerifier)
	}
	id, err := l.verifier.Verify(ctx, credential)
	if err != nil {
		return Session{}, User{}, apperr.New(apperr.CodeUnauthenticated, fmt.Errorf("auth: verify credential: %w", err))
	}
	if id.Provider == "" || id.Subject == "" {
		return Session{}, User{}, apperr.New(apperr.CodeUnauthenticated, errors.New("auth: identity without subject"))
	}

	user, err := l.federatedUser(ctx, id)
	if err != nil {
		return Session{}, User{}, err
	}
	if _, err := l.docs.Get(ctx, UserMetasCollection, user.UID); errors.Is(err, store.ErrNotFound) {
		if err := l.buildMeta(ctx, user); err != nil {
			return Session{}, User{}, err
		}
	} else if err != nil {
		return Session{}, User{}, fmt.Errorf("auth: read meta: %w", err)
	}
	return l.open(user), user, nil
}

func (l *Local) federatedUser(ctx context.Context, id Identity) (User, error) {
	found, err := l.docs.Where(ctx, UsersCollection, store.Eq("provider", id.Provider), store.Eq("subject", id.Subject))
	if err != nil {
		return User{}, fmt.Errorf("auth: find identity: %w", err)
	}
	if len(found) > 0 {
		return userFromRecord(found[0]), nil
	}
	user := User{
		UID:         uuid.NewString(),
		Email:       strings.ToLower(strings.TrimSpace(id.Email)),
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
		Provider:    id.Provider,
	}
	rec := userRecord(user)
	rec["subject"] = id.Subject
	if err := l.docs.Set(ctx, UsersCollection, user.UID, rec, false); err != nil {
		return User{}, fmt.Errorf("auth: create user: %w", err)
	}
	l.logger.Infow("federated user created", "uid", user.UID, "provider", id.Provider)
	return user, nil
}

// buildMeta merges the defaults, email, display name and registration date
// into the meta document of user.
func (l *Local) buildMeta(ctx context.Context, user User) error {
	meta := model.Record{
		"role":             string(DefaultUserMeta.Role),
		"email":            user.Email,
		"displayName":      user.DisplayName,
		"registrationDate": l.now().UTC().Format(time.RFC3339),
	}
	if err := l.docs.Set(ctx, UserMetasCollection, user.UID, meta, true); err != nil {
		return fmt.Errorf("auth: build meta: %w", err)
	}
	return nil
}

// Meta returns the meta document of uid.
func (l *Local) Meta(ctx context.Context, uid string) (UserMeta, error) {
	rec, err := l.docs.Get(ctx, UserMetasCollection, uid)
	if err != nil {
		return UserMeta{}, err
	}
	meta := UserMeta{
		ID:          uid,
		DisplayName: model.Stringify(rec["displayName"]),
		Email:       model.Stringify(rec["email"]),
		Role:        Role(model.Stringify(rec["role"])),
	}
	if t, err := time.Parse(time.RFC3339, model.Stringify(rec["registrationDate"])); err == nil {
		meta.RegistrationDate = t
	}
	return meta, nil
}

// Logout ends the session behind token.
func (l *Local) Logout(_ context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sessions[token]; !ok {
		return apperr.New(apperr.CodeUnauthenticated, ErrNoSession)
	}
	delete(l.sessions, token)
	for w := range l.watchers {
		if w.token == token {
			send(w.ch, nil)
		}
	}
	return nil
}

// UpdateProfile changes the profile of the session user. Email and password
// changes are validated like at sign up.
func (l *Local) UpdateProfile(ctx context.Context, token string, p Profile) (User, error) {
	sess, err := l.session(token)
	if err != nil {
		return User{}, err
	}
	rec, err := l.docs.Get(ctx, UsersCollection, sess.UID)
	if err != nil {
		return User{}, fmt.Errorf("auth: read user: %w", err)
	}

	patch := model.Record{}
	if p.DisplayName != nil {
		patch["displayName"] = *p.DisplayName
	}
	if p.PhotoURL != nil {
		patch["photoURL"] = *p.PhotoURL
	}
	if p.Email != "" {
		email, err := normalizeEmail(p.Email)
		if err != nil {
			return User{}, err
		}
		if email != model.Stringify(rec["email"]) {
			if _, _, err := l.findByEmail(ctx, email); err == nil {
				return User{}, apperr.FromAuth("auth/email-already-in-use", nil)
			}
			patch["email"] = email
		}
	}
	if p.Password != "" {
		if !Strong(p.Password) {
			return User{}, apperr.FromAuth("auth/weak-password", nil)
		}
		hash, err := l.hash(p.Password)
		if err != nil {
			return User{}, fmt.Errorf("auth: hash password: %w", err)
		}
		patch["hash"] = hash
	}
	if len(patch) > 0 {
		if err := l.docs.Update(ctx, UsersCollection, sess.UID, patch); err != nil {
			return User{}, fmt.Errorf("auth: update user: %w", err)
		}
	}

	user, err := l.user(ctx, sess.UID)
	if err != nil {
		return User{}, err
	}
	l.broadcast(user)
	return user, nil
}

// Current returns the user behind token.
func (l *Local) Current(ctx context.Context, token string) (User, error) {
	sess, err := l.session(token)
	if err != nil {
		return User{}, err
	}
	return l.user(ctx, sess.UID)
}

// Observe implements Provider.
func (l *Local) Observe(ctx context.Context, token string) (<-chan *User, error) {
	user, err := l.Current(ctx, token)
	if err != nil {
		return nil, err
	}
	w := &watcher{token: token, uid: user.UID, ch: make(chan *User, 1)}
	w.ch <- &user

	l.mu.Lock()
	l.watchers[w] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.watchers, w)
		close(w.ch)
		l.mu.Unlock()
	}()
	return w.ch, nil
}

func (l *Local) broadcast(user User) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for w := range l.watchers {
		if w.uid == user.UID {
			u := user
			send(w.ch, &u)
		}
	}
}

// send keeps only the newest value in a one-slot channel. Callers must hold
// the provider lock or own the channel so it cannot be closed concurrently.
func send(ch chan *User, u *User) {
	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (l *Local) open(user User) Session {
	sess := Session{Token: uuid.NewString(), UID: user.UID, ExpiresAt: l.now().Add(l.ttl)}
	l.mu.Lock()
	l.sessions[sess.Token] = sess
	l.mu.Unlock()
	return sess
}

func (l *Local) session(token string) (Session, error) {
	l.mu.RLock()
	sess, ok := l.sessions[token]
	l.mu.RUnlock()
	if !ok {
		return Session{}, apperr.New(apperr.CodeUnauthenticated, ErrNoSession)
	}
	if !l.now().Before(sess.ExpiresAt) {
		l.mu.Lock()
		delete(l.sessions, token)
		l.mu.Unlock()
		return Session{}, apperr.New(apperr.CodeUnauthenticated, ErrNoSession)
	}
	return sess, nil
}

func (l *Local) user(ctx context.Context, uid string) (User, error) {
	rec, err := l.docs.Get(ctx, UsersCollection, uid)
	if err != nil {
		return User{}, fmt.Errorf("auth: read user: %w", err)
	}
	return userFromRecord(rec), nil
}

func (l *Local) findByEmail(ctx context.Context, email string) (User, model.Record, error) {
	found, err := l.docs.Where(ctx, UsersCollection, store.Eq("email", email))
	if err != nil {
		return User{}, nil, fmt.Errorf("auth: find user: %w", err)
	}
	if len(found) == 0 {
		return User{}, nil, apperr.FromAuth("auth/user-not-found", nil)
	}
	return userFromRecord(found[0]), found[0], nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.FromAuth("auth/invalid-email", err)
	}
	return email, nil
}

func userRecord(u User) model.Record {
	return model.Record{
		"email":       u.Email,
		"displayName": u.DisplayName,
		"photoURL":    u.PhotoURL,
		"provider":    u.Provider,
	}
}

func userFromRecord(rec model.Record) User {
	return User{
		UID:         model.Stringify(rec[store.IDKey]),
		Email:       model.Stringify(rec["email"]),
		DisplayName: model.Stringify(rec["displayName"]),
		PhotoURL:    model.Stringify(rec["photoURL"]),
		Provider:    model.Stringify(rec["provider"]),
	}
}
