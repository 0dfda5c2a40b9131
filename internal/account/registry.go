package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/medconnect/internal/kv"
)

const (
	userKeyPrefix    = "user:"
	sessionKeyPrefix = "session:"
)

// Registry stores users and their current sessions in a kv.Store.
type Registry struct {
	store kv.Store
	log   *zap.Logger
	cost  int
}

func NewRegistry(store kv.Store, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{store: store, log: log, cost: bcrypt.DefaultCost}
}

// Register creates the user and opens a session for it straight away.
func (r *Registry) Register(ctx context.Context, username, password string, role Role) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	if !role.Valid() {
		return Session{}, ErrInvalidRole
	}

	if _, err := r.lookup(ctx, username); err == nil {
		return Session{}, ErrUserExists
	} else if !errors.Is(err, kv.ErrNotFound) {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{Username: username, PasswordHash: string(hash), Role: role}
	data, err := json.Marshal(u)
	if err != nil {
		return Session{}, fmt.Errorf("encode user: %w", err)
	}
	created, err := r.store.SetNX(ctx, userKeyPrefix+username, string(data))
	if err != nil {
		return Session{}, fmt.Errorf("save user: %w", err)
	}
	if !created {
		return Session{}, ErrUserExists
	}

	r.log.Info("user registered", zap.String("username", username), zap.String("role", string(role)))
	return r.openSession(ctx, u)
}

func (r *Registry) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := r.lookup(ctx, strings.TrimSpace(username))
	if errors.Is(err, kv.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	return r.openSession(ctx, u)
}

// Current resolves a session token to its user.
func (r *Registry) Current(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrNoSession
	}

	username, err := r.store.Get(ctx, sessionKeyPrefix+token)
	if errors.Is(err, kv.ErrNotFound) {
		return User{}, ErrNoSession
	}
	if err != nil {
		return User{}, fmt.Errorf("load session: %w", err)
	}

	u, err := r.lookup(ctx, username)
	if errors.Is(err, kv.ErrNotFound) {
		return User{}, ErrNoSession
	}
	return u, err
}

func (r *Registry) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoSession
	}
	if err := r.store.Delete(ctx, sessionKeyPrefix+token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *Registry) openSession(ctx context.Context, u User) (Session, error) {
	token := uuid.NewString()
	if err := r.store.Set(ctx, sessionKeyPrefix+token, u.Username); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return Session{Token: token, User: u}, nil
}

func (r *Registry) lookup(ctx context.Context, username string) (User, error) {
	raw, err := r.store.Get(ctx, userKeyPrefix+username)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return User{}, err
		}
		return User{}, fmt.Errorf("load user: %w", err)
	}

	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return User{}, fmt.Errorf("decode user %s: %w", username, err)
	}
	return u, nil
}
