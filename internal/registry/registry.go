package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pong/internal/metrics"
	"pong/internal/models"
	"pong/internal/session"
	"pong/internal/utils"
)

var ErrAuthentication = errors.New("authentication failed")

// IdentityResolver maps a connection credential to a persistent user key.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (string, error)
}

// JWTResolver accepts HMAC-signed tokens carrying a username or sub claim.
type JWTResolver struct {
	Secret []byte
}

func (j JWTResolver) Resolve(_ context.Context, credential string) (string, error) {
	claims, err := utils.ParseToken(credential, j.Secret)
	if err != nil {
		return "", err
	}
	return utils.UserKeyFromClaims(claims)
}

// DisconnectHook runs for every closed connection. active reports whether it was the
// user's most recent connection at the time it closed.
type DisconnectHook func(id models.Identity, active bool)

// Registry tracks live connections and the identity each one resolved to.
type Registry struct {
	resolver IdentityResolver
	hub      *session.Hub
	log      *zap.Logger

	mu     sync.RWMutex
	byConn map[string]models.Identity
	byUser map[string]string
	hooks  []DisconnectHook
}

func New(resolver IdentityResolver, hub *session.Hub, logger *zap.Logger) *Registry {
	return &Registry{
		resolver: resolver,
		hub:      hub,
		log:      logger,
		byConn:   make(map[string]models.Identity),
		byUser:   make(map[string]string),
	}
}

// OnDisconnect appends a hook; hooks run in registration order.
func (r *Registry) OnDisconnect(hook DisconnectHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// Authenticate resolves a credential without registering anything.
func (r *Registry) Authenticate(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", ErrAuthentication
	}
	userKey, err := r.resolver.Resolve(ctx, credential)
	if err != nil || userKey == "" {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return userKey, nil
}

// Connect authenticates the credential and registers the sender under a new connection id.
func (r *Registry) Connect(ctx context.Context, credential string, sender session.Sender) (models.Identity, error) {
	userKey, err := r.Authenticate(ctx, credential)
	if err != nil {
		return models.Identity{}, err
	}
	return r.Register(userKey, sender), nil
}

// Register binds an already authenticated user to a fresh connection. A newer connection
// for the same user becomes the one targeted by ConnectionFor.
func (r *Registry) Register(userKey string, sender session.Sender) models.Identity {
	id := models.Identity{ConnectionID: uuid.New().String(), UserKey: userKey}

	r.mu.Lock()
	r.byConn[id.ConnectionID] = id
	r.byUser[userKey] = id.ConnectionID
	r.mu.Unlock()

	r.hub.Register(id.ConnectionID, sender)
	metrics.ConnectedClients.Inc()
	r.log.Info("client connected", zap.String("user", userKey), zap.String("conn", id.ConnectionID))
	return id
}

// Disconnect forgets the connection and runs the hooks once per known connection.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	id, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byConn, connID)
	active := r.byUser[id.UserKey] == connID
	if active {
		delete(r.byUser, id.UserKey)
	}
	hooks := append([]DisconnectHook(nil), r.hooks...)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook(id, active)
	}
	r.hub.Unregister(connID)
	metrics.ConnectedClients.Dec()
	r.log.Info("client disconnected", zap.String("user", id.UserKey), zap.String("conn", connID))
}

func (r *Registry) Resolve(connID string) (models.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[connID]
	return id, ok
}

func (r *Registry) ConnectionFor(userKey string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userKey]
	return connID, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
