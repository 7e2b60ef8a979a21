package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pong/internal/models"
	"pong/internal/session"
	"pong/internal/utils"
)

type nopSender struct{}

func (nopSender) Send(models.Event) {}

type staticResolver map[string]string

func (s staticResolver) Resolve(_ context.Context, credential string) (string, error) {
	if key, ok := s[credential]; ok {
		return key, nil
	}
	return "", errors.New("unknown credential")
}

func newTestRegistry() (*Registry, *session.Hub) {
	hub := session.NewHub(nil)
	return New(staticResolver{"tok-a": "alice", "tok-b": "bob"}, hub, zap.NewNop()), hub
}

func TestConnectResolvesIdentity(t *testing.T) {
	reg, hub := newTestRegistry()

	id, err := reg.Connect(context.Background(), "tok-a", nopSender{})
	require.NoError(t, err)
	assert.Equal(t, "alice", id.UserKey)
	assert.NotEmpty(t, id.ConnectionID)

	got, ok := reg.Resolve(id.ConnectionID)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	connID, ok := reg.ConnectionFor("alice")
	assert.True(t, ok)
	assert.Equal(t, id.ConnectionID, connID)
	assert.Equal(t, 1, reg.Count())
	assert.True(t, hub.Narrowcast(id.ConnectionID, models.Event{Type: "ping"}))
}

func TestConnectRejectsBadCredential(t *testing.T) {
	reg, _ := newTestRegistry()

	_, err := reg.Connect(context.Background(), "forged", nopSender{})
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = reg.Connect(context.Background(), "", nopSender{})
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, 0, reg.Count())
}

func TestDisconnectRunsHooksForActiveConnection(t *testing.T) {
	reg, hub := newTestRegistry()
	var seen []models.Identity
	reg.OnDisconnect(func(id models.Identity, active bool) {
		assert.True(t, active)
		seen = append(seen, id)
	})

	id, err := reg.Connect(context.Background(), "tok-b", nopSender{})
	require.NoError(t, err)

	reg.Disconnect(id.ConnectionID)
	reg.Disconnect(id.ConnectionID)

	assert.Equal(t, []models.Identity{id}, seen)
	_, ok := reg.Resolve(id.ConnectionID)
	assert.False(t, ok)
	_, ok = reg.ConnectionFor("bob")
	assert.False(t, ok)
	assert.False(t, hub.Narrowcast(id.ConnectionID, models.Event{Type: "ping"}))
}

func TestSupersededConnectionIsReportedInactive(t *testing.T) {
	reg, _ := newTestRegistry()
	activity := map[string]bool{}
	reg.OnDisconnect(func(id models.Identity, active bool) { activity[id.ConnectionID] = active })

	old := reg.Register("alice", nopSender{})
	fresh := reg.Register("alice", nopSender{})

	reg.Disconnect(old.ConnectionID)
	assert.Equal(t, map[string]bool{old.ConnectionID: false}, activity)
	connID, ok := reg.ConnectionFor("alice")
	assert.True(t, ok)
	assert.Equal(t, fresh.ConnectionID, connID)

	reg.Disconnect(fresh.ConnectionID)
	assert.True(t, activity[fresh.ConnectionID])
	assert.Len(t, activity, 2)
}

func TestJWTResolver(t *testing.T) {
	secret := []byte("s3cret")
	tok, err := utils.GenerateToken("carol", secret, time.Minute)
	require.NoError(t, err)

	key, err := JWTResolver{Secret: secret}.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "carol", key)

	_, err = JWTResolver{Secret: []byte("other")}.Resolve(context.Background(), tok)
	assert.Error(t, err)
}
