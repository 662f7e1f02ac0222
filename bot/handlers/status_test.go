package handlers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/telefoot/telefoot-bot/bot/license"
	coreconfig "github.com/telefoot/telefoot-bot/core/config"
)

const testAdminID int64 = 999

// fakeContext stubs the few tele.Context methods the status handler touches.
// Everything else panics through the nil embedded interface.
type fakeContext struct {
	tele.Context
	sender *tele.User
	args   []string
	vals   map[string]interface{}
	sent   []string
}

func newFakeContext(senderID int64, args ...string) *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: senderID},
		args:   args,
		vals:   make(map[string]interface{}),
	}
}

func (c *fakeContext) Sender() *tele.User  { return c.sender }
func (c *fakeContext) Chat() *tele.Chat    { return nil }
func (c *fakeContext) Update() tele.Update { return tele.Update{} }
func (c *fakeContext) Args() []string      { return c.args }

func (c *fakeContext) Get(key string) interface{}    { return c.vals[key] }
func (c *fakeContext) Set(key string, v interface{}) { c.vals[key] = v }

func (c *fakeContext) Send(what interface{}, _ ...interface{}) error {
	if s, ok := what.(string); ok {
		c.sent = append(c.sent, s)
	}
	return nil
}

func newStatusDeps(t *testing.T) *Deps {
	t.Helper()
	st, err := license.OpenStore(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	return &Deps{
		Cfg:      &coreconfig.Config{Telegram: coreconfig.TelegramConfig{AdminID: testAdminID}},
		Licenses: license.NewManager(st, nil),
	}
}

func TestStatusAdminInspectsTargetUser(t *testing.T) {
	d := newStatusDeps(t)
	key, _, err := d.Licenses.Activate(context.Background(), 100, "mois")
	require.NoError(t, err)

	c := newFakeContext(testAdminID, "100")
	require.NoError(t, d.handleStatus(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "Utilisateur 100")
	assert.Contains(t, c.sent[0], string(license.StatusActive))
	assert.Contains(t, c.sent[0], key)
}

func TestStatusAdminUnknownTarget(t *testing.T) {
	d := newStatusDeps(t)

	c := newFakeContext(testAdminID, "424242")
	require.NoError(t, d.handleStatus(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "inconnu")
}

func TestStatusNonAdminArgIsIgnored(t *testing.T) {
	d := newStatusDeps(t)
	_, _, err := d.Licenses.Activate(context.Background(), 100, "mois")
	require.NoError(t, err)

	// A regular user passing someone else's id still gets their own status.
	c := newFakeContext(555, "100")
	require.NoError(t, d.handleStatus(c))
	require.Len(t, c.sent, 1)
	assert.NotContains(t, c.sent[0], "Utilisateur 100")
	assert.Contains(t, c.sent[0], "Aucun abonnement actif")
}
