package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/augur/adapter/cli"
	"github.com/felixgeelhaar/augur/internal/app/apptest"
	"github.com/felixgeelhaar/augur/internal/entitlement/domain"
	readingapp "github.com/felixgeelhaar/augur/internal/reading/application"
	reading "github.com/felixgeelhaar/augur/internal/reading/domain"
	shared "github.com/felixgeelhaar/augur/internal/shared/domain"
)

func setupTestApp(t *testing.T) *cli.App {
	t.Helper()

	container := apptest.NewContainer(t, apptest.Config("teaser_then_block"), apptest.NewProvider())
	app := cli.NewApp(container.Readings, container.Entitlements, container.Prizes)
	cli.SetApp(app)
	t.Cleanup(func() { cli.SetApp(nil) })
	return app
}

func resetFlags() {
	showJSON = false
	grantPremium = false
	grantBonus = 0
	grantSpins = 0
}

func run(t *testing.T, cmd func() error, out *bytes.Buffer) error {
	t.Helper()
	showCmd.SetOut(out)
	grantCmd.SetOut(out)
	showCmd.SetContext(context.Background())
	grantCmd.SetContext(context.Background())
	return cmd()
}

func ask(t *testing.T, app *cli.App, session string) reading.Answer {
	t.Helper()
	answer, err := app.Readings.Ask(context.Background(), readingapp.Input{
		Module:    reading.ModuleLove,
		SessionID: session,
		Request: reading.Request{
			UserMessage:       "Will it last?",
			ModuleContextData: map[string]any{"since": "2023"},
		},
	})
	require.NoError(t, err)
	return answer
}

func TestShowCmd(t *testing.T) {
	app := setupTestApp(t)
	resetFlags()
	defer resetFlags()

	ask(t, app, "l1")

	var out bytes.Buffer
	err := run(t, func() error { return showCmd.RunE(showCmd, []string{"love", "l1"}) }, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "love:l1")
	assert.Contains(t, out.String(), "1 of 3 free")
	assert.Contains(t, out.String(), "Free remaining:   2")
}

func TestShowCmd_JSON(t *testing.T) {
	setupTestApp(t)
	resetFlags()
	defer resetFlags()

	showJSON = true
	var out bytes.Buffer
	err := run(t, func() error { return showCmd.RunE(showCmd, []string{"LOVE", "fresh"}) }, &out)
	require.NoError(t, err)

	var state domain.State
	require.NoError(t, json.Unmarshal(out.Bytes(), &state))
	assert.Equal(t, domain.State{}, state)
}

func TestShowCmd_UnknownModule(t *testing.T) {
	setupTestApp(t)
	resetFlags()

	var out bytes.Buffer
	err := run(t, func() error { return showCmd.RunE(showCmd, []string{"tarot", "s"}) }, &out)
	assert.ErrorIs(t, err, reading.ErrUnknownModule)
}

func TestGrantCmd_PremiumClearsBlock(t *testing.T) {
	app := setupTestApp(t)
	resetFlags()
	defer resetFlags()

	for i := 0; i < 4; i++ {
		ask(t, app, "l2")
	}
	state, err := app.Entitlements.Snapshot(context.Background(), mustScope(t, app, "l2"))
	require.NoError(t, err)
	require.True(t, state.Blocked())

	grantPremium = true
	var out bytes.Buffer
	err = run(t, func() error { return grantCmd.RunE(grantCmd, []string{"love", "l2"}) }, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "premium granted")

	state, err = app.Entitlements.Snapshot(context.Background(), mustScope(t, app, "l2"))
	require.NoError(t, err)
	assert.True(t, state.IsPremium)
	assert.False(t, state.Blocked())

	answer := ask(t, app, "l2")
	assert.True(t, answer.Complete)

	out.Reset()
	err = run(t, func() error { return grantCmd.RunE(grantCmd, []string{"love", "l2"}) }, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "already premium")
}

func TestGrantCmd_BonusAndSpins(t *testing.T) {
	app := setupTestApp(t)
	resetFlags()
	defer resetFlags()

	grantBonus = 2
	grantSpins = 1
	var out bytes.Buffer
	err := run(t, func() error { return grantCmd.RunE(grantCmd, []string{"love", "l3"}) }, &out)
	require.NoError(t, err)

	state, err := app.Entitlements.Snapshot(context.Background(), mustScope(t, app, "l3"))
	require.NoError(t, err)
	assert.Equal(t, 2, state.BonusConsultations)
	assert.Equal(t, 1, state.SpinBalance)
}

func TestGrantCmd_Validation(t *testing.T) {
	setupTestApp(t)
	resetFlags()
	defer resetFlags()

	var out bytes.Buffer
	err := run(t, func() error { return grantCmd.RunE(grantCmd, []string{"love", "l4"}) }, &out)
	assert.ErrorContains(t, err, "nothing to grant")

	grantBonus = -1
	err = run(t, func() error { return grantCmd.RunE(grantCmd, []string{"love", "l4"}) }, &out)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func mustScope(t *testing.T, app *cli.App, session string) shared.Scope {
	t.Helper()
	scope, err := app.Scope(reading.ModuleLove, session)
	require.NoError(t, err)
	return scope
}
