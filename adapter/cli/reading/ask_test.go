package reading

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/augur/adapter/cli"
	"github.com/felixgeelhaar/augur/internal/app/apptest"
	"github.com/felixgeelhaar/augur/internal/reading/domain"
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
	session = ""
	contextData = nil
	birthDate, fullName, partnerName, zodiacSign = "", "", "", ""
	messageCount = 0
	premium = false
	asJSON = false
}

func runAsk(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	askCmd.SetOut(&out)
	askCmd.SetContext(context.Background())
	err := askCmd.RunE(askCmd, args)
	return out.String(), err
}

func TestAskCmd_SessionReading(t *testing.T) {
	setupTestApp(t)
	resetFlags()
	defer resetFlags()

	session = "cli-1"
	contextData = map[string]string{"mood": "calm"}

	out, err := runAsk(t, "dreams", "I dreamt of a silver river")
	require.NoError(t, err)
	assert.Contains(t, out, "The river carries")
	assert.Contains(t, out, "free remaining: 2")
	assert.Contains(t, out, "complete: true")
}

func TestAskCmd_TeaserAfterQuota(t *testing.T) {
	setupTestApp(t)
	resetFlags()
	defer resetFlags()

	session = "cli-2"
	contextData = map[string]string{"mood": "calm"}
	for i := 0; i < 3; i++ {
		_, err := runAsk(t, "dreams", "Another dream")
		require.NoError(t, err)
	}

	out, err := runAsk(t, "dreams", "One more dream")
	require.NoError(t, err)
	assert.Contains(t, out, "complete: false")
	assert.Contains(t, out, "paywall:")

	_, err = runAsk(t, "dreams", "And another")
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(domain.CodeQuotaExceeded))
}

func TestAskCmd_JSON(t *testing.T) {
	setupTestApp(t)
	resetFlags()
	defer resetFlags()

	asJSON = true
	contextData = map[string]string{"mood": "calm"}

	out, err := runAsk(t, "dreams", "Stateless dream")
	require.NoError(t, err)

	var resp domain.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.IsCompleteResponse)
	assert.True(t, *resp.IsCompleteResponse)
}

func TestAskCmd_ValidationErrorAsJSON(t *testing.T) {
	setupTestApp(t)
	resetFlags()
	defer resetFlags()

	asJSON = true

	out, err := runAsk(t, "dreams", "No context")
	require.Error(t, err)

	var resp domain.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, domain.Code("MISSING_DREAM_DATA"), resp.Code)
}

func TestAskCmd_NotInitialized(t *testing.T) {
	cli.SetApp(nil)
	resetFlags()

	_, err := runAsk(t, "dreams", "hello")
	assert.ErrorContains(t, err, "not initialized")
}

func TestModulesCmd(t *testing.T) {
	setupTestApp(t)

	var out bytes.Buffer
	modulesCmd.SetOut(&out)
	modulesCmd.SetContext(context.Background())
	require.NoError(t, modulesCmd.RunE(modulesCmd, nil))

	for _, name := range []string{"dreams", "numerology", "horoscope", "zodiac", "vocational", "love"} {
		assert.Contains(t, out.String(), name)
	}
	assert.Contains(t, out.String(), "teaser_then_block")
}
