package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) (configPath, subscribersPath string) {
	t.Helper()
	dir := t.TempDir()
	subscribersPath = filepath.Join(dir, "subscribers.json")
	configPath = filepath.Join(dir, "config.yaml")
	content := "log:\n  level: error\nstore:\n  driver: file\n  file:\n    path: " + subscribersPath + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath, subscribersPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// go test -v --run TestSubscribeCommands
func TestSubscribeCommands(t *testing.T) {
	configPath, subscribersPath := writeConfig(t)

	out, err := run(t, "--config", configPath, "subscribers")
	require.NoError(t, err)
	assert.Contains(t, out, "No subscribers yet.")

	out, err = run(t, "--config", configPath, "subscribe", "a@x.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully subscribed")

	out, err = run(t, "--config", configPath, "subscribe", "a@x.com")
	require.NoError(t, err)
	assert.Contains(t, out, "You are already subscribed!")

	_, err = run(t, "--config", configPath, "subscribe", "not-an-email")
	assert.Error(t, err)

	out, err = run(t, "--config", configPath, "subscribers")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com\n", out)

	data, err := os.ReadFile(subscribersPath)
	require.NoError(t, err)
	assert.JSONEq(t, `["a@x.com"]`, string(data))

	out, err = run(t, "--config", configPath, "unsubscribe", "a@x.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Unsubscribed a@x.com.")

	out, err = run(t, "--config", configPath, "unsubscribe", "a@x.com")
	require.NoError(t, err)
	assert.Contains(t, out, "is not subscribed")
}

func TestSendRequiresAPIKey(t *testing.T) {
	configPath, _ := writeConfig(t)
	t.Setenv("RESEND_API_KEY", "")

	_, err := run(t, "--config", configPath, "send")
	assert.ErrorContains(t, err, "RESEND_API_KEY")
}

func TestClockInReportsScheduleZone(t *testing.T) {
	tokyo := time.FixedZone("Asia/Tokyo", 9*60*60)
	now := clockIn(tokyo)()
	assert.Equal(t, tokyo, now.Location())
}
