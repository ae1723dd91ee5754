package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"dmvScheduler/pkg/config"
	"dmvScheduler/pkg/line"
	"dmvScheduler/pkg/notify"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		settings: {browser: "firefox", loop: true},
		"first-name": "Jane", "last-name": "Doe", "birth-date": "8/5/1998",
		"last-4-ssn": "1234", cell: "512-555-0100", email: "jane@example.com", zipcode: "78701",
	}`), 0o600))

	cmd := &cobra.Command{}
	cmd.Flags().BoolVar(&flags.loop, "loop", false, "")
	cmd.Flags().BoolVar(&flags.commit, "commit", false, "")
	cmd.Flags().BoolVar(&flags.gui, "gui", false, "")
	cmd.Flags().StringVar(&flags.browser, "browser", "", "")
	cmd.Flags().StringVar(&flags.current, "current", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--loop=false", "--commit", "--browser", "Chrome", "--current", "6/2/2023"}))

	cfg, err := loadConfig(cmd, path)
	require.NoError(t, err)
	assert.False(t, cfg.Settings.Loop)
	assert.True(t, cfg.Settings.Commit)
	assert.False(t, cfg.Settings.GUI)
	assert.Equal(t, config.Chrome, cfg.Settings.Browser)
	require.NotNil(t, cfg.CurrentBest())

	require.NoError(t, cmd.Flags().Set("current", "whenever"))
	_, err = loadConfig(cmd, path)
	require.Error(t, err)
}

func TestBuildNotifier(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, notify.Nop{}, buildNotifier(cfg))

	cfg.Notify.LineChannelToken = "token"
	cfg.Notify.LineUserID = "user"
	cfg.Notify.SendGridAPIKey = "key"
	cfg.Notify.EmailTo = "jane@example.com"
	n, ok := buildNotifier(cfg).(notify.Multi)
	require.True(t, ok)
	assert.Len(t, n, 2)
}

func TestIsValidLogPath(t *testing.T) {
	assert.True(t, isValidLogPath(filepath.Join(logsDir, "2024-03-10.log")))
	assert.False(t, isValidLogPath(filepath.Join(logsDir, "..", "escape.log")))
	assert.False(t, isValidLogPath("logs-other/x.log"))
}

func TestNotifyTestRequiresLineCredentials(t *testing.T) {
	err := notifyTest(context.Background(), config.Default())
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "notify.line-channel-token", cfgErr.Key)
}

func TestSendTestMessage(t *testing.T) {
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload line.Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		for _, m := range payload.Messages {
			texts = append(texts, m.Text)
		}
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.FirstName, cfg.LastName, cfg.ZipCode = "Jane", "Doe", "78701"
	cfg.CurrentAppointment = "6/2/2023"

	client := line.NewClientWithBaseURL(srv.URL, "token", "user-1")
	require.NoError(t, sendTestMessage(context.Background(), client, cfg))
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Jane Doe")
	assert.Contains(t, texts[0], "78701")
	assert.Contains(t, texts[0], "06/02/2023")
}
