package line

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dmvScheduler/pkg/notify"
	"dmvScheduler/pkg/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pushRequest struct {
	auth    string
	path    string
	payload map[string]interface{}
}

func pushServer(t *testing.T, status int) (*httptest.Server, *[]pushRequest) {
	t.Helper()
	var requests []pushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		requests = append(requests, pushRequest{
			auth:    r.Header.Get("Authorization"),
			path:    r.URL.Path,
			payload: payload,
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestNotify(t *testing.T) {
	srv, requests := pushServer(t, http.StatusOK)
	client := NewClientWithBaseURL(srv.URL, "token", "user-1")

	event := notify.Event{
		Kind: notify.Booked,
		Appointment: scraper.Appointment{
			Office:   "Austin North",
			Address:  "6121 N Lamar",
			Distance: 5.2,
			Date:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, client.Notify(context.Background(), event))

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, "Bearer token", req.auth)
	assert.Equal(t, "/v2/bot/message/push", req.path)
	assert.Equal(t, "user-1", req.payload["to"])

	messages := req.payload["messages"].([]interface{})
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]interface{})
	assert.Equal(t, "flex", msg["type"])
	assert.Equal(t, "Booked a sooner DPS appointment", msg["altText"])
}

func TestSendTextErrorStatus(t *testing.T) {
	srv, _ := pushServer(t, http.StatusUnauthorized)
	client := NewClientWithBaseURL(srv.URL, "bad", "user-1")

	err := client.SendText(context.Background(), "hello")
	require.ErrorContains(t, err, "401")
}

func TestIncompleteConfiguration(t *testing.T) {
	client := NewClientWithBaseURL("http://127.0.0.1:0", "token", "")
	require.Error(t, client.SendText(context.Background(), "hello"))
}
