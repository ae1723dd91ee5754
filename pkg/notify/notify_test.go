package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dmvScheduler/pkg/scraper"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMailClient struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (m *mockMailClient) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, email)
	return &rest.Response{StatusCode: m.status, Body: "body"}, nil
}

type recordingNotifier struct {
	events []Event
	err    error
}

func (r *recordingNotifier) Notify(ctx context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func testEvent(kind Kind) Event {
	prev := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	return Event{
		Kind: kind,
		Appointment: scraper.Appointment{
			Office:   "Austin North",
			Address:  "6121 N Lamar",
			Distance: 5.2,
			Date:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			RawDate:  "03/10/2024",
		},
		Previous: &prev,
	}
}

func TestEventText(t *testing.T) {
	event := testEvent(Booked)
	assert.Equal(t, "Booked a sooner DPS appointment", event.Title())
	assert.Equal(t, "Austin North\n6121 N Lamar\n5.2 miles\n03/10/2024\n(previously 06/02/2024)", event.Body())

	event = testEvent(Found)
	event.Previous = nil
	assert.Equal(t, "Found a sooner DPS appointment", event.Title())
	assert.False(t, strings.Contains(event.Body(), "previously"))
}

func TestMulti(t *testing.T) {
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("down")}

	err := Multi{failing, ok}.Notify(context.Background(), testEvent(Found))
	require.ErrorContains(t, err, "down")
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1)

	require.NoError(t, Multi{}.Notify(context.Background(), testEvent(Found)))
}

func TestSendGridSender(t *testing.T) {
	client := &mockMailClient{status: 202}
	sender := NewSendGridSenderWithClient(client, "bot@example.com", "jane@example.com")

	require.NoError(t, sender.Notify(context.Background(), testEvent(Booked)))
	require.Len(t, client.sent, 1)
	msg := client.sent[0]
	assert.Equal(t, "Booked a sooner DPS appointment", msg.Subject)
	assert.Equal(t, "bot@example.com", msg.From.Address)
	require.Len(t, msg.Personalizations, 1)
	assert.Equal(t, "jane@example.com", msg.Personalizations[0].To[0].Address)
}

func TestSendGridSenderErrors(t *testing.T) {
	sender := NewSendGridSenderWithClient(&mockMailClient{status: 401}, "a@example.com", "b@example.com")
	require.ErrorContains(t, sender.Notify(context.Background(), testEvent(Found)), "status 401")

	sender = NewSendGridSenderWithClient(&mockMailClient{err: errors.New("offline")}, "a@example.com", "b@example.com")
	require.ErrorContains(t, sender.Notify(context.Background(), testEvent(Found)), "offline")
}

func TestNewSendGridSenderUnconfigured(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{To: "jane@example.com"}))
	assert.Nil(t, NewSendGridSender(SendGridConfig{APIKey: "key"}))
	assert.NotNil(t, NewSendGridSender(SendGridConfig{APIKey: "key", To: "jane@example.com"}))
}
