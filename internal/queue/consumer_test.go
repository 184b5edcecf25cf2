package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/cinebook/internal/mailer"
)

type fakeExpirer struct {
	ids []string
	err error
}

func (f *fakeExpirer) ExpireIfUnpaid(ctx context.Context, bookingID string) error {
	f.ids = append(f.ids, bookingID)
	return f.err
}

type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg mailer.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func TestReleaseHandleRunsExpiry(t *testing.T) {
	exp := &fakeExpirer{}
	c := &ReleaseConsumer{Expirer: exp}

	require.NoError(t, c.handle([]byte(`{"booking_id":"bk-1","scheduled_at":"2026-08-29T10:00:00Z"}`)))
	assert.Equal(t, []string{"bk-1"}, exp.ids)
}

func TestReleaseHandleRejectsMalformedTask(t *testing.T) {
	exp := &fakeExpirer{}
	c := &ReleaseConsumer{Expirer: exp}

	assert.Error(t, c.handle([]byte(`not json`)))
	assert.Error(t, c.handle([]byte(`{}`)), "missing booking id must not be acked")
	assert.Empty(t, exp.ids)
}

func TestReleaseHandlePropagatesExpiryError(t *testing.T) {
	exp := &fakeExpirer{err: errors.New("db down")}
	c := &ReleaseConsumer{Expirer: exp}

	// The error must surface so the message is requeued and retried.
	err := c.handle([]byte(`{"booking_id":"bk-2"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bk-2")
}

func TestNotifyHandleSendsMail(t *testing.T) {
	sender := &fakeSender{}
	c := &NotifyConsumer{Sender: sender, To: "ops@example.com"}

	body := `{"movie_id":"mv-1","movie_title":"Arrival","show_ids":[4,5],"first_start_at":"2026-09-01T18:00:00Z"}`

	require.NoError(t, c.handle([]byte(body)))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ops@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Subject, "Arrival")
	assert.Contains(t, sender.sent[0].Body, "2 new show(s)")
}

func TestNotifyHandleSkipsWhenUnconfigured(t *testing.T) {
	sender := &fakeSender{}
	c := &NotifyConsumer{Sender: sender, To: ""}

	require.NoError(t, c.handle([]byte(`{"movie_title":"Arrival"}`)))
	assert.Empty(t, sender.sent)
}
