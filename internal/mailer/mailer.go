// Package mailer wraps the external email-delivery service.  Rendering
// and actual delivery happen on the provider's side; this package only
// ships {to, subject, body} over HTTP.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Message is one outbound email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers a message.  Implementations must be safe for
// concurrent use; they are called from background consumers.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPSender posts messages as JSON to the delivery service endpoint.
type HTTPSender struct {
	endpoint string
	from     string
	client   *http.Client
}

// NewHTTPSender builds an HTTPSender.  The client timeout bounds every
// delivery attempt so a slow provider cannot stall a consumer.
func NewHTTPSender(endpoint, from string) *HTTPSender {
	return &HTTPSender{
		endpoint: endpoint,
		from:     from,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the message to the delivery service and treats any
// non-2xx status as a failure.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	payload := struct {
		From string `json:"from"`
		Message
	}{From: s.from, Message: msg}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mail service returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes messages to the application log instead of sending
// them.  Used in dev environments without a configured mail service.
type LogSender struct {
	Log *logrus.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.Log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("mail delivery skipped (no MAIL_SERVICE_URL configured)")
	return nil
}
