package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NotificationTemplate names the kind of message a recipient receives.
type NotificationTemplate string

const (
	TemplateApprovalRequest   NotificationTemplate = "approval_request"
	TemplateNewAssignment     NotificationTemplate = "new_assignment"
	TemplateAcceptanceRequest NotificationTemplate = "acceptance_request"
	TemplateEvaluationRequest NotificationTemplate = "evaluation_request"
	TemplateTaskApproved      NotificationTemplate = "task_approved"
)

// Notification is one outbound message.
type Notification struct {
	RecipientID uint64                 `json:"recipient_id"`
	Recipient   string                 `json:"recipient"`
	Email       string                 `json:"email,omitempty"`
	Template    NotificationTemplate   `json:"template"`
	Context     map[string]interface{} `json:"context"`
}

// Notifier delivers a notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log. It is the default
// when no webhook is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	n.log.Info("notification",
		zap.String("template", string(msg.Template)),
		zap.Uint64("recipient_id", msg.RecipientID),
		zap.Any("context", msg.Context),
	)
	return nil
}

// WebhookNotifier posts notifications as JSON to a single endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, msg Notification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-KPI-Template", string(msg.Template))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

// Dispatcher sends notifications in the background. A failed delivery is
// logged and counted but never reported to the caller.
type Dispatcher struct {
	notifier Notifier
	log      *zap.Logger
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(notifier Notifier, log *zap.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{notifier: notifier, log: log, timeout: timeout}
}

// Send returns immediately. Notifications sent after Close are dropped.
func (d *Dispatcher) Send(n Notification) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn("notification dropped after shutdown",
			zap.String("template", string(n.Template)),
			zap.Uint64("recipient_id", n.RecipientID),
		)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := d.notifier.Notify(ctx, n)
		recordNotification(n.Template, err)
		if err != nil {
			d.log.Warn("notification delivery failed",
				zap.String("template", string(n.Template)),
				zap.Uint64("recipient_id", n.RecipientID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every in-flight notification finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting notifications and waits for the in-flight ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
