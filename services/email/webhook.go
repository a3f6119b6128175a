package emailsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
)

// SecretHeader authenticates the app to the automation workflow.
const SecretHeader = "X-Webhook-Secret"

type webhookPayload struct {
	To          string `json:"to"`
	Subject     string `json:"subject"`
	HTML        string `json:"html"`
	Text        string `json:"text"`
	NotifyChat  bool   `json:"notifyChat"`
	ChatMessage string `json:"chatMessage,omitempty"`
}

// WebhookService posts every message to a workflow-automation webhook, which does the delivery.
type WebhookService struct {
	url        string
	secret     string
	subjPrefix string
	client     *retryablehttp.Client
	renderer   *core.EmailRenderer
	logger     core.Logger
	wg         sync.WaitGroup
}

var _ core.EmailService = (*WebhookService)(nil)

// NewWebhookService panics if the webhook is not configured.
func NewWebhookService(conf *core.Config, renderer *core.EmailRenderer, logger core.Logger) *WebhookService {
	ec := conf.Email
	vala.BeginValidation().Validate(
		vala.StringNotEmpty(ec.WebhookURL, "email.webhookURL"),
		vala.StringNotEmpty(ec.WebhookSecret, "email.webhookSecret"),
		vala.GreaterThan(ec.WebhookMaxAttempts, 0, "email.webhookMaxAttempts"),
		vala.IsNotNil(renderer, "renderer"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{Timeout: ec.WebhookTimeout}
	client.Logger = nil
	client.RetryMax = ec.WebhookMaxAttempts - 1
	client.RetryWaitMin = ec.WebhookBackoff
	client.RetryWaitMax = ec.WebhookBackoff << uint(ec.WebhookMaxAttempts)
	client.CheckRetry = checkRetry
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &WebhookService{
		url:        ec.WebhookURL,
		secret:     ec.WebhookSecret,
		subjPrefix: "[" + conf.AppName + "] ",
		client:     client,
		renderer:   renderer,
		logger:     logger,
	}
}

// checkRetry retries transport errors, 5xx and 429; any other response is final.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError, nil
}

func (svc *WebhookService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		svc.wg.Add(1)
		go func() {
			defer svc.wg.Done()
			if err := svc.Deliver(context.Background(), msg); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email %q to %s: %v", msg.TemplateName, strings.Join(msg.Recipients(), ", "), err), err)
			}
		}()
	}
}

// Wait blocks until every message handed to SendMessages is delivered or given up on.
func (svc *WebhookService) Wait() { svc.wg.Wait() }

// Deliver renders msg and posts it, retrying with exponential backoff.
func (svc *WebhookService) Deliver(ctx context.Context, msg *core.EmailMessage) error {
	if err := svc.renderer.Render(msg); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return nil
	}

	body, err := json.Marshal(webhookPayload{
		To:          strings.Join(msg.Recipients(), ", "),
		Subject:     svc.subjPrefix + msg.Subject,
		HTML:        msg.HTMLContent,
		Text:        msg.TextContent,
		NotifyChat:  msg.ChatNotify,
		ChatMessage: msg.ChatMessage,
	})
	if err != nil {
		return errors.Wrap(err, "encoding payload")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, svc.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, svc.secret)

	started := time.Now()
	resp, err := svc.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "posting to webhook (after %v)", time.Since(started).Round(time.Millisecond))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("webhook answered %s: %s", resp.Status, snippet)
	}
	return nil
}
