// Package dispatcher delivers hub events to registered webhook subscribers.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zipwire/zipwire/pkg/eventbus"
	"github.com/zipwire/zipwire/pkg/events"
	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/otelhelper"
	"github.com/zipwire/zipwire/pkg/persistence"
)

// Delivery headers identifying the event to the receiving endpoint.
const (
	HeaderEvent     = "X-Zipwire-Event"
	HeaderWebhookID = "X-Zipwire-Webhook-ID"
	HeaderNamespace = "X-Zipwire-Namespace"
)

// DefaultTimeout bounds each delivery attempt so a hanging endpoint cannot
// accumulate in-flight dispatches.
const DefaultTimeout = 15 * time.Second

// Dispatcher posts serialized events to matching webhook subscriptions.
// Delivery is best-effort: failures are logged per subscriber, never
// retried, and never propagated to the relay.
type Dispatcher struct {
	logger        *slog.Logger
	workflows     persistence.WorkflowRepository
	subscriptions persistence.SubscriptionRepository
	client        *http.Client
	timeout       time.Duration
	tracer        trace.Tracer

	wg sync.WaitGroup
}

// NewDispatcher creates a webhook dispatcher with the default per-delivery
// timeout.
func NewDispatcher(logger *slog.Logger, workflows persistence.WorkflowRepository, subscriptions persistence.SubscriptionRepository) *Dispatcher {
	return &Dispatcher{
		logger:        logger.With("module", "dispatcher"),
		workflows:     workflows,
		subscriptions: subscriptions,
		client:        &http.Client{Timeout: DefaultTimeout},
		timeout:       DefaultTimeout,
		tracer:        otel.Tracer("zipwire/dispatcher"),
	}
}

// Register subscribes the dispatcher to every event type so wildcard
// subscriptions see the full stream.
func (d *Dispatcher) Register(bus eventbus.EventSubscriber) error {
	allTypes := []events.EventType{
		events.NodeExecutingEvent,
		events.NodeCompletedEvent,
		events.NodeFailedEvent,
		events.NodeWarningEvent,
		events.ExecutionStartedEvent,
		events.ExecutionCompletedEvent,
		events.ExecutionFailedEvent,
		events.ConnectionStateEvent,
		events.WorkflowUpdatedEvent,
		events.VisualStateUpdateEvent,
	}

	for _, eventType := range allTypes {
		err := bus.Handle(eventType, d.handleEvent)
		if err != nil {
			return err
		}
	}

	return nil
}

func (d *Dispatcher) handleEvent(ctx context.Context, event interface{}) error {
	evt, ok := event.(events.Event)
	if !ok {
		return nil
	}

	d.Dispatch(ctx, evt)

	return nil
}

// Dispatch queries active subscriptions for the event's namespace and type
// and posts the event to each match concurrently. Fire and forget from the
// caller's perspective.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.Event) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.dispatch",
		attribute.String(otelhelper.EventTypeKey, string(event.GetType())),
		attribute.String(otelhelper.WorkflowIDKey, event.GetWorkflowID()),
	)
	defer span.End()

	namespace := d.resolveNamespace(ctx, event.GetWorkflowID())
	span.SetAttributes(attribute.String(otelhelper.NamespaceKey, namespace))

	subscriptions, err := d.subscriptions.ActiveSubscriptions(ctx, namespace, string(event.GetType()))
	if err != nil {
		otelhelper.SetError(span, err)
		d.logger.ErrorContext(ctx, "Failed to query webhook subscriptions",
			"namespace", namespace, "event_type", event.GetType(), "error", err)

		return
	}

	if len(subscriptions) == 0 {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		otelhelper.SetError(span, err)
		d.logger.ErrorContext(ctx, "Failed to serialize event for dispatch",
			"event_type", event.GetType(), "error", err)

		return
	}

	span.SetAttributes(attribute.Int("subscriptions.matched", len(subscriptions)))

	for _, subscription := range subscriptions {
		d.wg.Add(1)

		go func(sub *models.WebhookSubscription) {
			defer d.wg.Done()
			d.deliver(ctx, sub, namespace, event.GetType(), body)
		}(subscription)
	}
}

// Wait blocks until in-flight deliveries finish. Used during shutdown and in
// tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) resolveNamespace(ctx context.Context, workflowID string) string {
	workflow, err := d.workflows.WorkflowByID(ctx, workflowID)
	if err != nil {
		if !persistence.IsWorkflowNotFound(err) {
			d.logger.WarnContext(ctx, "Failed to resolve workflow namespace",
				"workflow_id", workflowID, "error", err)
		}

		return models.DefaultNamespace
	}

	if workflow.Namespace == "" {
		return models.DefaultNamespace
	}

	return workflow.Namespace
}

// deliver posts one event to one subscriber. Each delivery runs on its own
// goroutine under its own timeout; one slow endpoint never delays the rest.
func (d *Dispatcher) deliver(ctx context.Context, subscription *models.WebhookSubscription, namespace string, eventType events.EventType, body []byte) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.deliver",
		attribute.String(otelhelper.WebhookIDKey, subscription.ID),
		attribute.String("webhook.url", subscription.URL),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, subscription.URL, bytes.NewReader(body))
	if err != nil {
		otelhelper.SetError(span, err)
		d.logger.ErrorContext(ctx, "Failed to build webhook request",
			"webhook_id", subscription.ID, "error", err)

		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, string(eventType))
	req.Header.Set(HeaderWebhookID, subscription.ID)
	req.Header.Set(HeaderNamespace, namespace)

	for key, value := range subscription.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.WebhookIDKey, subscription.ID))
		d.logger.ErrorContext(ctx, "Webhook delivery failed",
			"webhook_id", subscription.ID, "url", subscription.URL, "error", err)

		return
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		d.logger.WarnContext(ctx, "Webhook delivery rejected",
			"webhook_id", subscription.ID, "url", subscription.URL, "status", resp.StatusCode)
	}
}
