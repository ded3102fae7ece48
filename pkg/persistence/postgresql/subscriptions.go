package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/zipwire/zipwire/pkg/models"
)

// SubscriptionRepository handles webhook subscription database operations.
type SubscriptionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSubscriptionRepository creates a new subscription repository.
func NewSubscriptionRepository(db *sql.DB, logger *slog.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, logger: logger}
}

// ActiveSubscriptions returns the active subscriptions in the namespace that
// want the given event name, either by exact match or the wildcard.
func (r *SubscriptionRepository) ActiveSubscriptions(ctx context.Context, namespace, eventName string) ([]*models.WebhookSubscription, error) {
	query := `
		SELECT
			id
		  , namespace
		  , url
		  , event_names
		  , headers
		  , active
		FROM webhook_subscriptions
		WHERE active = true
		  AND namespace = $1
		  AND (event_names @> ARRAY[$2]::text[] OR event_names @> ARRAY[$3]::text[])
	`

	rows, err := r.db.QueryContext(ctx, query, namespace, eventName, models.WildcardEventName)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook subscriptions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	subscriptions := make([]*models.WebhookSubscription, 0)

	for rows.Next() {
		var (
			subscription models.WebhookSubscription
			headersJSON  []byte
		)

		err := rows.Scan(
			&subscription.ID,
			&subscription.Namespace,
			&subscription.URL,
			pq.Array(&subscription.EventNames),
			&headersJSON,
			&subscription.Active,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook subscription: %w", err)
		}

		if len(headersJSON) > 0 {
			err = json.Unmarshal(headersJSON, &subscription.Headers)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal subscription headers: %w", err)
			}
		}

		subscriptions = append(subscriptions, &subscription)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating webhook subscriptions: %w", err)
	}

	return subscriptions, nil
}
