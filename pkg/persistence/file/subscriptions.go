package file

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/persistence"
)

// SubscriptionRepository reads webhook subscriptions from JSON files.
type SubscriptionRepository struct {
	root string
	mu   sync.RWMutex
}

// NewSubscriptionRepository creates a new subscription repository.
func NewSubscriptionRepository(root string) *SubscriptionRepository {
	return &SubscriptionRepository{root: root}
}

func (sr *SubscriptionRepository) subscriptionPath(id string) string {
	return filepath.Join(sr.root, "subscriptions", id+".json")
}

func (sr *SubscriptionRepository) ActiveSubscriptions(_ context.Context, namespace, eventName string) ([]*models.WebhookSubscription, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	root := os.DirFS(filepath.Join(sr.root, "subscriptions"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, err
	}

	matches := make([]*models.WebhookSubscription, 0)

	for _, name := range jsonFiles {
		subscription, err := readJSON[models.WebhookSubscription](
			filepath.Join(sr.root, "subscriptions", name),
			persistence.ErrSessionNotFound,
		)
		if err != nil {
			continue
		}

		if !subscription.Active || subscription.Namespace != namespace {
			continue
		}

		if !subscription.WantsEvent(eventName) {
			continue
		}

		matches = append(matches, subscription)
	}

	return matches, nil
}

// SaveSubscription writes a subscription document. Used by seeding and
// tests; registration management is not part of the hub.
func (sr *SubscriptionRepository) SaveSubscription(_ context.Context, subscription *models.WebhookSubscription) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	return writeJSON(sr.subscriptionPath(subscription.ID), subscription)
}
