package models

// WildcardEventName subscribes a webhook to every event type.
const WildcardEventName = "*"

// DefaultNamespace partitions subscriptions for callers that do not tag
// their connections.
const DefaultNamespace = "default"

// WebhookSubscription is a registered outbound delivery target. The hub
// only reads subscriptions; registration management lives elsewhere.
type WebhookSubscription struct {
	ID         string            `json:"id"`
	Namespace  string            `json:"namespace"  validate:"required"`
	URL        string            `json:"url"        validate:"required,url"`
	EventNames []string          `json:"event_names"`
	Headers    map[string]string `json:"headers,omitempty"`
	Active     bool              `json:"active"`
}

// WantsEvent reports whether the subscription covers the given event name,
// either explicitly or through the wildcard.
func (s *WebhookSubscription) WantsEvent(name string) bool {
	for _, n := range s.EventNames {
		if n == WildcardEventName || n == name {
			return true
		}
	}

	return false
}
