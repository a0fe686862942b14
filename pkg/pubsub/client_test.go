package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func TestQualify(t *testing.T) {
	cases := []struct {
		project, kind, name, want string
	}{
		{"shop", "topics", "domain", "projects/shop/topics/domain"},
		{"shop", "subscriptions", " notif ", "projects/shop/subscriptions/notif"},
		{"shop", "topics", "projects/other/topics/domain", "projects/other/topics/domain"},
		{"", "topics", "domain", ""},
		{"shop", "topics", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, qualify(tc.project, tc.kind, tc.name), "%s/%s", tc.kind, tc.name)
	}
}

func TestSubscriptionNamesSkipsBlank(t *testing.T) {
	names := subscriptionNames(config.PubSubConfig{NotificationSubscription: "notif", AnalyticsSubscription: " "})
	assert.Equal(t, []string{"notif"}, names)
}

func TestLookupError(t *testing.T) {
	assert.NoError(t, lookupError("topic", "domain", nil))
	assert.EqualError(t, lookupError("topic", "domain", status.Error(codes.NotFound, "gone")),
		`pubsub topic "domain" does not exist`)

	denied := status.Error(codes.PermissionDenied, "nope")
	assert.ErrorIs(t, lookupError("subscription", "notif", denied), denied)
}

func TestUninitializedClient(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.Nil(t, c.Subscriber("notif"))
	assert.NoError(t, c.Close())

	err := (&Publisher{topics: nil}).Publish(context.Background(), "domain", outbox.Message{Key: "order-1", Data: []byte("{}")})
	assert.True(t, errors.Is(err, errNotInitialized))
}

func TestNilSubscriberErrors(t *testing.T) {
	var s *Subscriber
	assert.Error(t, s.Receive(context.Background(), nil))
}
