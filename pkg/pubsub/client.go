// Package pubsub carries outbox traffic over Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var errNotInitialized = errors.New("pubsub client not initialized")

type Client struct {
	gcp     *pubsub.Client
	project string
	cfg     config.PubSubConfig
}

// NewClient dials Pub/Sub and fails fast when the domain topic or a
// configured subscription is missing. Provisioning is left to infra.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	conn, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("pubsub dial: %w", err)
	}
	c := &Client{gcp: conn, project: project, cfg: cfg}
	if err := c.verify(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project": project,
			"topic":   cfg.DomainTopic,
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) verify(ctx context.Context) error {
	if err := c.topicExists(ctx, c.cfg.DomainTopic); err != nil {
		return err
	}
	subs := subscriptionNames(c.cfg)
	if len(subs) == 0 {
		return errors.New("at least one pubsub subscription is required")
	}
	for _, name := range subs {
		if err := c.subscriptionExists(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) topicExists(ctx context.Context, name string) error {
	full := qualify(c.project, "topics", name)
	if full == "" {
		return errors.New("pubsub domain topic is required")
	}
	_, err := c.gcp.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	return lookupError("topic", name, err)
}

func (c *Client) subscriptionExists(ctx context.Context, name string) error {
	full := qualify(c.project, "subscriptions", name)
	_, err := c.gcp.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	return lookupError("subscription", name, err)
}

func lookupError(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub %s %q does not exist", kind, name)
	default:
		return fmt.Errorf("pubsub %s %q: %w", kind, name, err)
	}
}

func subscriptionNames(cfg config.PubSubConfig) []string {
	var names []string
	for _, name := range []string{cfg.NotificationSubscription, cfg.AnalyticsSubscription} {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// Subscriber returns nil when name is blank so callers can leave a consumer off.
func (c *Client) Subscriber(name string) *Subscriber {
	if c == nil || c.gcp == nil {
		return nil
	}
	full := qualify(c.project, "subscriptions", name)
	if full == "" {
		return nil
	}
	sub := c.gcp.Subscriber(full)
	if c.cfg.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstanding
	}
	return &Subscriber{sub: sub}
}

func (c *Client) NotificationSubscriber() *Subscriber {
	return c.Subscriber(c.cfg.NotificationSubscription)
}

func (c *Client) AnalyticsSubscriber() *Subscriber {
	return c.Subscriber(c.cfg.AnalyticsSubscription)
}

func (c *Client) Publisher() *Publisher {
	return &Publisher{client: c, topics: map[string]*pubsub.Publisher{}}
}

// Ping checks the domain topic only; subscriptions were verified at startup.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.gcp == nil {
		return errNotInitialized
	}
	return c.topicExists(ctx, c.cfg.DomainTopic)
}

func (c *Client) Close() error {
	if c == nil || c.gcp == nil {
		return nil
	}
	return c.gcp.Close()
}

// qualify turns a short id into projects/<p>/<kind>/<id>. Already
// qualified names are returned unchanged.
func qualify(project, kind, name string) string {
	name = strings.TrimSpace(name)
	project = strings.TrimSpace(project)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/"):
		return name
	case project == "":
		return ""
	default:
		return "projects/" + project + "/" + kind + "/" + name
	}
}
