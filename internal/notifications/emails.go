package notifications

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

var statusLines = map[enums.OrderStatus]string{
	enums.OrderStatusProcessing: "We received your payment and are preparing your order.",
	enums.OrderStatusShipped:    "Your order is on its way.",
	enums.OrderStatusDelivered:  "Your order was delivered. We hope you enjoy it!",
	enums.OrderStatusCanceled:   "Your order was canceled. If you were charged, the amount will be returned.",
	enums.OrderStatusPending:    "Your order is waiting for payment confirmation.",
}

func orderCreatedEmail(evt payloads.OrderCreatedEvent) mailer.Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", greetingName(evt.FirstName))
	fmt.Fprintf(&body, "Thanks for your order #%s. Here is what you bought:\n\n", evt.OrderNumber)
	writeLines(&body, evt.Items)
	fmt.Fprintf(&body, "\nTotal: %s %s\n", evt.TotalPaid, evt.Currency)
	body.WriteString("\nWe will email you again once the payment is confirmed.\n")
	return mailer.Message{
		ToEmail: evt.Email,
		ToName:  strings.TrimSpace(evt.FirstName + " " + evt.LastName),
		Subject: fmt.Sprintf("Order #%s received", evt.OrderNumber),
		Body:    body.String(),
	}
}

func orderStatusEmail(evt payloads.OrderStatusChangedEvent) mailer.Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", greetingName(evt.FirstName))
	fmt.Fprintf(&body, "Order #%s is now %s.\n", evt.OrderNumber, evt.Status)
	if line, ok := statusLines[evt.Status]; ok {
		body.WriteString(line + "\n")
	}
	if len(evt.Items) > 0 {
		body.WriteString("\n")
		writeLines(&body, evt.Items)
	}
	return mailer.Message{
		ToEmail: evt.Email,
		ToName:  evt.FirstName,
		Subject: fmt.Sprintf("Order #%s: %s", evt.OrderNumber, evt.Status),
		Body:    body.String(),
	}
}

func welcomeEmail(evt payloads.UserRegisteredEvent) mailer.Message {
	return mailer.Message{
		ToEmail: evt.Email,
		ToName:  evt.Username,
		Subject: "Welcome to the store",
		Body:    fmt.Sprintf("Hi %s,\n\nYour account is ready. Your cart and order history now follow you on every device.\n", evt.Username),
	}
}

func passwordChangedEmail(evt payloads.UserPasswordChangedEvent) mailer.Message {
	return mailer.Message{
		ToEmail: evt.Email,
		ToName:  evt.Username,
		Subject: "Your password was changed",
		Body: fmt.Sprintf("Hi %s,\n\nThe password for your account was changed on %s.\nIf this was not you, reset your password right away.\n",
			evt.Username, evt.ChangedAt.UTC().Format("2006-01-02 15:04 MST")),
	}
}

func passwordResetEmail(evt payloads.PasswordResetRequestedEvent) mailer.Message {
	return mailer.Message{
		ToEmail: evt.Email,
		ToName:  evt.Username,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password. It works once and expires at %s.\n\n%s\n\nIf you did not ask for this, ignore this email.\n",
			evt.Username, evt.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"), evt.ResetURL),
	}
}

func newsletterEmail(evt payloads.NewsletterSubscribedEvent) mailer.Message {
	return mailer.Message{
		ToEmail: evt.Email,
		Subject: "You're subscribed",
		Body:    "Thanks for subscribing! You'll be the first to hear about new arrivals and flash sales.\n",
	}
}

func writeLines(body *strings.Builder, lines []payloads.OrderLine) {
	for _, line := range lines {
		fmt.Fprintf(body, "  %d x %s @ %s\n", line.Quantity, line.ProductName, line.UnitPrice)
	}
}

func greetingName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return strings.TrimSpace(name)
}
