package firestore

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/asherv/martpal-go/internal/domain"
)

// ============================================================
// Scheduled messages -- one deferred dispatch per lead
// ============================================================
//
// Layout: scheduled/{userID}/messages/{leadID}. Keying by lead ID means a
// re-schedule for the same lead overwrites the previous entry.

func scheduledParent(userID string) string {
	return fmt.Sprintf("scheduled/%s", userID)
}

// PutScheduledMessage writes one deferred dispatch keyed by lead.
func (c *Client) PutScheduledMessage(ctx context.Context, userID string, msg *domain.ScheduledMessage) error {
	ctx, span := tracer.Start(ctx, "Firestore.PutScheduledMessage")
	defer span.End()
	span.SetAttributes(attribute.String("lead.id", msg.LeadID))

	err := c.execute(ctx, func() error {
		_, err := c.SetDocument(ctx, fmt.Sprintf("scheduled/%s/messages/%s", userID, msg.LeadID), map[string]any{
			"message":       msg.Message,
			"scheduledTime": msg.ScheduledTime,
			"status":        msg.Status,
			"platform":      msg.Platform,
			"contact":       msg.Contact,
		}, nil)
		return err
	})
	if err != nil {
		return storeError("scheduled", err)
	}
	return nil
}

// ListScheduledMessages returns every pending dispatch the operator owns.
func (c *Client) ListScheduledMessages(ctx context.Context, userID string) ([]domain.ScheduledMessage, error) {
	ctx, span := tracer.Start(ctx, "Firestore.ListScheduledMessages")
	defer span.End()

	var docs []Document
	err := c.execute(ctx, func() error {
		var err error
		docs, err = c.ListDocuments(ctx, scheduledParent(userID), "messages")
		return err
	})
	if err != nil {
		return nil, storeError("scheduled", err)
	}

	messages := make([]domain.ScheduledMessage, 0, len(docs))
	for i := range docs {
		data := docs[i].Data()
		messages = append(messages, domain.ScheduledMessage{
			LeadID:        docs[i].ID(),
			Message:       asString(data["message"]),
			ScheduledTime: asString(data["scheduledTime"]),
			Status:        asString(data["status"]),
			Platform:      asString(data["platform"]),
			Contact:       asString(data["contact"]),
		})
	}
	return messages, nil
}
