package firestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/domain"
)

// ============================================================
// Leads -- segmented per-user sub-collections
// ============================================================
//
// Layout:
//   leads/{userID}                      container marker
//   leads/{userID}/{segment}/{leadID}   one lead per document

func leadContainerPath(userID string) string {
	return fmt.Sprintf("leads/%s", userID)
}

func leadPath(userID, segment, leadID string) string {
	return fmt.Sprintf("leads/%s/%s/%s", userID, segment, leadID)
}

func leadFields(lead *domain.Lead) map[string]any {
	return map[string]any{
		"name":      lead.Name,
		"contact":   lead.Contact,
		"platform":  lead.Platform,
		"status":    lead.Status,
		"orderRate": lead.OrderRate,
	}
}

func leadFromDoc(doc *Document) *domain.Lead {
	data := doc.Data()
	lead := &domain.Lead{
		ID:       doc.ID(),
		Name:     asString(data["name"]),
		Contact:  asString(data["contact"]),
		Platform: asString(data["platform"]),
		Status:   asString(data["status"]),
	}
	switch v := data["orderRate"].(type) {
	case float64:
		lead.OrderRate = v
	case int64:
		lead.OrderRate = float64(v)
	}
	return lead
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// EnsureContainer idempotently creates the per-user container marker.
func (c *Client) EnsureContainer(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Firestore.EnsureContainer")
	defer span.End()

	err := c.execute(ctx, func() error {
		doc, err := c.GetDocument(ctx, leadContainerPath(userID))
		if err != nil {
			return err
		}
		if doc != nil {
			return nil
		}
		_, err = c.SetDocument(ctx, leadContainerPath(userID), map[string]any{
			"createdAt": time.Now().UTC(),
		}, nil)
		return err
	})
	if err != nil {
		return storeError("leads", err)
	}
	return nil
}

// ListLeads returns every lead of one segment.
func (c *Client) ListLeads(ctx context.Context, userID, segment string) ([]domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Firestore.ListLeads")
	defer span.End()
	span.SetAttributes(attribute.String("lead.segment", segment))

	var docs []Document
	err := c.execute(ctx, func() error {
		var err error
		docs, err = c.ListDocuments(ctx, leadContainerPath(userID), segment)
		return err
	})
	if err != nil {
		return nil, storeError("leads", err)
	}

	leads := make([]domain.Lead, 0, len(docs))
	for i := range docs {
		leads = append(leads, *leadFromDoc(&docs[i]))
	}
	return leads, nil
}

// GetLead fetches one lead by segment and ID.
func (c *Client) GetLead(ctx context.Context, userID, segment, leadID string) (*domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Firestore.GetLead")
	defer span.End()
	span.SetAttributes(attribute.String("lead.id", leadID))

	var doc *Document
	err := c.execute(ctx, func() error {
		var err error
		doc, err = c.GetDocument(ctx, leadPath(userID, segment, leadID))
		return err
	})
	if err != nil {
		return nil, storeError("leads", err)
	}
	if doc == nil {
		return nil, &domain.ErrNotFound{Resource: "lead", ID: leadID}
	}
	return leadFromDoc(doc), nil
}

// CreateLead inserts a lead with a store-assigned identifier.
func (c *Client) CreateLead(ctx context.Context, userID, segment string, lead *domain.Lead) (*domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Firestore.CreateLead")
	defer span.End()
	span.SetAttributes(attribute.String("lead.segment", segment))

	var created *Document
	err := c.execute(ctx, func() error {
		var err error
		created, err = c.AddDocument(ctx, leadContainerPath(userID), segment, leadFields(lead))
		return err
	})
	if err != nil {
		return nil, storeError("leads", err)
	}

	out := *lead
	out.ID = created.ID()
	return &out, nil
}

// PutLead writes a lead under an explicit identifier.
func (c *Client) PutLead(ctx context.Context, userID, segment, leadID string, lead *domain.Lead) error {
	ctx, span := tracer.Start(ctx, "Firestore.PutLead")
	defer span.End()
	span.SetAttributes(attribute.String("lead.id", leadID))

	err := c.execute(ctx, func() error {
		_, err := c.SetDocument(ctx, leadPath(userID, segment, leadID), leadFields(lead), nil)
		return err
	})
	if err != nil {
		return storeError("leads", err)
	}
	return nil
}

// DeleteLead removes one lead document.
func (c *Client) DeleteLead(ctx context.Context, userID, segment, leadID string) error {
	ctx, span := tracer.Start(ctx, "Firestore.DeleteLead")
	defer span.End()
	span.SetAttributes(attribute.String("lead.id", leadID))

	err := c.execute(ctx, func() error {
		return c.DeleteDocument(ctx, leadPath(userID, segment, leadID))
	})
	if err != nil {
		return storeError("leads", err)
	}
	return nil
}

// CountLeads returns the number of leads in one segment.
func (c *Client) CountLeads(ctx context.Context, userID, segment string) (int, error) {
	leads, err := c.ListLeads(ctx, userID, segment)
	if err != nil {
		return 0, err
	}
	return len(leads), nil
}

// FindLeadByKey looks a lead up by the (name, platform, contact) dedup key.
// Returns nil, nil when nothing matches.
func (c *Client) FindLeadByKey(ctx context.Context, userID, segment, name, platform, contact string, fold bool) (*domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Firestore.FindLeadByKey")
	defer span.End()
	span.SetAttributes(attribute.String("lead.segment", segment))

	if fold {
		// Case-insensitive matching has no server-side query; scan.
		leads, err := c.ListLeads(ctx, userID, segment)
		if err != nil {
			return nil, err
		}
		for i := range leads {
			l := &leads[i]
			if strings.EqualFold(l.Name, name) &&
				strings.EqualFold(l.Platform, platform) &&
				strings.EqualFold(l.Contact, contact) {
				return l, nil
			}
		}
		return nil, nil
	}

	var docs []Document
	err := c.execute(ctx, func() error {
		var err error
		docs, err = c.RunQuery(ctx, leadContainerPath(userID), segment, map[string]any{
			"name":     name,
			"platform": platform,
			"contact":  contact,
		}, 1)
		return err
	})
	if err != nil {
		return nil, storeError("leads", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return leadFromDoc(&docs[0]), nil
}

// PurgeLeads removes every lead in every segment plus the container marker.
func (c *Client) PurgeLeads(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Firestore.PurgeLeads")
	defer span.End()

	removed := 0
	for _, segment := range domain.Segments() {
		leads, err := c.ListLeads(ctx, userID, segment)
		if err != nil {
			return err
		}
		for i := range leads {
			if err := c.DeleteLead(ctx, userID, segment, leads[i].ID); err != nil {
				return err
			}
			removed++
		}
	}

	err := c.execute(ctx, func() error {
		return c.DeleteDocument(ctx, leadContainerPath(userID))
	})
	if err != nil {
		return storeError("leads", err)
	}

	c.logger.Info("firestore: purged lead container",
		zap.String("user_id", userID),
		zap.Int("removed", removed),
	)
	return nil
}
