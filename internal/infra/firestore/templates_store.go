package firestore

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/asherv/martpal-go/internal/domain"
)

// ============================================================
// Templates -- reusable message bodies per operator
// ============================================================
//
// Layout: templates/{userID}/items/{templateID}

func templateParent(userID string) string {
	return fmt.Sprintf("templates/%s", userID)
}

func templateFromDoc(doc *Document) domain.Template {
	data := doc.Data()
	return domain.Template{
		ID:      doc.ID(),
		Name:    asString(data["name"]),
		Content: asString(data["content"]),
	}
}

// CreateTemplate stores a template with a store-assigned identifier.
func (c *Client) CreateTemplate(ctx context.Context, userID string, tpl *domain.Template) (*domain.Template, error) {
	ctx, span := tracer.Start(ctx, "Firestore.CreateTemplate")
	defer span.End()

	var created *Document
	err := c.execute(ctx, func() error {
		var err error
		created, err = c.AddDocument(ctx, templateParent(userID), "items", map[string]any{
			"name":    tpl.Name,
			"content": tpl.Content,
		})
		return err
	})
	if err != nil {
		return nil, storeError("templates", err)
	}

	out := *tpl
	out.ID = created.ID()
	return &out, nil
}

// ListTemplates returns every template the operator owns.
func (c *Client) ListTemplates(ctx context.Context, userID string) ([]domain.Template, error) {
	ctx, span := tracer.Start(ctx, "Firestore.ListTemplates")
	defer span.End()

	var docs []Document
	err := c.execute(ctx, func() error {
		var err error
		docs, err = c.ListDocuments(ctx, templateParent(userID), "items")
		return err
	})
	if err != nil {
		return nil, storeError("templates", err)
	}

	templates := make([]domain.Template, 0, len(docs))
	for i := range docs {
		templates = append(templates, templateFromDoc(&docs[i]))
	}
	return templates, nil
}

// DeleteTemplate removes one template.
func (c *Client) DeleteTemplate(ctx context.Context, userID, templateID string) error {
	ctx, span := tracer.Start(ctx, "Firestore.DeleteTemplate")
	defer span.End()
	span.SetAttributes(attribute.String("template.id", templateID))

	err := c.execute(ctx, func() error {
		return c.DeleteDocument(ctx, fmt.Sprintf("templates/%s/items/%s", userID, templateID))
	})
	if err != nil {
		return storeError("templates", err)
	}
	return nil
}
