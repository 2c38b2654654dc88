package firestore

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/asherv/martpal-go/internal/domain"
)

// ============================================================
// Users -- operator accounts
// ============================================================
//
// Layout: users/{userID} with the bcrypt hash alongside profile fields.

func userPath(userID string) string {
	return fmt.Sprintf("users/%s", userID)
}

func userFromDoc(doc *Document) (*domain.User, string) {
	data := doc.Data()
	user := &domain.User{
		ID:    doc.ID(),
		Name:  asString(data["name"]),
		Email: asString(data["email"]),
	}
	if ts, ok := data["createdAt"].(time.Time); ok {
		user.CreatedAt = ts
	}
	return user, asString(data["passwordHash"])
}

// CreateUser stores a new operator account under its caller-assigned ID.
func (c *Client) CreateUser(ctx context.Context, user *domain.User, passwordHash string) error {
	ctx, span := tracer.Start(ctx, "Firestore.CreateUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", user.ID))

	err := c.execute(ctx, func() error {
		_, err := c.SetDocument(ctx, userPath(user.ID), map[string]any{
			"name":         user.Name,
			"email":        user.Email,
			"passwordHash": passwordHash,
			"createdAt":    user.CreatedAt,
		}, nil)
		return err
	})
	if err != nil {
		return storeError("users", err)
	}
	return nil
}

// GetUser fetches an operator account by ID.
func (c *Client) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Firestore.GetUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var doc *Document
	err := c.execute(ctx, func() error {
		var err error
		doc, err = c.GetDocument(ctx, userPath(userID))
		return err
	})
	if err != nil {
		return nil, storeError("users", err)
	}
	if doc == nil {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}

	user, _ := userFromDoc(doc)
	return user, nil
}

// GetUserByEmail looks an account up by email. Returns nil, "", nil when no
// account exists.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*domain.User, string, error) {
	ctx, span := tracer.Start(ctx, "Firestore.GetUserByEmail")
	defer span.End()

	var docs []Document
	err := c.execute(ctx, func() error {
		var err error
		docs, err = c.RunQuery(ctx, "", "users", map[string]any{"email": email}, 1)
		return err
	})
	if err != nil {
		return nil, "", storeError("users", err)
	}
	if len(docs) == 0 {
		return nil, "", nil
	}

	user, hash := userFromDoc(&docs[0])
	return user, hash, nil
}
