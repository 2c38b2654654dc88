// Package firestore provides a client for the Firestore REST API (v1).
// Used as the data backend for leads, templates, scheduled messages and
// user accounts, and as the protocol for customer-connected source projects.
package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/infra/resilience"
)

var tracer = otel.Tracer("firestore")

const listPageSize = 300

// Client wraps HTTP calls to a single Firestore project via the REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	projectID  string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates a Firestore client for one project.
func NewClient(httpClient *http.Client, baseURL, projectID, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		projectID:  projectID,
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

// ProjectID returns the project this client talks to.
func (c *Client) ProjectID() string {
	return c.projectID
}

// root returns the documents root resource name for the project.
func (c *Client) root() string {
	return fmt.Sprintf("projects/%s/databases/(default)/documents", c.projectID)
}

// resourceURL builds the request URL for a resource name, appending the API
// key and any extra query parameters.
func (c *Client) resourceURL(name string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	return fmt.Sprintf("%s/v1/%s?%s", c.baseURL, name, query.Encode())
}

// errNotFound signals a 404 from Firestore; callers translate it per resource.
var errNotFound = errors.New("firestore: document not found")

// doJSON executes one request against the REST API and decodes the response
// into out (when out is non-nil).
func (c *Client) doJSON(ctx context.Context, method, rawURL string, payload, out any) error {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		c.logger.Error("firestore: failed to create request",
			zap.String("method", method),
			zap.Error(err),
		)
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("firestore: request failed",
			zap.String("method", method),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("firestore: failed to read response body",
			zap.String("method", method),
			zap.Error(err),
		)
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("firestore: non-2xx response",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return fmt.Errorf("firestore returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("firestore: request OK",
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
	)

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode firestore response: %w", err)
		}
	}
	return nil
}

// execute runs fn behind the circuit breaker with retry.
func (c *Client) execute(ctx context.Context, fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: "firestore/" + c.projectID}
	}
	return err
}

// storeError maps low-level failures onto domain errors, passing domain
// errors through untouched.
func storeError(resource string, err error) error {
	var nf *domain.ErrNotFound
	var open *domain.ErrCircuitOpen
	if errors.As(err, &nf) || errors.As(err, &open) {
		return err
	}
	return &domain.ErrExternalService{Service: "firestore/" + resource, Err: err}
}

// ============================================================
// Raw document operations
// ============================================================

// GetDocument fetches one document by path relative to the documents root.
// Returns (nil, nil) when the document does not exist.
func (c *Client) GetDocument(ctx context.Context, path string) (*Document, error) {
	var doc Document
	err := c.doJSON(ctx, http.MethodGet, c.resourceURL(c.root()+"/"+path, nil), nil, &doc)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

type listResponse struct {
	Documents     []Document `json:"documents"`
	NextPageToken string     `json:"nextPageToken"`
}

// ListDocuments fetches every document of a collection, following pagination.
// parent is a document path relative to the root, or "" for a root collection.
func (c *Client) ListDocuments(ctx context.Context, parent, collectionID string) ([]Document, error) {
	name := c.root()
	if parent != "" {
		name += "/" + parent
	}
	name += "/" + collectionID

	var docs []Document
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("pageSize", fmt.Sprint(listPageSize))
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var page listResponse
		err := c.doJSON(ctx, http.MethodGet, c.resourceURL(name, query), nil, &page)
		if errors.Is(err, errNotFound) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}

		docs = append(docs, page.Documents...)
		if page.NextPageToken == "" {
			return docs, nil
		}
		pageToken = page.NextPageToken
	}
}

// AddDocument creates a document with a server-assigned ID.
func (c *Client) AddDocument(ctx context.Context, parent, collectionID string, fields map[string]any) (*Document, error) {
	name := c.root()
	if parent != "" {
		name += "/" + parent
	}
	name += "/" + collectionID

	payload := Document{Fields: encodeFields(fields)}
	var created Document
	if err := c.doJSON(ctx, http.MethodPost, c.resourceURL(name, nil), payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// SetDocument writes a document at a known path, creating it if absent.
// When mergeFields is non-empty only those fields are touched; otherwise the
// whole document is replaced.
func (c *Client) SetDocument(ctx context.Context, path string, fields map[string]any, mergeFields []string) (*Document, error) {
	query := url.Values{}
	for _, f := range mergeFields {
		query.Add("updateMask.fieldPaths", f)
	}

	payload := Document{Fields: encodeFields(fields)}
	var updated Document
	if err := c.doJSON(ctx, http.MethodPatch, c.resourceURL(c.root()+"/"+path, query), payload, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteDocument removes a document. Deleting an absent document is a no-op.
func (c *Client) DeleteDocument(ctx context.Context, path string) error {
	err := c.doJSON(ctx, http.MethodDelete, c.resourceURL(c.root()+"/"+path, nil), nil, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

type listCollectionIDsRequest struct {
	PageSize  int    `json:"pageSize,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
}

type listCollectionIDsResponse struct {
	CollectionIDs []string `json:"collectionIds"`
	NextPageToken string   `json:"nextPageToken"`
}

// ListCollectionIDs lists the collection IDs below a parent document, or the
// root collections when parent is empty.
func (c *Client) ListCollectionIDs(ctx context.Context, parent string) ([]string, error) {
	name := c.root()
	if parent != "" {
		name += "/" + parent
	}

	var ids []string
	pageToken := ""
	for {
		var page listCollectionIDsResponse
		req := listCollectionIDsRequest{PageSize: listPageSize, PageToken: pageToken}
		if err := c.doJSON(ctx, http.MethodPost, c.resourceURL(name+":listCollectionIds", nil), req, &page); err != nil {
			return nil, err
		}

		ids = append(ids, page.CollectionIDs...)
		if page.NextPageToken == "" {
			return ids, nil
		}
		pageToken = page.NextPageToken
	}
}

// ============================================================
// Structured queries
// ============================================================

type runQueryRequest struct {
	StructuredQuery structuredQuery `json:"structuredQuery"`
}

type structuredQuery struct {
	From  []collectionSelector `json:"from"`
	Where *queryFilter         `json:"where,omitempty"`
	Limit int                  `json:"limit,omitempty"`
}

type collectionSelector struct {
	CollectionID string `json:"collectionId"`
}

type queryFilter struct {
	CompositeFilter *compositeFilter `json:"compositeFilter,omitempty"`
	FieldFilter     *fieldFilter     `json:"fieldFilter,omitempty"`
}

type compositeFilter struct {
	Op      string        `json:"op"`
	Filters []queryFilter `json:"filters"`
}

type fieldFilter struct {
	Field fieldReference `json:"field"`
	Op    string         `json:"op"`
	Value Value          `json:"value"`
}

type fieldReference struct {
	FieldPath string `json:"fieldPath"`
}

type runQueryResult struct {
	Document *Document `json:"document,omitempty"`
}

// RunQuery runs an equality query against one collection under parent.
// Every entry in filters becomes a field == value condition.
func (c *Client) RunQuery(ctx context.Context, parent, collectionID string, filters map[string]any, limit int) ([]Document, error) {
	name := c.root()
	if parent != "" {
		name += "/" + parent
	}

	var conditions []queryFilter
	for field, val := range filters {
		conditions = append(conditions, queryFilter{
			FieldFilter: &fieldFilter{
				Field: fieldReference{FieldPath: field},
				Op:    "EQUAL",
				Value: encodeValue(val),
			},
		})
	}

	sq := structuredQuery{
		From:  []collectionSelector{{CollectionID: collectionID}},
		Limit: limit,
	}
	switch len(conditions) {
	case 0:
	case 1:
		sq.Where = &conditions[0]
	default:
		sq.Where = &queryFilter{
			CompositeFilter: &compositeFilter{Op: "AND", Filters: conditions},
		}
	}

	var results []runQueryResult
	if err := c.doJSON(ctx, http.MethodPost, c.resourceURL(name+":runQuery", nil), runQueryRequest{StructuredQuery: sq}, &results); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		if r.Document != nil {
			docs = append(docs, *r.Document)
		}
	}
	return docs, nil
}

// ============================================================
// Source project access (implements port.SourceHandle)
// ============================================================

// ListCollections lists the root collections of the connected project.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Firestore.ListCollections")
	defer span.End()
	span.SetAttributes(attribute.String("firestore.project", c.projectID))

	var ids []string
	err := c.execute(ctx, func() error {
		var err error
		ids, err = c.ListCollectionIDs(ctx, "")
		return err
	})
	if err != nil {
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			return nil, err
		}
		return nil, &domain.ErrExternalService{Service: "firestore/" + c.projectID, Err: err}
	}
	return ids, nil
}

// FetchAll reads every document of a root collection as plain field maps.
func (c *Client) FetchAll(ctx context.Context, collection string) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "Firestore.FetchAll")
	defer span.End()
	span.SetAttributes(
		attribute.String("firestore.project", c.projectID),
		attribute.String("firestore.collection", collection),
	)

	var docs []Document
	err := c.execute(ctx, func() error {
		var err error
		docs, err = c.ListDocuments(ctx, "", collection)
		return err
	})
	if err != nil {
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			return nil, err
		}
		return nil, &domain.ErrFetchFailed{Collection: collection, Err: err}
	}

	records := make([]map[string]any, 0, len(docs))
	for i := range docs {
		records = append(records, docs[i].Data())
	}
	return records, nil
}
