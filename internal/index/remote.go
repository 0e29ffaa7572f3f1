package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v3/typesense"
	"github.com/typesense/typesense-go/v3/typesense/api"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds every request to the remote service.
	DefaultTimeout = 2 * time.Second
	// DefaultRetries is how many times a request is retried after a transport failure or 5xx.
	DefaultRetries    = 2
	defaultRetryDelay = 100 * time.Millisecond
)

// RemoteClient implements Client against a Typesense service.
type RemoteClient struct {
	server     string
	apiKey     string
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	logger     *zap.Logger
	client     *typesense.Client
}

// RemoteOption configures a RemoteClient.
type RemoteOption func(*RemoteClient)

// WithRetries sets the retry count.
func WithRetries(n int) RemoteOption {
	return func(r *RemoteClient) {
		if n >= 0 {
			r.retries = n
		}
	}
}

// WithRetryDelay sets the pause between retries.
func WithRetryDelay(d time.Duration) RemoteOption {
	return func(r *RemoteClient) { r.retryDelay = d }
}

// WithRemoteLogger sets a logger for request failures.
func WithRemoteLogger(l *zap.Logger) RemoteOption {
	return func(r *RemoteClient) { r.logger = l }
}

// NewRemoteClient creates a client for the service at host (e.g. "http://localhost:8108").
// A bare host name gets the default port. A zero timeout uses DefaultTimeout.
func NewRemoteClient(host, apiKey string, timeout time.Duration, opts ...RemoteOption) (*RemoteClient, error) {
	server, err := serverURL(host)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := &RemoteClient{
		server:     server,
		apiKey:     apiKey,
		timeout:    timeout,
		retries:    DefaultRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.client = typesense.NewClient(
		typesense.WithServer(r.server),
		typesense.WithAPIKey(r.apiKey),
		typesense.WithConnectionTimeout(r.timeout),
		typesense.WithNumRetries(r.retries),
		typesense.WithRetryInterval(r.retryDelay),
	)
	return r, nil
}

func serverURL(host string) (string, error) {
	if strings.TrimSpace(host) == "" {
		return "", fmt.Errorf("index host is required")
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid index host %q: %w", host, err)
	}
	if u.Port() == "" && u.Path == "" {
		u.Host = u.Hostname() + ":8108"
	}
	return u.String(), nil
}

// classify maps a client error onto the index error taxonomy.
func (r *RemoteClient) classify(op string, err error) error {
	var he *typesense.HTTPError
	if !errors.As(err, &he) {
		r.logger.Debug("index request failed", zap.String("op", op), zap.Error(err))
		return wrap(op, fmt.Errorf("%w: %v", ErrTransport, err))
	}
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(he.Body, &body)
	msg := body.Message
	if msg == "" {
		msg = http.StatusText(he.Status)
	}
	var base error
	switch {
	case he.Status == http.StatusUnauthorized || he.Status == http.StatusForbidden:
		base = ErrUnauthorized
	case he.Status == http.StatusNotFound:
		base = ErrNotFound
	case he.Status == http.StatusConflict:
		base = ErrAlreadyExists
	case he.Status == http.StatusBadRequest || he.Status == http.StatusUnprocessableEntity:
		base = ErrMalformed
	default:
		base = ErrTransport
	}
	return wrap(op, fmt.Errorf("%w: status %d: %s", base, he.Status, msg))
}

// convert copies in to out through their JSON form. Our schema and search types share
// the service's wire format with the generated api types.
func convert(op string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return wrap(op, fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return wrap(op, fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	return nil
}

// CreateCollection creates a collection. A retried create whose first attempt went through
// reports ErrAlreadyExists.
func (r *RemoteClient) CreateCollection(ctx context.Context, schema Schema) error {
	var s api.CollectionSchema
	if err := convert(OpCreateCollection, schema, &s); err != nil {
		return err
	}
	if _, err := r.client.Collections().Create(ctx, &s); err != nil {
		return r.classify(OpCreateCollection, err)
	}
	return nil
}

// RetrieveCollection returns collection metadata.
func (r *RemoteClient) RetrieveCollection(ctx context.Context, name string) (*CollectionInfo, error) {
	resp, err := r.client.Collection(name).Retrieve(ctx)
	if err != nil {
		return nil, r.classify(OpRetrieveCollection, err)
	}
	var info CollectionInfo
	if err := convert(OpRetrieveCollection, resp, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Upsert creates or replaces a document.
func (r *RemoteClient) Upsert(ctx context.Context, collection string, doc map[string]any) error {
	if _, err := r.client.Collection(collection).Documents().Upsert(ctx, doc, &api.DocumentIndexParameters{}); err != nil {
		return r.classify(OpUpsert, err)
	}
	return nil
}

// Retrieve returns one document by id.
func (r *RemoteClient) Retrieve(ctx context.Context, collection, id string) (map[string]any, error) {
	doc, err := r.client.Collection(collection).Document(id).Retrieve(ctx)
	if err != nil {
		return nil, r.classify(OpRetrieve, err)
	}
	return doc, nil
}

// Delete removes one document by id.
func (r *RemoteClient) Delete(ctx context.Context, collection, id string) error {
	if _, err := r.client.Collection(collection).Document(id).Delete(ctx); err != nil {
		return r.classify(OpDelete, err)
	}
	return nil
}

// DeleteByFilter removes every document matching filter.
func (r *RemoteClient) DeleteByFilter(ctx context.Context, collection, filter string) (int, error) {
	var params api.DeleteDocumentsParams
	if err := convert(OpDeleteByFilter, map[string]string{"filter_by": filter}, &params); err != nil {
		return 0, err
	}
	n, err := r.client.Collection(collection).Documents().Delete(ctx, &params)
	if err != nil {
		return 0, r.classify(OpDeleteByFilter, err)
	}
	return n, nil
}

// Search runs a search against collection.
func (r *RemoteClient) Search(ctx context.Context, collection string, p SearchParams) (*SearchResponse, error) {
	var params api.SearchCollectionParams
	if err := convert(OpSearch, p.wire(), &params); err != nil {
		return nil, err
	}
	resp, err := r.client.Collection(collection).Documents().Search(ctx, &params)
	if err != nil {
		return nil, r.classify(OpSearch, err)
	}
	var out SearchResponse
	if err := convert(OpSearch, resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks that the service is up.
func (r *RemoteClient) Health(ctx context.Context) error {
	ok, err := r.client.Health(ctx, r.timeout)
	if err != nil {
		return r.classify(OpHealth, err)
	}
	if !ok {
		return wrap(OpHealth, fmt.Errorf("%w: service reports unhealthy", ErrTransport))
	}
	return nil
}

// Close is a no-op; connections belong to the client's transport.
func (r *RemoteClient) Close() error {
	return nil
}
