package es

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/config"
	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
)

// ErrConflict is returned when a create hits an existing id.
var ErrConflict = errors.New("document already exists")

type typedEsClient[D model.Document] struct {
	client *elasticsearch.TypedClient
	index  string
	log    logger.Interface
	// Only used to read the mapping; never holds data.
	schemaDoc D
}

type ClientOption func(*elasticsearch.Config)

// WithTransport swaps the HTTP transport, mainly for tests.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *elasticsearch.Config) {
		c.Transport = rt
	}
}

func InitTypedEsClient[D model.Document](cfg *config.Config, log logger.Interface, opts ...ClientOption) (TypedEsClient[D], error) {
	esCfg := elasticsearch.Config{
		Username: cfg.Elasticsearch.Username,
		Password: cfg.Elasticsearch.Password,
		Addresses: []string{
			cfg.Elasticsearch.Address,
		},
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(&esCfg)
	}
	typedClient, err := elasticsearch.NewTypedClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Elasticsearch client: %w", err)
	}
	return &typedEsClient[D]{
		client: typedClient,
		index:  cfg.Elasticsearch.Index,
		log:    log.WithComponent("elasticsearch"),
	}, nil
}

func (tec *typedEsClient[D]) Index() string {
	return tec.index
}

func (tec *typedEsClient[D]) CreateIndexWithMapping(ctx context.Context) error {
	exists, err := tec.client.Indices.Exists(tec.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check index existence in es: %w", err)
	}
	if exists {
		tec.log.Info("index already exists, skip create", "index", tec.index)
		return nil
	}

	mapping := tec.schemaDoc.GetTypeMapping()
	if mapping == nil {
		_, err = tec.client.Indices.Create(tec.index).Do(ctx)
	} else {
		_, err = tec.client.Indices.Create(tec.index).Mappings(mapping).Do(ctx)
	}
	if err != nil {
		// lost a race with another creator
		if hasErrorType(err, "resource_already_exists_exception") {
			tec.log.Info("index already exists, skip create", "index", tec.index)
			return nil
		}
		return fmt.Errorf("failed to create index in es: %w", err)
	}
	tec.log.Info("index created", "index", tec.index)
	return nil
}

func (tec *typedEsClient[D]) GetDoc(ctx context.Context, id string) (D, bool, error) {
	var doc D
	resp, err := tec.client.Get(tec.index, id).Do(ctx)
	if err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return doc, false, nil
		}
		return doc, false, fmt.Errorf("failed to get doc from es: %w", err)
	}
	if !resp.Found {
		return doc, false, nil
	}
	if err := json.Unmarshal(resp.Source_, &doc); err != nil {
		return doc, false, fmt.Errorf("failed to unmarshal source: %w", err)
	}
	return doc, true, nil
}

func (tec *typedEsClient[D]) CreateDoc(ctx context.Context, doc D) error {
	_, err := tec.client.Create(tec.index, doc.GetID()).
		Document(doc).
		Do(ctx)
	if err != nil {
		if hasStatus(err, http.StatusConflict) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create doc in es: %w", err)
	}
	return nil
}

func (tec *typedEsClient[D]) IndexDocWithID(ctx context.Context, doc D) error {
	_, err := tec.client.Index(tec.index).
		Id(doc.GetID()).
		Document(doc).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to index doc to es: %w", err)
	}
	return nil
}

func (tec *typedEsClient[D]) CountDocs(ctx context.Context) (int64, error) {
	resp, err := tec.client.Count().Index(tec.index).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count docs in es: %w", err)
	}
	return resp.Count, nil
}

func hasStatus(err error, status int) bool {
	var esErr *types.ElasticsearchError
	return errors.As(err, &esErr) && esErr.Status == status
}

func hasErrorType(err error, errType string) bool {
	var esErr *types.ElasticsearchError
	return errors.As(err, &esErr) && esErr.ErrorCause.Type == errType
}
