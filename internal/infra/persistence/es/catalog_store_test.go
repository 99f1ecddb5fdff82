package es

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/LouYuanbo1/catalogsync/internal/config"
	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/LouYuanbo1/catalogsync/internal/service/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCluster answers the handful of index and document APIs the store uses.
type fakeCluster struct {
	mu   sync.Mutex
	docs map[string]json.RawMessage
	// createErrType, when set, makes index creation fail with that error type.
	createErrType string
	indexCreated  bool
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	f.mu.Lock()
	defer f.mu.Unlock()
	switch len(parts) {
	case 1:
		f.serveIndex(w, r, parts[0])
	case 2:
		if parts[1] != "_count" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"count": len(f.docs)})
	case 3:
		f.serveDoc(w, r, parts[0], parts[1], parts[2])
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeCluster) serveIndex(w http.ResponseWriter, r *http.Request, index string) {
	switch r.Method {
	case http.MethodHead:
		if !f.indexCreated {
			w.WriteHeader(http.StatusNotFound)
		}
	case http.MethodPut:
		if f.createErrType != "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":  map[string]any{"type": f.createErrType, "reason": "rejected"},
				"status": http.StatusBadRequest,
			})
			return
		}
		f.indexCreated = true
		_ = json.NewEncoder(w).Encode(map[string]any{"acknowledged": true, "shards_acknowledged": true, "index": index})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeCluster) serveDoc(w http.ResponseWriter, r *http.Request, index, api, id string) {
	switch {
	case api == "_doc" && r.Method == http.MethodGet:
		src, ok := f.docs[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"_index": index, "_id": id, "found": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"_index": index, "_id": id, "found": true, "_source": src})
	case api == "_create":
		if _, ok := f.docs[id]; ok {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":  map[string]any{"type": "version_conflict_engine_exception", "reason": "document already exists"},
				"status": http.StatusConflict,
			})
			return
		}
		f.store(id, r)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"_index": index, "_id": id, "result": "created"})
	case api == "_doc":
		f.store(id, r)
		_ = json.NewEncoder(w).Encode(map[string]any{"_index": index, "_id": id, "result": "updated"})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeCluster) store(id string, r *http.Request) {
	var raw json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&raw)
	f.docs[id] = raw
}

func newTestClient(t *testing.T, cluster *fakeCluster) TypedEsClient[*model.CatalogEntry] {
	t.Helper()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Elasticsearch.Address = srv.URL
	cfg.Elasticsearch.Index = "catalog"
	client, err := InitTypedEsClient[*model.CatalogEntry](cfg, logger.NewNop(), WithTransport(http.DefaultTransport))
	require.NoError(t, err)
	return client
}

func newTestStore(t *testing.T) *CatalogStore {
	t.Helper()
	return NewCatalogStore(newTestClient(t, &fakeCluster{docs: map[string]json.RawMessage{}}))
}

func TestCatalogStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	got, err := s.FindByKey(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	entry := &model.CatalogEntry{StableKey: "k1", Name: "Aloe Vera Juice", ListPrice: 1250}
	require.NoError(t, s.Insert(ctx, entry))
	assert.ErrorIs(t, s.Insert(ctx, entry), catalog.ErrDuplicate)

	got, err = s.FindByKey(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Aloe Vera Juice", got.Name)
	assert.Equal(t, 1250.0, got.ListPrice)

	entry.BusinessPrice = 999
	require.NoError(t, s.Update(ctx, "k1", entry))
	got, err = s.FindByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 999.0, got.BusinessPrice)

	require.NoError(t, s.Insert(ctx, &model.CatalogEntry{StableKey: "k2", Name: "Neem Oil"}))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Error(t, s.Update(ctx, "other", entry))
}

func TestCreateIndexWithMapping(t *testing.T) {
	testCases := []struct {
		name    string
		cluster *fakeCluster
		wantErr bool
	}{
		{name: "creates missing index", cluster: &fakeCluster{}},
		{name: "already exists", cluster: &fakeCluster{indexCreated: true}},
		{name: "lost creation race", cluster: &fakeCluster{createErrType: "resource_already_exists_exception"}},
		{name: "invalid mapping", cluster: &fakeCluster{createErrType: "mapper_parsing_exception"}, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, tc.cluster)
			err := client.CreateIndexWithMapping(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "mapper_parsing_exception")
				return
			}
			require.NoError(t, err)
		})
	}
}
