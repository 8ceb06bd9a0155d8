package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient creates a Client backed by a test HTTP server.
// The handler receives real S3 XML-protocol requests.
func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:       "fsn1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		HTTPClient:   &http.Client{Transport: &http.Transport{}},
	})
	return &Client{s3: client, bucket: "oxide-state"}
}

func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

const noSuchKey = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

// memoryBucket is a minimal path-style S3 object server.
type memoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/oxide-state/")
	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		m.objects[key] = data
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := m.objects[key]
		if !ok {
			xmlResponse(w, http.StatusNotFound, noSuchKey)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case http.MethodDelete:
		delete(m.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient(context.Background(), "https://fsn1.your-objectstorage.com", "fsn1", "oxide-state", "ak", "sk")
	require.NoError(t, err)
	assert.Equal(t, "oxide-state", client.Bucket())
}

func TestClient_PutGetDelete(t *testing.T) {
	t.Parallel()

	client := testClient(t, &memoryBucket{objects: map[string][]byte{}})
	ctx := context.Background()

	require.NoError(t, client.Put(ctx, "demo/state.yaml", []byte("pools: {}\n")))

	data, err := client.Get(ctx, "demo/state.yaml")
	require.NoError(t, err)
	assert.Equal(t, "pools: {}\n", string(data))

	require.NoError(t, client.Delete(ctx, "demo/state.yaml"))

	_, err = client.Get(ctx, "demo/state.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestClient_GetServerError(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		xmlResponse(w, http.StatusForbidden, `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
	}))

	_, err := client.Get(context.Background(), "demo/secrets.yaml")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrObjectNotFound))
	assert.Contains(t, err.Error(), "failed to get object demo/secrets.yaml from bucket oxide-state")
}

func TestClient_EnsureBucketExisting(t *testing.T) {
	t.Parallel()

	var created bool
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			created = true
			w.WriteHeader(http.StatusOK)
		}
	}))

	require.NoError(t, client.EnsureBucket(context.Background()))
	assert.False(t, created)
}

func TestClient_EnsureBucketCreates(t *testing.T) {
	t.Parallel()

	var created bool
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			created = true
			xmlResponse(w, http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?><CreateBucketResult/>`)
		}
	}))

	require.NoError(t, client.EnsureBucket(context.Background()))
	assert.True(t, created)
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"no such key", &s3types.NoSuchKey{}, true},
		{"no such bucket wrapped", fmt.Errorf("op: %w", &s3types.NoSuchBucket{}), true},
		{"generic api 404", &smithy.GenericAPIError{Code: "404"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isNotFoundError(tt.err))
		})
	}
}

func TestIsBucketAlreadyOwnedByYou(t *testing.T) {
	t.Parallel()

	assert.True(t, isBucketAlreadyOwnedByYou(&s3types.BucketAlreadyOwnedByYou{}))
	assert.True(t, isBucketAlreadyOwnedByYou(&smithy.GenericAPIError{Code: "BucketAlreadyOwnedByYou"}))
	assert.False(t, isBucketAlreadyOwnedByYou(&smithy.GenericAPIError{Code: "BucketAlreadyExists"}))
	assert.False(t, isBucketAlreadyOwnedByYou(nil))
}
