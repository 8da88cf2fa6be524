package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestResolveEndpoint(t *testing.T) {
	testCases := []struct {
		raw        string
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{raw: "", wantHost: defaultS3Endpoint, wantSecure: true},
		{raw: "minio.internal:9000", wantHost: "minio.internal:9000", wantSecure: true},
		{raw: "http://localhost:9000", wantHost: "localhost:9000", wantSecure: false},
		{raw: "https://s3.example.com", wantHost: "s3.example.com", wantSecure: true},
		{raw: "ftp://files.example.com", wantErr: true},
	}

	for _, tc := range testCases {
		host, secure, err := resolveEndpoint(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.wantHost, host, tc.raw)
		assert.Equal(t, tc.wantSecure, secure, tc.raw)
	}
}

func TestNewObjectStoreRequiresBucket(t *testing.T) {
	_, err := NewObjectStore(ObjectStoreOptions{Endpoint: "http://localhost:9000"})
	assert.Error(t, err)
}

// setupTestObjectStore 启动 MinIO 容器并返回指向测试 bucket 的 ObjectStore。
func setupTestObjectStore(t *testing.T) (*ObjectStore, *minio.Client, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start MinIO container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err, "failed to get container endpoint")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err, "failed to create MinIO client")

	bucket := "nx-cache"
	require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))

	store, err := NewObjectStore(ObjectStoreOptions{Bucket: bucket, Client: client})
	require.NoError(t, err)
	return store, client, bucket
}

func TestIntegration_ObjectStoreRoundTrip(t *testing.T) {
	store, _, _ := setupTestObjectStore(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, exists)

	size, err := store.Size(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	payload := []byte("artifact-payload")
	require.NoError(t, store.Write(ctx, "abc123", bytes.NewReader(payload)))

	exists, err = store.Exists(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, exists)

	size, err = store.Size(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), size)

	reader, err := store.Open(ctx, "abc123")
	require.NoError(t, err)
	defer reader.Close()

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, payload, body)
}

func TestIntegration_ObjectStoreMultipart(t *testing.T) {
	store, _, _ := setupTestObjectStore(t)
	ctx := context.Background()

	payload := bytes.Repeat([]byte("n"), defaultPartSize*2+123)
	require.NoError(t, store.Write(ctx, "large", bytes.NewReader(payload)))

	size, err := store.Size(ctx, "large")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), size)
}

func TestIntegration_ObjectStoreAbortedWrite(t *testing.T) {
	store, client, bucket := setupTestObjectStore(t)
	ctx := context.Background()

	writer := NewGuardedWriter(store)
	err := writer.Write(ctx, "overflow", strings.NewReader("0123456789"), 4)
	assert.True(t, errors.Is(err, ErrContentLengthExceeded), "got %v", err)

	exists, err := store.Exists(ctx, "overflow")
	require.NoError(t, err)
	assert.False(t, exists)

	uploads := client.ListIncompleteUploads(ctx, bucket, "overflow", true)
	for upload := range uploads {
		require.NoError(t, upload.Err)
		t.Fatalf("unexpected pending multipart upload: %s", upload.UploadID)
	}
}

func TestObjectTransportIsCloned(t *testing.T) {
	first := newObjectTransport()
	second := newObjectTransport()
	if first == second {
		t.Fatalf("each store should receive its own transport")
	}
	if first == http.RoundTripper(objectTransport) {
		t.Fatalf("shared template must not be handed out directly")
	}
}
