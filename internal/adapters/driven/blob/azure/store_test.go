package azure

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "dGVzdC1hY2NvdW50LWtleQ==" // base64("test-account-key")

func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := NewStore(Config{
		AccountName: "testaccount",
		AccountKey:  testKey,
		Container:   "docs",
		Endpoint:    server.URL,
		RetryBase:   time.Millisecond,
	})
	require.NoError(t, err)
	return store
}

func TestNewStoreValidation(t *testing.T) {
	_, err := NewStore(Config{AccountKey: testKey})
	assert.ErrorContains(t, err, "account name")

	_, err = NewStore(Config{AccountName: "a", AccountKey: "not-base64!"})
	assert.ErrorContains(t, err, "account key")
}

func TestUpload(t *testing.T) {
	var gotPath, gotBlobType, gotAuth, gotBody string
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBlobType = r.Header.Get("x-ms-blob-type")
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusCreated)
	})

	blobURL, err := store.Upload(context.Background(), "abc.xlsx", []byte("payload"))
	require.NoError(t, err)

	assert.Equal(t, "/docs/abc.xlsx", gotPath)
	assert.Equal(t, "BlockBlob", gotBlobType)
	assert.True(t, strings.HasPrefix(gotAuth, "SharedKey testaccount:"), gotAuth)
	assert.Equal(t, "payload", gotBody)
	assert.True(t, strings.HasSuffix(blobURL, "/docs/abc.xlsx"))
}

func TestUploadRetriesTransientFailure(t *testing.T) {
	var calls int
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	_, err := store.Upload(context.Background(), "a.txt", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUploadExhaustsRetries(t *testing.T) {
	var calls int
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := store.Upload(context.Background(), "a.txt", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, uploadAttempts, calls)
	assert.Contains(t, err.Error(), "503")
}

func TestDownload(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte("blob content"))
	})

	content, err := store.Download(context.Background(), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("blob content"), content)
}

func TestDownloadMissing(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := store.Download(context.Background(), "gone.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestDeleteMissingIsSuccess(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	assert.NoError(t, store.Delete(context.Background(), "gone.txt"))
}

func TestDelete(t *testing.T) {
	var gotMethod string
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusAccepted)
	})

	require.NoError(t, store.Delete(context.Background(), "a.txt"))
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestSignedURL(t *testing.T) {
	store, err := NewStore(Config{
		AccountName: "testaccount",
		AccountKey:  testKey,
		Container:   "docs",
	})
	require.NoError(t, err)

	signed, err := store.SignedURL(context.Background(), "a.xlsx", time.Hour)
	require.NoError(t, err)

	parsed, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "testaccount.blob.core.windows.net", parsed.Host)
	assert.Equal(t, "/docs/a.xlsx", parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "b", query.Get("sr"))
	assert.Equal(t, "r", query.Get("sp"))
	assert.Equal(t, sasVersion, query.Get("sv"))
	assert.NotEmpty(t, query.Get("se"))

	sig, err := base64.StdEncoding.DecodeString(query.Get("sig"))
	require.NoError(t, err)
	assert.Len(t, sig, 32, "HMAC-SHA256 signature")
}

func TestSignedURLExpiryHonoursTTL(t *testing.T) {
	store, err := NewStore(Config{AccountName: "a", AccountKey: testKey})
	require.NoError(t, err)

	signed, err := store.SignedURL(context.Background(), "x", 30*time.Minute)
	require.NoError(t, err)

	parsed, _ := url.Parse(signed)
	expiry, err := time.Parse("2006-01-02T15:04:05Z", parsed.Query().Get("se"))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(30*time.Minute), expiry, time.Minute)
}
