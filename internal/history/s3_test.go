// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperwatch/pkg/types"
)

const noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>%s</Key><BucketName>%s</BucketName><RequestId>1</RequestId></Error>`

// fakeS3 serves path-style GET and PUT object requests from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	failPut bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")

	switch r.Method {
	case http.MethodGet:
		data, ok := f.objects[path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, noSuchKeyXML, key, bucket)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Last-Modified", time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Write(data)
	case http.MethodPut:
		if f.failPut {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") ||
			strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeAWSChunked(body)
		}
		f.objects[path] = body
		f.puts++
		w.Header().Set("ETag", `"9b2cf535f27731c974343645a3985328"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// decodeAWSChunked strips the aws-chunked framing minio-go uses for
// streaming uploads over plain HTTP.
func decodeAWSChunked(body []byte) []byte {
	var out bytes.Buffer
	for len(body) > 0 {
		line, rest, ok := bytes.Cut(body, []byte("\r\n"))
		if !ok {
			break
		}
		sizeHex, _, _ := bytes.Cut(line, []byte(";"))
		size, err := strconv.ParseInt(string(sizeHex), 16, 64)
		if err != nil || size == 0 || int(size) > len(rest) {
			break
		}
		out.Write(rest[:size])
		body = bytes.TrimPrefix(rest[size:], []byte("\r\n"))
	}
	return out.Bytes()
}

func newTestObjectStore(t *testing.T, fake *fakeS3) *ObjectStore {
	t.Helper()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)

	s, err := NewObjectStore(types.HistoryConfig{
		Backend:     types.HistoryS3,
		S3Endpoint:  u.Host,
		S3Bucket:    "paperwatch",
		S3Key:       "state/sent_history.json",
		S3AccessKey: "minio",
		S3SecretKey: "minio123",
	})
	require.NoError(t, err)
	return s
}

func TestObjectStoreMissingObjectIsEmpty(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	s := newTestObjectStore(t, fake)

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 0, s.Len())
}

func TestObjectStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{
		"paperwatch/state/sent_history.json": []byte(`["10.1/old", "An Old Legacy Title"]`),
	}}
	s := newTestObjectStore(t, fake)

	require.NoError(t, s.Load(ctx))
	assert.True(t, s.Contains(types.CandidatePaper{ID: "10.1/old"}))
	assert.True(t, s.Contains(types.CandidatePaper{ID: "10.1/x", Title: "an old legacy title"}))

	s.Record(types.CandidatePaper{ID: "10.1/new", Title: "New"})
	require.NoError(t, s.Persist(ctx))
	assert.Equal(t, 1, fake.puts)

	var stored []string
	require.NoError(t, json.Unmarshal(fake.objects["paperwatch/state/sent_history.json"], &stored))
	assert.Equal(t, []string{"10.1/new", "10.1/old", "title:an old legacy title", "title:new"}, stored)

	reloaded := newTestObjectStore(t, fake)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, 4, reloaded.Len())
}

func TestObjectStorePersistNoopWithoutRecord(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	s := newTestObjectStore(t, fake)

	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.Persist(ctx))
	assert.Equal(t, 0, fake.puts)
}

func TestObjectStorePersistFailure(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}, failPut: true}
	s := newTestObjectStore(t, fake)

	require.NoError(t, s.Load(ctx))
	s.Record(types.CandidatePaper{ID: "10.1/a"})
	err := s.Persist(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload history object")
	assert.Len(t, s.pending, 1, "failed keys stay buffered")
}
