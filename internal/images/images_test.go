package images

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG.
var pixel, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func TestDecodeDataURL(t *testing.T) {
	data, err := DecodeDataURL("data:image/png;base64," + base64.StdEncoding.EncodeToString(pixel))
	require.NoError(t, err)
	assert.Equal(t, pixel, data)

	_, err = DecodeDataURL("")
	assert.ErrorIs(t, err, ErrEmptyImage)
	_, err = DecodeDataURL(base64.StdEncoding.EncodeToString([]byte("plain text")))
	assert.Error(t, err)
	_, err = DecodeDataURL("data:image/png;base64,@@@")
	assert.Error(t, err)
}

type fakePutter struct {
	in *s3.PutObjectInput
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	return &s3.PutObjectOutput{}, nil
}

func TestS3Put(t *testing.T) {
	fp := &fakePutter{}
	store := NewS3WithClient(fp, "bucket", "/members/", "https://cdn.example.org/")

	up, err := store.Put(context.Background(), "7.png", pixel)
	require.NoError(t, err)
	assert.Equal(t, "members/7.png", *fp.in.Key)
	assert.Equal(t, "image/png", *fp.in.ContentType)
	assert.Equal(t, "https://cdn.example.org/members/7.png", up.URL)
	assert.Equal(t, len(pixel), up.Bytes)
}

func newTestCloudinary(t *testing.T, h http.HandlerFunc) *Cloudinary {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewCloudinary("demo", "key", "secret", "members")
	require.NoError(t, err)
	c.cld.Upload.Config.API.UploadPrefix = srv.URL
	return c
}

func TestCloudinaryPutSignsRequest(t *testing.T) {
	c := newTestCloudinary(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/demo/")
		assert.True(t, strings.HasSuffix(r.URL.Path, "/upload"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "member-7", r.FormValue("public_id"))
		assert.Equal(t, "members", r.FormValue("folder"))
		assert.NotEmpty(t, r.FormValue("signature"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"public_id":"members/member-7","secure_url":"https://res.example/member-7.png","bytes":68}`))
	})

	up, err := c.Put(context.Background(), "member-7", pixel)
	require.NoError(t, err)
	assert.Equal(t, "https://res.example/member-7.png", up.URL)
	assert.Equal(t, "members/member-7", up.Key)
	assert.Equal(t, 68, up.Bytes)
}

func TestCloudinaryPutReportsFailure(t *testing.T) {
	c := newTestCloudinary(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid Signature"}}`))
	})

	_, err := c.Put(context.Background(), "x", pixel)
	assert.Error(t, err)
}
