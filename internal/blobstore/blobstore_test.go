package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStorePutOpen(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFSStore(t.TempDir(), "")
	require.NoError(t, err)

	loc, err := fs.Put(ctx, "1700-report.pdf", []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/reports/1700-report.pdf", loc)
	assert.Equal(t, "1700-report.pdf", NameFromLocation(loc))

	rc, size, err := fs.Open(ctx, NameFromLocation(loc))
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, int64(8), size)

	_, _, err = fs.Open(ctx, "missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = fs.Open(ctx, "../secret")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = fs.Put(ctx, "a/b.pdf", nil, "")
	assert.Error(t, err)
}

type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func TestS3StorePutOpen(t *testing.T) {
	ctx := context.Background()
	api := &memS3{objects: map[string][]byte{}}
	st := NewS3StoreFromAPI(api, "audits", "/reports/")

	loc, err := st.Put(ctx, "1-x.pdf", []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "s3://audits/reports/1-x.pdf", loc)
	assert.Contains(t, api.objects, "audits/reports/1-x.pdf")

	rc, size, err := st.Open(ctx, NameFromLocation(loc))
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, int64(4), size)

	_, _, err = st.Open(ctx, "nope.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}
