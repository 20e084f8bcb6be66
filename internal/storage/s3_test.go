package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
	lastPut *s3.PutObjectInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.lastPut = in
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := &S3{client: fake, bucket: "notes"}

	require.NoError(t, s.Save(ctx, "a.pdf", strings.NewReader("pdf"), 3))
	assert.Equal(t, "notes", aws.ToString(fake.lastPut.Bucket))
	assert.Equal(t, "application/pdf", aws.ToString(fake.lastPut.ContentType))
	assert.Equal(t, int64(3), aws.ToInt64(fake.lastPut.ContentLength))

	rc, err := s.Open(ctx, "a.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "pdf", string(body))

	require.NoError(t, s.Delete(ctx, "a.pdf"))
	_, err = s.Open(ctx, "a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3_SaveError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("denied")
	s := &S3{client: fake, bucket: "notes"}

	err := s.Save(context.Background(), "a.txt", strings.NewReader("x"), 1)
	assert.Error(t, err)
	assert.Empty(t, fake.objects)
}

func TestS3_InvalidKey(t *testing.T) {
	s := &S3{client: newFakeS3(), bucket: "notes"}
	assert.Error(t, s.Save(context.Background(), "../x", strings.NewReader("x"), 1))
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(context.Background(), Config{Type: "ftp"})
	assert.Error(t, err)
}

func TestNew_S3RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Type: TypeS3})
	assert.Error(t, err)
}

func TestNew_LocalDefault(t *testing.T) {
	s, err := New(context.Background(), Config{LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, s)
}
