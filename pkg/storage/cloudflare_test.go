package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts    map[string]string
	types   map[string]string
	deleted []string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	f.puts[aws.ToString(in.Key)] = string(body)
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestUploadAndDelete(t *testing.T) {
	fake := &fakeS3{puts: map[string]string{}, types: map[string]string{}}
	s := &CloudflareStorage{client: fake, bucket: "receipts"}

	require.NoError(t, s.Upload(context.Background(), "receipts/order_1.json", strings.NewReader(`{"a":1}`), "application/json"))
	assert.Equal(t, `{"a":1}`, fake.puts["receipts/order_1.json"])
	assert.Equal(t, "application/json", fake.types["receipts/order_1.json"])

	require.NoError(t, s.Delete(context.Background(), "receipts/order_1.json"))
	assert.Equal(t, []string{"receipts/order_1.json"}, fake.deleted)
}
