package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObject struct {
	data     []byte
	metadata map[string]string
}

// fakeS3 is an in-memory S3API for a single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string]fakeObject)} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{data: data, metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{Metadata: obj.metadata}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(k),
			Size: aws.Int64(int64(len(f.objects[k].data))),
		})
	}
	return out, nil
}

func TestS3Store_RoundTrip(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "plans", "/project/")
	ctx := context.Background()

	if err := store.Put(ctx, "migrations/0001_create_posts_table.json", strings.NewReader(`{"create":true}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, ok := client.objects["project/migrations/0001_create_posts_table.json"]; !ok {
		t.Fatalf("object not stored under prefix, have %v", client.objects)
	}

	rc, err := store.Get(ctx, "migrations/0001_create_posts_table.json")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != `{"create":true}` {
		t.Errorf("content = %q", got)
	}

	artifacts, err := store.List(ctx, "migrations/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Key != "migrations/0001_create_posts_table.json" {
		t.Fatalf("unexpected artifacts: %+v", artifacts)
	}
	if artifacts[0].Checksum == "" || artifacts[0].Size != int64(len(`{"create":true}`)) {
		t.Errorf("metadata missing: %+v", artifacts[0])
	}

	if err := store.Delete(ctx, "migrations/0001_create_posts_table.json"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "migrations/0001_create_posts_table.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestS3Store_NoPrefix(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "plans", "")
	if err := store.Put(context.Background(), "a.json", strings.NewReader("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, ok := client.objects["a.json"]; !ok {
		t.Errorf("expected object at bucket root, have %v", client.objects)
	}
}
