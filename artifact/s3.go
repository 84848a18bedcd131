package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store implements Store using an S3-compatible backend.
// Objects are stored under {prefix}/{key}.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store creates a new S3Store.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// NewS3Client builds an S3 client from the default AWS credential chain.
// A non-empty endpoint selects path-style addressing for MinIO or LocalStack.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if endpoint != "" {
		ep := endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &ep
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(cfg, s3Opts...), nil
}

// objectKey returns the full S3 key for a given artifact.
func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return strings.TrimPrefix(path.Clean("/"+key), "/")
	}
	return path.Join(s.prefix, key)
}

// Put uploads an artifact. The content is buffered to compute its checksum,
// which is stored as object metadata.
func (s *S3Store) Put(ctx context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read artifact data: %w", err)
	}

	sum := sha256.Sum256(data)
	metadata := map[string]string{
		"checksum":   hex.EncodeToString(sum[:]),
		"created-at": time.Now().UTC().Format(time.RFC3339),
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
		Metadata:      metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to put artifact to S3: %w", err)
	}
	return nil
}

// Get retrieves an artifact from S3.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get artifact from S3: %w", err)
	}
	return result.Body, nil
}

// List pages through the objects under prefix and reads each one's
// checksum from its metadata.
func (s *S3Store) List(ctx context.Context, prefix string) ([]Artifact, error) {
	full := prefix
	if s.prefix != "" {
		full = s.prefix + "/" + prefix
	}

	var artifacts []Artifact
	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(full),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list artifacts from S3: %w", err)
		}
		for _, obj := range page.Contents {
			a, err := s.describe(ctx, obj)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, a)
		}
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Key < artifacts[j].Key
	})
	return artifacts, nil
}

func (s *S3Store) describe(ctx context.Context, obj types.Object) (Artifact, error) {
	objectKey := aws.ToString(obj.Key)
	key := objectKey
	if s.prefix != "" {
		key = strings.TrimPrefix(objectKey, s.prefix+"/")
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    obj.Key,
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to head artifact %q: %w", key, err)
	}

	var createdAt time.Time
	if ts, ok := head.Metadata["created-at"]; ok {
		createdAt, _ = time.Parse(time.RFC3339, ts)
	}
	if createdAt.IsZero() && obj.LastModified != nil {
		createdAt = *obj.LastModified
	}

	return Artifact{
		Key:       key,
		Size:      aws.ToInt64(obj.Size),
		CreatedAt: createdAt,
		Checksum:  head.Metadata["checksum"],
	}, nil
}

// Delete removes an artifact from S3.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete artifact from S3: %w", err)
	}
	return nil
}

var (
	_ Store = (*LocalStore)(nil)
	_ Store = (*S3Store)(nil)
)
