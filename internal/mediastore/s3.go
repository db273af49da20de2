package mediastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"xsched/internal/config"
	"xsched/internal/model"
	"xsched/internal/xs"
)

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type s3Uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store keeps media as objects under "<prefix>/<kind dir>/<name>" in a
// bucket. Stored paths have the form s3://<bucket>/<key>.
type S3Store struct {
	client   s3API
	uploader s3Uploader
	bucket   string
	prefix   string
}

// S3Keys are optional static credentials. Without them the default AWS
// credential chain applies.
type S3Keys struct {
	AccessKey string
	SecretKey string
}

// NewS3Store creates an S3Store from configuration.
func NewS3Store(ctx context.Context, cfg config.MediaConfig, keys S3Keys) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 media store requires s3_bucket to be set")
	}
	region := cfg.S3Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if keys.AccessKey != "" && keys.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keys.AccessKey, keys.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return newS3Store(client, manager.NewUploader(client), cfg.S3Bucket, cfg.S3Prefix), nil
}

func newS3Store(client s3API, uploader s3Uploader, bucket, prefix string) *S3Store {
	return &S3Store{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

func (s *S3Store) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3Store) url(fullKey string) string {
	return "s3://" + s.bucket + "/" + fullKey
}

// parse maps a stored path back to its object key.
func (s *S3Store) parse(path string) (string, error) {
	fullKey, ok := strings.CutPrefix(path, "s3://"+s.bucket+"/")
	if !ok {
		return "", fmt.Errorf("path outside media store: %s", path)
	}
	key := fullKey
	if s.prefix != "" {
		if key, ok = strings.CutPrefix(fullKey, s.prefix+"/"); !ok {
			return "", fmt.Errorf("path outside media store: %s", path)
		}
	}
	if !validKey(key) {
		return "", fmt.Errorf("path outside media store: %s", path)
	}
	return fullKey, nil
}

func (s *S3Store) Put(kind model.MediaKind, name string, r io.Reader, size int64) (string, error) {
	key, err := objectKey(kind, name)
	if err != nil {
		return "", err
	}
	fullKey := s.fullKey(key)

	counter := &countingReader{r: r}
	_, err = s.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(fullKey),
		Body:          counter,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	if counter.n != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n)
	}
	return s.url(fullKey), nil
}

func (s *S3Store) Open(path string) (io.ReadCloser, error) {
	fullKey, err := s.parse(path)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("media file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	return out.Body, nil
}

func (s *S3Store) Remove(path string) error {
	fullKey, err := s.parse(path)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// ValidateSetup checks that the bucket is reachable with the configured credentials.
func (s *S3Store) ValidateSetup() error {
	_, err := s.client.HeadBucket(context.Background(), &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", s.bucket, err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Compile-time check that S3Store implements xs.MediaStore interface
var _ xs.MediaStore = (*S3Store)(nil)
