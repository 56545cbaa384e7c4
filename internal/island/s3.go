package island

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"isle/internal/value"
)

// S3API is the part of the S3 client the island uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configures an S3 island. Endpoint and ForcePathStyle allow
// S3-compatible stores such as MinIO.
type S3Options struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
	Bucket          string
	Prefix          string
	ForcePathStyle  bool
}

// NewS3Client builds a client from o using the default AWS config chain.
func NewS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if o.Region != "" {
		opts = append(opts, config.WithRegion(o.Region))
	}
	if o.AccessKeyID != "" && o.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if o.Endpoint != "" {
		s3Opts = append(s3Opts, func(so *s3.Options) {
			so.BaseEndpoint = aws.String(o.Endpoint)
		})
	}
	if o.ForcePathStyle {
		s3Opts = append(s3Opts, func(so *s3.Options) {
			so.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(cfg, s3Opts...), nil
}

// S3 is an island over the objects of a bucket below a key prefix.
type S3 struct {
	client S3API
	bucket string
	prefix string
}

func NewS3(client S3API, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (*S3) Type() string { return "s3" }

func (s *S3) Config() (value.Value, bool) {
	if s.prefix == "" {
		return value.Str(s.bucket), true
	}
	return value.Str(s.bucket + "/" + s.prefix), true
}

func (*S3) Path() (value.Value, bool) { return value.Value{}, false }

func (s *S3) key(subpath value.Subpath) string {
	parts := make([]string, 0, len(subpath)+1)
	if s.prefix != "" {
		parts = append(parts, s.prefix)
	}
	parts = append(parts, subpath...)
	return strings.Join(parts, "/")
}

func (s *S3) Read(ctx context.Context, subpath value.Subpath) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(subpath)),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", s.key(subpath), err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// List returns the immediate children of subpath: objects and common
// prefixes one level down.
func (s *S3) List(ctx context.Context, subpath value.Subpath) ([]value.Subpath, error) {
	prefix := s.key(subpath)
	if prefix != "" {
		prefix += "/"
	}
	seen := map[string]bool{}
	var token *string
	for {
		resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", prefix, err)
		}
		for _, p := range resp.CommonPrefixes {
			if name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), prefix), "/"); name != "" {
				seen[name] = true
			}
		}
		for _, o := range resp.Contents {
			if name := strings.TrimPrefix(aws.ToString(o.Key), prefix); name != "" && !strings.Contains(name, "/") {
				seen[name] = true
			}
		}
		if !aws.ToBool(resp.IsTruncated) || resp.NextContinuationToken == nil {
			break
		}
		token = resp.NextContinuationToken
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]value.Subpath, len(names))
	for i, name := range names {
		out[i] = value.Subpath{name}
	}
	return out, nil
}

func (*S3) IsWriteable(context.Context) bool { return true }

func (s *S3) Write(ctx context.Context, subpath value.Subpath, content []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(subpath)),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", s.key(subpath), err)
	}
	return nil
}
