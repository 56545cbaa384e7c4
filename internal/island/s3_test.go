package island_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"isle/internal/island"
	"isle/internal/value"
)

type fakeS3 struct {
	objects map[string][]byte
	// page size of ListObjectsV2, to exercise continuation
	page int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start = sort.SearchStrings(keys, aws.ToString(in.ContinuationToken))
	}
	end := len(keys)
	if f.page > 0 && start+f.page < end {
		end = start + f.page
	}

	out := &s3.ListObjectsV2Output{}
	prefixes := map[string]bool{}
	for _, k := range keys[start:end] {
		rest := strings.TrimPrefix(k, prefix)
		if dir, _, ok := strings.Cut(rest, "/"); ok {
			if !prefixes[dir] {
				prefixes[dir] = true
				out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(prefix + dir + "/")})
			}
			continue
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func TestS3(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{
		"pre/a.txt":      []byte("A"),
		"pre/dir/b.txt":  []byte("B"),
		"pre/dir/c.txt":  []byte("C"),
		"pre/z.txt":      []byte("Z"),
		"other/skip.txt": []byte("no"),
	}, page: 2}
	s := island.NewS3(fake, "bucket", "/pre/")
	ctx := context.Background()

	got, err := s.Read(ctx, value.Subpath{"dir", "b.txt"})
	if err != nil || string(got) != "B" {
		t.Fatalf("expected B, got %q (%v)", got, err)
	}
	if _, err := s.Read(ctx, value.Subpath{"none"}); err == nil {
		t.Fatalf("expected an error for a missing key")
	}

	if err := s.Write(ctx, value.Subpath{"new.txt"}, []byte("N")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if string(fake.objects["pre/new.txt"]) != "N" {
		t.Fatalf("expected the object under the prefix, got %v", fake.objects)
	}

	subs, err := s.List(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := names(subs); got != "a.txt,dir,new.txt,z.txt" {
		t.Fatalf("expected a.txt,dir,new.txt,z.txt, got %s", got)
	}
	inner, err := s.List(ctx, value.Subpath{"dir"})
	if err != nil {
		t.Fatalf("list dir: %v", err)
	}
	if got := names(inner); got != "b.txt,c.txt" {
		t.Fatalf("expected b.txt,c.txt, got %s", got)
	}

	if arg, ok := value.RootArgument(s); !ok || arg != "bucket/pre" {
		t.Fatalf("expected bucket/pre, got %q", arg)
	}
}

func TestS3_ThroughRegistry(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"k/leaf": []byte("v")}}
	reg := island.NewRegistry()
	reg.RegisterS3(fake)
	p, err := reg.Path("s3", "bucket/k")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	got, err := p.Get("leaf").Read(context.Background())
	if err != nil || string(got) != "v" {
		t.Fatalf("expected v, got %q (%v)", got, err)
	}
	if _, err := reg.Path("s3", ""); err == nil {
		t.Fatalf("expected a missing bucket error")
	}
}
