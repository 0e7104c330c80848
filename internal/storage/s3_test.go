package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	pages   []*s3.ListObjectsV2Output
	tokens  []string
	put     []string
	deleted []string
	deletes int
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = append(f.put, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.tokens = append(f.tokens, aws.ToString(in.ContinuationToken))
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.deletes++
	for _, o := range in.Delete.Objects {
		f.deleted = append(f.deleted, aws.ToString(o.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestBucketListFollowsContinuation(t *testing.T) {
	api := &fakeS3{pages: []*s3.ListObjectsV2Output{
		{
			Contents:              []types.Object{{Key: aws.String("p/a.csv")}},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("next"),
		},
		{
			Contents: []types.Object{{Key: aws.String("p/b.csv")}, {}},
		},
	}}
	b, err := NewBucket(api, "kegg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys, err := b.List(context.Background(), "p/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"p/a.csv", "p/b.csv"}; !slices.Equal(keys, want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	if want := []string{"", "next"}; !slices.Equal(api.tokens, want) {
		t.Fatalf("got %v, want %v", api.tokens, want)
	}
}

func TestBucketPutAndDelete(t *testing.T) {
	api := &fakeS3{}
	b, _ := NewBucket(api, "kegg")

	if err := b.Put(context.Background(), "p/a.csv", strings.NewReader("x"), "text/csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"kegg/p/a.csv"}; !slices.Equal(api.put, want) {
		t.Fatalf("got %v, want %v", api.put, want)
	}

	if err := b.Delete(context.Background(), nil); err != nil || api.deleted != nil {
		t.Fatalf("expected no call for empty delete")
	}
	if err := b.Delete(context.Background(), []string{"p/a.csv"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"p/a.csv"}; !slices.Equal(api.deleted, want) {
		t.Fatalf("got %v, want %v", api.deleted, want)
	}
}

func TestBucketDeleteSplitsRequests(t *testing.T) {
	api := &fakeS3{}
	b, _ := NewBucket(api, "kegg")

	keys := make([]string, 2*MaxDeleteKeys+1)
	for i := range keys {
		keys[i] = fmt.Sprintf("p/%05d.csv", i)
	}
	if err := b.Delete(context.Background(), keys); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.deletes != 3 {
		t.Fatalf("got %d requests, want 3", api.deletes)
	}
	if !slices.Equal(api.deleted, keys) {
		t.Fatalf("got %d deleted keys, want %d", len(api.deleted), len(keys))
	}
}

func TestNewBucketRequiresName(t *testing.T) {
	if _, err := NewBucket(&fakeS3{}, ""); err == nil {
		t.Fatalf("expected error")
	}
}
