package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/relloyd/cdcpipe/constants"
)

func TestParsePath(t *testing.T) {
	loc, err := ParsePath("c@acct/stage1/demo/rac/t1/data")
	if err != nil {
		t.Fatal(err)
	}
	if loc.Container != "c" || loc.Account != "acct" || loc.Key != "stage1/demo/rac/t1/data" {
		t.Fatalf("unexpected location %+v", loc)
	}
	if loc.String() != "c@acct/stage1/demo/rac/t1/data" {
		t.Fatalf("expected round trip; got %v", loc.String())
	}
	for _, bad := range []string{"", "c/key", "@acct/key"} {
		if _, err = ParsePath(bad); err == nil {
			t.Fatalf("expected error parsing %q", bad)
		}
	}
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err = s.Get(ctx, "c@acct/missing"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound; got %v", err)
	}
	files := []string{"c@acct/p/t1/data/f2.csv", "c@acct/p/t1/data/f1.csv", "c@acct/p/t1/schema/_schema.json", "c@acct/p/t10/data/f1.csv"}
	for _, f := range files {
		if err = s.Put(ctx, f, []byte(f)); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.List(ctx, "c@acct/p/t1/data")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Key != "c@acct/p/t1/data/f1.csv" || got[1].Key != "c@acct/p/t1/data/f2.csv" {
		t.Fatalf("unexpected listing %+v", got)
	}
	if got[0].Size != int64(len("c@acct/p/t1/data/f1.csv")) || got[0].LastModified.IsZero() {
		t.Fatalf("expected size and modification time; got %+v", got[0])
	}
	b, err := s.Get(ctx, "c@acct/p/t1/data/f1.csv")
	if err != nil || string(b) != "c@acct/p/t1/data/f1.csv" {
		t.Fatalf("unexpected content %q: %v", b, err)
	}
	if err = s.Delete(ctx, "c@acct/p/t1/data/f1.csv"); err != nil {
		t.Fatal(err)
	}
	if err = s.Delete(ctx, "c@acct/p/t1/data/f1.csv"); err != nil {
		t.Fatalf("expected delete of missing object to succeed; got %v", err)
	}
	if got, _ = s.List(ctx, "c@acct/nothing/here"); len(got) != 0 {
		t.Fatalf("expected empty listing; got %v", got)
	}
}

type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
	mod     time.Time
}

func (f *fakeS3) ListObjectsV2PagesWithContext(ctx aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, opts ...request.Option) error {
	page := &s3.ListObjectsV2Output{}
	for k, v := range f.objects {
		if len(k) >= len(*in.Prefix) && k[:len(*in.Prefix)] == *in.Prefix {
			page.Contents = append(page.Contents, &s3.Object{Key: aws.String(k), Size: aws.Int64(int64(len(v))), LastModified: aws.Time(f.mod)})
		}
	}
	fn(page, true)
	return nil
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	v, ok := f.objects[*in.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(v))}, nil
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, opts ...request.Option) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	api := &fakeS3{objects: make(map[string][]byte), mod: time.Now()}
	s := NewS3StoreWithAPI(api)
	if err := s.Put(ctx, "bucket@eu-west-1/p/t1/data/f1.csv", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, ok := api.objects["p/t1/data/f1.csv"]; !ok {
		t.Fatalf("expected object key without the bucket; got %v", api.objects)
	}
	got, err := s.List(ctx, "bucket@eu-west-1/p/t1/data")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Key != "bucket@eu-west-1/p/t1/data/f1.csv" || got[0].Size != 1 {
		t.Fatalf("unexpected listing %+v", got)
	}
	if _, err = s.Get(ctx, "bucket@eu-west-1/missing"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound; got %v", err)
	}
	if err = s.Delete(ctx, "bucket@eu-west-1/p/t1/data/f1.csv"); err != nil {
		t.Fatal(err)
	}
	if len(api.objects) != 0 {
		t.Fatalf("expected object to be deleted; got %v", api.objects)
	}
}

func TestOpen(t *testing.T) {
	if _, err := Open(Config{Provider: constants.StorageProviderLocal, LocalRoot: t.TempDir()}); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(Config{Provider: constants.StorageProviderLocal}); err == nil {
		t.Fatal("expected error for local storage without a root")
	}
	if _, err := Open(Config{Provider: constants.StorageProviderAzure}); err == nil {
		t.Fatal("expected error for azure storage without credentials")
	}
	if _, err := Open(Config{Provider: constants.StorageProviderAzure, AzureSasToken: "?sv=1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(Config{Provider: constants.StorageProviderS3}); err == nil {
		t.Fatal("expected error for s3 storage without a region")
	}
	if _, err := Open(Config{Provider: "ftp"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
