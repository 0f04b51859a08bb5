package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestPlanKey(t *testing.T) {
	if got := PlanKey("t1", "pln_x"); got != "plans/t1/pln_x.json" {
		t.Fatalf("PlanKey = %q", got)
	}
}

func TestS3SinkPut(t *testing.T) {
	f := &fakeS3{}
	s := &S3Sink{client: f, bucket: "plans-bucket"}
	if err := s.Put(context.Background(), "plans/t1/p.json", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if aws.ToString(f.in.Bucket) != "plans-bucket" || aws.ToString(f.in.Key) != "plans/t1/p.json" {
		t.Fatalf("unexpected input %+v", f.in)
	}
	if string(f.body) != `{"a":1}` || aws.ToString(f.in.ContentType) != "application/json" {
		t.Fatalf("body %q", f.body)
	}
}

func TestS3SinkWrapsErrors(t *testing.T) {
	boom := errors.New("denied")
	s := &S3Sink{client: &fakeS3{err: boom}, bucket: "b"}
	if err := s.Put(context.Background(), "k", nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
