package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

type fakePutObjectAPI struct {
	bucket string
	key    string
	body   []byte
}

func (f *fakePutObjectAPI) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket = *input.Bucket
	f.key = *input.Key
	buf := make([]byte, 0, 4096)
	scanner := bufio.NewScanner(input.Body)
	for scanner.Scan() {
		buf = append(buf, scanner.Bytes()...)
		buf = append(buf, '\n')
	}
	f.body = buf
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveWritesNDJSONBatch(t *testing.T) {
	fake := &fakePutObjectAPI{}
	sink := &S3{Client: fake, Bucket: "ctx-archive", Prefix: "conv-1/"}

	items := []ctxmodel.ContextItem{
		{ID: "a", Content: "first"},
		{ID: "b", Content: "second"},
	}
	if err := sink.Archive(context.Background(), items); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if fake.bucket != "ctx-archive" {
		t.Fatalf("bucket = %q", fake.bucket)
	}

	scanner := bufio.NewScanner(bytes.NewReader(fake.body))
	var decoded []s3Record
	for scanner.Scan() {
		var rec s3Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("decode record: %v", err)
		}
		decoded = append(decoded, rec)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 records, got %d", len(decoded))
	}
	if decoded[0].ID != "a" || decoded[1].ID != "b" {
		t.Fatalf("unexpected record order/content: %+v", decoded)
	}
}

func TestArchiveNoopOnEmptyBatch(t *testing.T) {
	fake := &fakePutObjectAPI{}
	sink := &S3{Client: fake, Bucket: "ctx-archive"}
	if err := sink.Archive(context.Background(), nil); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if fake.key != "" {
		t.Fatalf("expected no PutObject call, got key %q", fake.key)
	}
}
