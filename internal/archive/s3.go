package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

// s3Record is the newline-delimited JSON shape written per archived item.
type s3Record struct {
	ID             string `json:"id"`
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id,omitempty"`
	TaskID         string `json:"task_id,omitempty"`
	Type           string `json:"type,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

// putObjectAPI is the narrow subset of *s3.Client that Archive needs,
// mirroring queue.kafkaWriter's narrow-interface-for-testability idiom.
type putObjectAPI interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 archives evicted/consolidated item batches to an S3 bucket/prefix as
// newline-delimited JSON, one object per batch, keyed by timestamp and a
// random suffix (SPEC_FULL.md §4.14).
type S3 struct {
	Client putObjectAPI
	Bucket string
	Prefix string
}

func NewS3(client *s3.Client, bucket, prefix string) *S3 {
	return &S3{Client: client, Bucket: bucket, Prefix: prefix}
}

// NewDefaultS3 builds an S3 sink from a region/endpoint and, if non-empty,
// static credentials; otherwise it falls back to the SDK's default chain
// (env vars, shared config, instance role).
func NewDefaultS3(ctx context.Context, region, endpoint, accessKey, secretKey, bucket, prefix string) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewS3(client, bucket, prefix), nil
}

func (a *S3) Archive(ctx context.Context, items []ctxmodel.ContextItem) error {
	if len(items) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, it := range items {
		rec := s3Record{
			ID:             it.ID,
			Content:        it.Content,
			ConversationID: it.ConversationID,
			TaskID:         it.TaskID,
			Type:           string(it.Metadata.Type),
			Timestamp:      it.Timestamp.Unix(),
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode archive record: %w", err)
		}
	}
	key := fmt.Sprintf("%s%d-%s.ndjson", a.Prefix, time.Now().UnixNano(), uuid.NewString())
	body := bytes.NewReader(buf.Bytes())
	_, err := a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	return err
}
