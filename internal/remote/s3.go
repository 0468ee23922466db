package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/sethvargo/go-retry"

	"github.com/finsync-app/finsync/internal/logging"
	"github.com/finsync-app/finsync/internal/models"
)

// timestampMetaKey carries the document timestamp on every field object.
// S3 metadata keys are case-insensitive and come back lowercased.
const timestampMetaKey = "doc-timestamp"

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// s3API is the slice of the S3 client used by the adapter; tests provide a
// fake implementation.
type s3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config addresses the backup bucket. BaseEndpoint is set for
// S3-compatible stores such as MinIO and left empty for AWS.
type S3Config struct {
	Bucket               string
	Region               string
	BaseEndpoint         string
	AccessKey            string
	SecretKey            string
	ConnectRetryInterval time.Duration
	ConnectRetryAttempts uint64
}

// S3Store persists one encrypted object per document field under
// users/<email>/<field>.enc, overwriting previous snapshots on upload.
type S3Store struct {
	cfg    S3Config
	key    []byte
	client s3API
	log    logging.Logger

	// test seam
	nowFn func() time.Time
}

func NewS3Store(ctx context.Context, cfg S3Config, masterKey []byte, log logging.Logger) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		cfg:    cfg,
		key:    masterKey,
		client: client,
		log:    log.With("component", "s3store"),
		nowFn:  time.Now,
	}, nil
}

func objectKey(identity, field string) string {
	return fmt.Sprintf("users/%s/%s.enc", identity, field)
}

func objectPrefix(identity string) string {
	return fmt.Sprintf("users/%s/", identity)
}

// Ping performs a single availability probe against the bucket.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.cfg.Bucket),
	})
	if err != nil {
		return Classify(err)
	}
	return nil
}

// Connect probes the bucket, retrying transient failures with constant
// backoff. Permission and quota failures abort immediately.
func (s *S3Store) Connect(ctx context.Context) error {
	backoff := retry.WithMaxRetries(s.cfg.ConnectRetryAttempts, retry.NewConstant(s.cfg.ConnectRetryInterval))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.Ping(ctx)
		if err == nil {
			return nil
		}
		var se *SyncError
		if errors.As(err, &se) && se.Kind == KindNetwork {
			s.log.Debug(ctx, "store unreachable, retrying", "error", err.Error())
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *S3Store) Upload(ctx context.Context, identity string, doc *models.Document, onProgress ProgressFunc) error {
	report := progressReporter(onProgress)

	if err := s.Ping(ctx); err != nil {
		return Classify(err)
	}
	report(10)

	ts := strconv.FormatInt(doc.Timestamp, 10)

	for i, field := range documentFields {
		blob, err := encryptField(doc, field, s.key)
		if err != nil {
			return &SyncError{Kind: KindUnknown, Err: err}
		}

		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.cfg.Bucket),
			Key:         aws.String(objectKey(identity, field)),
			Body:        bytes.NewReader(blob),
			ContentType: aws.String("application/octet-stream"),
			Metadata:    map[string]string{timestampMetaKey: ts},
		})
		if err != nil {
			return Classify(err)
		}

		report(10 + (i+1)*90/len(documentFields))
	}

	s.log.Debug(ctx, "snapshot uploaded", "identity", identity, "timestamp", doc.Timestamp)
	return nil
}

func (s *S3Store) Download(ctx context.Context, identity string, onProgress ProgressFunc) (*models.Document, error) {
	report := progressReporter(onProgress)

	list, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(objectPrefix(identity)),
	})
	if err != nil {
		return nil, Classify(err)
	}
	if len(list.Contents) == 0 {
		// no snapshot for this identity, distinguishable from an error
		return nil, nil
	}
	report(10)

	doc := &models.Document{}
	var maxTimestamp int64

	for i, field := range documentFields {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(objectKey(identity, field)),
		})
		if err != nil {
			if isNotFound(err) {
				report(10 + (i+1)*90/len(documentFields))
				continue
			}
			return nil, Classify(err)
		}

		blob, err := io.ReadAll(out.Body)
		_ = out.Body.Close()
		if err != nil {
			return nil, Classify(err)
		}

		if err := decryptField(doc, field, blob, s.key); err != nil {
			// fatal to this restore attempt, surfaced unclassified so the
			// caller can match cryptox.ErrDecryption
			return nil, err
		}

		if raw := out.Metadata[timestampMetaKey]; raw != "" {
			if ts, err := strconv.ParseInt(raw, 10, 64); err == nil && ts > maxTimestamp {
				maxTimestamp = ts
			}
		}

		report(10 + (i+1)*90/len(documentFields))
	}

	doc.Timestamp = maxTimestamp
	if doc.Timestamp == 0 {
		doc.Timestamp = s.nowFn().UnixMilli()
	}
	return doc, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
