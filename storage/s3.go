package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

// s3Backend stores one object per region in an S3 or S3-compatible bucket.
// The object ETag serves as the document version. S3 offers no
// transactional compare-and-swap; the backend re-checks the ETag
// immediately before each put, which narrows but does not close the write
// race. Single-writer coordination remains the rotation coordinator's job.
type s3Backend struct {
	client      *s3.S3
	bucketName  string
	prefix      string
	log         *slog.Logger
	locationStr string
}

// NewS3Store creates a cache store backed by an S3 bucket. If accessKey
// and secretKey are empty the SDK's default credential chain is used.
func NewS3Store(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*Store, error) {
	uri := fmt.Sprintf("s3://%s/%s?region=%s", bucketName, prefix, region)
	if endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", endpoint)
	}

	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	b := &s3Backend{
		client:      s3.New(sess),
		bucketName:  bucketName,
		prefix:      strings.Trim(prefix, "/"),
		log:         log,
		locationStr: uri,
	}
	return newStore(b, log), nil
}

func (b *s3Backend) objectKey(region interfaces.Region) string {
	return path.Join(b.prefix, region.String()+".json")
}

func (b *s3Backend) readDocument(ctx context.Context, region interfaces.Region) ([]byte, interfaces.DocumentVersion, error) {
	out, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(b.objectKey(region)),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, interfaces.NoVersion, fmt.Errorf("%w: no cache document for region %q", interfaces.ErrCacheUnavailable, region.String())
		}
		return nil, interfaces.NoVersion, fmt.Errorf("%w: %v", interfaces.ErrCacheUnavailable, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, interfaces.NoVersion, fmt.Errorf("%w: %v", interfaces.ErrCacheUnavailable, err)
	}

	return data, etagVersion(out.ETag), nil
}

func (b *s3Backend) writeDocument(ctx context.Context, region interfaces.Region, data []byte, version interfaces.DocumentVersion) (interfaces.DocumentVersion, error) {
	key := b.objectKey(region)

	head, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		if etagVersion(head.ETag) != version {
			return interfaces.NoVersion, fmt.Errorf("%w: document for region %q changed since load", interfaces.ErrVersionConflict, region.String())
		}
	case isS3NotFound(err):
		if version != interfaces.NoVersion {
			return interfaces.NoVersion, fmt.Errorf("%w: document for region %q vanished", interfaces.ErrVersionConflict, region.String())
		}
	default:
		return interfaces.NoVersion, fmt.Errorf("%w: %v", interfaces.ErrPersistence, err)
	}

	put, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return interfaces.NoVersion, fmt.Errorf("%w: %v", interfaces.ErrPersistence, err)
	}

	return etagVersion(put.ETag), nil
}

func (b *s3Backend) available(ctx context.Context) bool {
	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucketName),
	})
	if err != nil {
		b.log.Debug("S3 cache store unavailable", "err", err)
		return false
	}
	return true
}

func (b *s3Backend) name() string {
	return fmt.Sprintf("s3-%s", b.bucketName)
}

func (b *s3Backend) locationURI() string {
	return b.locationStr
}

func etagVersion(etag *string) interfaces.DocumentVersion {
	if etag == nil {
		return interfaces.NoVersion
	}
	return interfaces.DocumentVersion(strings.Trim(*etag, `"`))
}

// isS3NotFound matches both the typed NoSuchKey error and the bare 404
// HeadObject responses the SDK surfaces without a typed code.
func isS3NotFound(err error) bool {
	aerr, ok := err.(awserr.Error)
	if !ok {
		return false
	}
	return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
}
