package blobstore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/karenhirayama/filevault/internal/common"
	sc "github.com/karenhirayama/filevault/internal/server/config"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		return c.DeleteObject(ctx, in, optFns...)
	}
)

// S3Client stores objects in an S3-compatible backend (AWS S3 or MinIO).
type S3Client struct {
	config *sc.Config
}

// NewS3Client constructs an S3-backed blob store client from server config.
func NewS3Client(cfg *sc.Config) *S3Client {
	return &S3Client{config: cfg}
}

// storageKey builds a date-bucketed unique object key. The classification
// selects the top-level prefix so binary and transformable objects live in
// distinct namespaces.
func storageKey(class Classification) string {
	prefix := "media"
	if class == Binary {
		prefix = "raw"
	}
	d := time.Now()
	return fmt.Sprintf("%s/%d/%d/%d/%v", prefix, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (c *S3Client) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.config.S3RootUser,     // MINIO_ROOT_USER
			c.config.S3RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, nil
}

// locator builds the stable public URL persisted as the file's durable
// content reference (path-style: base/bucket/key).
func (c *S3Client) locator(key string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.config.S3PublicBaseURL, "/"), c.config.S3Bucket, key)
}

// formatOf extracts the short format name from a MIME type
// ("image/png" -> "png").
func formatOf(contentType string) string {
	if i := strings.IndexByte(contentType, '/'); i >= 0 {
		return contentType[i+1:]
	}
	return contentType
}

func (c *S3Client) Put(ctx context.Context, localPath, contentType string, class Classification) (*UploadResult, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRemote, err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open staged file: %v", common.ErrRemote, err)
	}
	defer f.Close()

	key := storageKey(class)

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.S3Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"classification": string(class),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: put object: %v", common.ErrRemote, err)
	}

	return &UploadResult{
		Locator:        c.locator(key),
		RemoteID:       key,
		Format:         formatOf(contentType),
		Classification: class,
	}, nil
}

// Delete removes the object by key. S3-compatible backends delete binary
// and transformable objects identically, so the hint only ends up in logs.
func (c *S3Client) Delete(ctx context.Context, remoteID string, class Classification) error {
	client, err := c.getClient(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrRemote, err)
	}

	_, err = deleteObject(client, ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.config.S3Bucket),
		Key:    aws.String(remoteID),
	})
	if err != nil {
		return fmt.Errorf("%w: delete object: %v", common.ErrRemote, err)
	}

	return nil
}
