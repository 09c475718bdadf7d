package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "fareflow/config"
	"fareflow/logger"
)

// objectPutter is the part of the S3 client the exporter needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter uploads the outcomes of a transaction as one parquet object.
type S3Exporter struct {
	client      objectPutter
	bucket      string
	prefix      string
	compression string
	version     string
	log         *logger.Log
}

// NewS3Exporter builds the S3 client from cfg. Static credentials are used
// when both keys are set, the default AWS chain otherwise.
func NewS3Exporter(ctx context.Context, cfg *appconfig.Config) (*S3Exporter, error) {
	s3cfg := cfg.Storage.S3
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(s3cfg.Region),
	}
	if s3cfg.AccessKeyID != "" && s3cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3cfg.AccessKeyID, s3cfg.SecretAccessKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
		}
		o.UsePathStyle = s3cfg.PathStyle
	})

	e := newS3Exporter(client, cfg)
	e.log.WithComponent("s3_exporter").WithFields(logger.Fields{
		"bucket":     s3cfg.Bucket,
		"region":     s3cfg.Region,
		"endpoint":   s3cfg.Endpoint,
		"path_style": s3cfg.PathStyle,
	}).Info("s3 exporter initialized")
	return e, nil
}

func newS3Exporter(client objectPutter, cfg *appconfig.Config) *S3Exporter {
	return &S3Exporter{
		client:      client,
		bucket:      cfg.Storage.S3.Bucket,
		prefix:      cfg.Storage.S3.Prefix,
		compression: cfg.Storage.S3.Compression,
		version:     cfg.Fareflow.Version,
		log:         logger.GetLogger(),
	}
}

// ObjectKey is prefix/date=YYYY-MM-DD/<trx>_<uuid>.parquet.
func (e *S3Exporter) ObjectKey(trxID string, at time.Time) string {
	name := fmt.Sprintf("%s_%s.parquet", trxID, uuid.NewString())
	return path.Join(e.prefix, "date="+at.UTC().Format("2006-01-02"), name)
}

// Export uploads the records of outcomes and returns the object key.
func (e *S3Exporter) Export(ctx context.Context, trxID string, outcomes []MarketOutcome, at time.Time) (string, error) {
	records := Records(outcomes)
	data, err := EncodeParquet(records, e.compression)
	if err != nil {
		return "", err
	}

	key := e.ObjectKey(trxID, at)
	log := e.log.WithComponent("s3_exporter").WithFields(logger.Fields{
		"trx_id":    trxID,
		"key":       key,
		"records":   len(records),
		"data_size": len(data),
	})

	start := time.Now()
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":     "parquet",
			"compression":      e.compression,
			"fareflow-version": e.version,
		},
	})
	if err != nil {
		log.WithError(err).Warn("upload failed")
		return "", fmt.Errorf("failed to upload to S3 bucket %s: %w", e.bucket, err)
	}

	logger.LogPerformanceEntry(log, "s3_exporter", "put_object", time.Since(start), nil)
	log.Info("outcomes uploaded")
	return key, nil
}
