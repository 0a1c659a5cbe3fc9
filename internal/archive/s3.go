package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/edvin/bookwell/internal/model"
)

// ReportArchiver stores daily billing reports as JSON objects in an
// S3-compatible bucket, one object per run, keyed by run date.
type ReportArchiver struct {
	logger zerolog.Logger
	client *s3.Client
	bucket string
}

// NewReportArchiver creates an archiver for the given bucket. Endpoint may
// point at any S3-compatible store; path-style addressing is used so
// MinIO-style endpoints work without DNS tricks.
func NewReportArchiver(logger zerolog.Logger, bucket, endpoint, region, accessKey, secretKey string) *ReportArchiver {
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
	}

	return &ReportArchiver{
		logger: logger.With().Str("component", "report-archiver").Logger(),
		client: s3.New(opts),
		bucket: bucket,
	}
}

// Store writes the report under reports/YYYY/MM/DD/billing-<timestamp>.json
// and returns the object key.
func (a *ReportArchiver) Store(ctx context.Context, report *model.BillingReport) (string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal billing report: %w", err)
	}

	key := fmt.Sprintf("reports/%s/billing-%s.json",
		report.StartedAt.UTC().Format("2006/01/02"),
		report.StartedAt.UTC().Format("150405"),
	)

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put billing report %s: %w", key, err)
	}

	a.logger.Info().Str("bucket", a.bucket).Str("key", key).Msg("billing report archived")
	return key, nil
}
