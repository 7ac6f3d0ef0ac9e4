package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by Archiver.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver copies escalation records with media to S3 so attachments
// remain reviewable after the gateway's media URLs expire. If bucket is
// empty, all operations are no-ops.
type Archiver struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(s3Client S3API, bucket string, logger *logging.Logger) *Archiver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Archiver{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured (bucket is set).
func (a *Archiver) Enabled() bool {
	return a != nil && a.bucket != "" && a.s3Client != nil
}

// Archive writes the escalation record as JSON to S3.
func (a *Archiver) Archive(ctx context.Context, esc *Escalation) error {
	if !a.Enabled() || esc == nil {
		return nil
	}

	data, err := json.Marshal(esc)
	if err != nil {
		return fmt.Errorf("escalation: marshal for archive: %w", err)
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("escalations/v1/by-date/%d/%02d/%02d/%s.json",
		now.Year(), now.Month(), now.Day(), esc.ID)

	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("escalation: s3 put %s: %w", key, err)
	}

	a.logger.Info("archived escalation to S3", "escalation_id", esc.ID, "s3_key", key)
	return nil
}
