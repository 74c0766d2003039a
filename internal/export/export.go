// Package export writes segment membership as CSV, locally or to S3,
// for downstream marketing tools.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/rfm-segmentation/internal/domain"
	"github.com/ignite/rfm-segmentation/internal/pkg/logger"
)

// WriteSegmentCSV streams assignments as CSV. Column order matches what
// the campaign tooling ingests.
func WriteSegmentCSV(w io.Writer, assignments []domain.ClusterAssignment) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"customer_id", "calc_date", "segment_name", "cluster_id", "recency_days", "frequency", "monetary", "distance"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, a := range assignments {
		rec := []string{
			a.CustomerID,
			a.CalcDate.UTC().Format("2006-01-02"),
			string(a.SegmentName),
			strconv.Itoa(a.ClusterID),
			strconv.Itoa(a.Score.RecencyDays),
			strconv.Itoa(a.Score.Frequency),
			strconv.FormatFloat(a.Score.Monetary, 'f', 2, 64),
			strconv.FormatFloat(a.Score.Distance, 'f', 6, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %s: %w", a.CustomerID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// S3Uploader ships exported CSVs to an S3 bucket.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Uploader creates an uploader using the default credential chain,
// or a named profile when one is configured.
func NewS3Uploader(ctx context.Context, bucket, prefix, region, profile string) (*S3Uploader, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Uploader{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// UploadSegment writes one segment's assignments to
// <prefix>/<calc_date>/<segment>.csv and returns the object key.
func (u *S3Uploader) UploadSegment(ctx context.Context, calcDate time.Time, segment domain.Segment, assignments []domain.ClusterAssignment) (string, error) {
	var buf bytes.Buffer
	if err := WriteSegmentCSV(&buf, assignments); err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s/%s.csv", u.prefix, calcDate.UTC().Format("2006-01-02"), SegmentSlug(segment))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	logger.Info("Segment export uploaded",
		"bucket", u.bucket,
		"key", key,
		"rows", len(assignments))
	return key, nil
}

// SegmentSlug lowercases a segment name and replaces spaces with dashes,
// for filenames and URL paths ("Loyal Customers" -> "loyal-customers").
func SegmentSlug(s domain.Segment) string {
	out := make([]rune, 0, len(s))
	for _, r := range string(s) {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ':
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
