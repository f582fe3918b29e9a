// Package storage archives ingestion run reports in an S3-compatible bucket
// such as DigitalOcean Spaces.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	pkgerrors "github.com/pkg/errors"

	"github.com/nijaru/yt-catalog/errors"
	"github.com/nijaru/yt-catalog/models"
)

type SpacesConfig struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
}

// objectAPI is the subset of *s3.Client used here.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type SpacesClient struct {
	client objectAPI
	bucket string
}

func NewSpacesClient(ctx context.Context, cfg SpacesConfig) (*SpacesClient, error) {
	const op = "storage.NewSpacesClient"

	if cfg.Bucket == "" {
		return nil, errors.Configuration(op, nil, "spaces bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.Configuration(op, nil, "spaces credentials are required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, errors.Configuration(op, err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &SpacesClient{client: client, bucket: cfg.Bucket}, nil
}

// ReportKey is the object key of a run report: reports/yyyy/mm/dd/<id>.json,
// dated by the run's start time in UTC.
func ReportKey(report *models.RunReport) string {
	return fmt.Sprintf("reports/%s/%s.json", report.StartedAt.UTC().Format("2006/01/02"), report.ID)
}

func (s *SpacesClient) SaveRunReport(ctx context.Context, report *models.RunReport) error {
	const op = "SpacesClient.SaveRunReport"

	if report == nil || strings.TrimSpace(report.ID) == "" {
		return errors.InvalidInput(op, nil, "run report must have an id")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return errors.Internal(op, err, "failed to marshal run report")
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(ReportKey(report)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.ExternalAPI(op, pkgerrors.Wrap(err, "put object"), "failed to save run report to Spaces")
	}

	return nil
}

// GetRunReport loads a report previously stored under key.
func (s *SpacesClient) GetRunReport(ctx context.Context, key string) (*models.RunReport, error) {
	const op = "SpacesClient.GetRunReport"

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.ExternalAPI(op, pkgerrors.Wrap(err, "get object"), "failed to get run report from Spaces")
	}
	defer result.Body.Close()

	var report models.RunReport
	if err := json.NewDecoder(result.Body).Decode(&report); err != nil {
		return nil, errors.Internal(op, err, "failed to decode run report")
	}

	return &report, nil
}
