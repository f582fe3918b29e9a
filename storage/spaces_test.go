package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-catalog/errors"
	"github.com/nijaru/yt-catalog/models"
)

// memoryBucket stores objects in a map keyed by object key.
type memoryBucket struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (b *memoryBucket) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if b.err != nil {
		return nil, b.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	b.objects[key] = data
	b.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (b *memoryBucket) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := b.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, pkgerrors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func sampleReport() *models.RunReport {
	start := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)
	return &models.RunReport{
		ID:          "run-1",
		StartedAt:   start,
		FinishedAt:  start.Add(2 * time.Minute),
		InitialSeed: true,
		SeedSaved:   4,
		Outcomes: map[string]models.GenreOutcome{
			"drama": {Genre: "drama", Before: 0, Count: 12, Minimum: 12, Fetched: 12, Reached: true},
		},
	}
}

func TestReportKey(t *testing.T) {
	report := sampleReport()
	assert.Equal(t, "reports/2024/03/09/run-1.json", ReportKey(report))

	report.StartedAt = time.Date(2024, 3, 10, 1, 0, 0, 0, time.FixedZone("WAT", 3600))
	assert.Equal(t, "reports/2024/03/10/run-1.json", ReportKey(report))
}

func TestSaveAndGetRunReport(t *testing.T) {
	bucket := newMemoryBucket()
	client := &SpacesClient{client: bucket, bucket: "catalog"}
	report := sampleReport()

	require.NoError(t, client.SaveRunReport(context.Background(), report))
	assert.Equal(t, "application/json", bucket.types["reports/2024/03/09/run-1.json"])

	got, err := client.GetRunReport(context.Background(), "reports/2024/03/09/run-1.json")
	require.NoError(t, err)
	assert.Equal(t, report.ID, got.ID)
	assert.Equal(t, report.SeedSaved, got.SeedSaved)
	assert.Equal(t, report.Outcomes, got.Outcomes)
	assert.True(t, report.StartedAt.Equal(got.StartedAt))
}

func TestSaveRunReportErrors(t *testing.T) {
	bucket := newMemoryBucket()
	client := &SpacesClient{client: bucket, bucket: "catalog"}

	err := client.SaveRunReport(context.Background(), &models.RunReport{})
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))

	bucket.err = pkgerrors.New("access denied")
	err = client.SaveRunReport(context.Background(), sampleReport())
	require.Error(t, err)
	assert.True(t, errors.IsExternalAPI(err))
	assert.Contains(t, err.Error(), "access denied")
}

func TestGetRunReportMissing(t *testing.T) {
	client := &SpacesClient{client: newMemoryBucket(), bucket: "catalog"}
	_, err := client.GetRunReport(context.Background(), "reports/none.json")
	assert.True(t, errors.IsExternalAPI(err))
}

func TestNewSpacesClientRequiresBucketAndCredentials(t *testing.T) {
	_, err := NewSpacesClient(context.Background(), SpacesConfig{AccessKey: "a", SecretKey: "b"})
	assert.True(t, errors.IsConfiguration(err))

	_, err = NewSpacesClient(context.Background(), SpacesConfig{Bucket: "x"})
	assert.True(t, errors.IsConfiguration(err))

	client, err := NewSpacesClient(context.Background(), SpacesConfig{
		AccessKey: "a", SecretKey: "b", Bucket: "x", Region: "fra1", Endpoint: "https://fra1.digitaloceanspaces.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "x", client.bucket)
}
