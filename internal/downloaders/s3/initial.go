package s3

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

type S3Downloader struct{}

func (d *S3Downloader) ValidateJob(job *utils.Job) error {
	bucket, key, err := parseS3URL(job.URL)
	if err != nil {
		return err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return fmt.Errorf("S3 URL must name a single object, got s3://%s/%s", bucket, key)
	}
	if job.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", job.Retries)
	}
	job.Metadata["bucket"] = bucket
	job.Metadata["key"] = key
	log.Info().Str("op", "s3/initial").Msgf("job validated for s3://%s/%s", bucket, key)
	return nil
}

func (d *S3Downloader) BuildJob(job *utils.Job) error {
	bucket := job.Metadata["bucket"].(string)
	key := job.Metadata["key"].(string)
	client, err := getS3Client(context.Background(), clientOptionsFor(job))
	if err != nil {
		return fmt.Errorf("error creating S3 client: %v", err)
	}
	size, err := getS3ObjectSize(context.Background(), client, bucket, key)
	if err != nil {
		return fmt.Errorf("error getting S3 object info: %v", err)
	}
	job.Metadata["size"] = size
	log.Debug().Str("op", "s3/initial").Msgf("Object s3://%s/%s is %d bytes", bucket, key, size)

	if job.OutputPath == "" {
		job.OutputPath = path.Base(key)
	}
	reserved, err := utils.ReserveOutputPath(utils.EnsureExtension(job.OutputPath, ".mp4"))
	if err != nil {
		return fmt.Errorf("error reserving output path: %v", err)
	}
	job.OutputPath = reserved
	log.Info().Str("op", "s3/initial").Msgf("job built for s3://%s/%s", bucket, key)
	return nil
}

// parseS3URL accepts both s3://bucket/key and bucket/key.
func parseS3URL(url string) (string, string, error) {
	url = strings.TrimPrefix(url, "s3://")
	bucket, key, _ := strings.Cut(url, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid S3 URL format")
	}
	return bucket, key, nil
}

func clientOptionsFor(job *utils.Job) clientOptions {
	profile, _ := job.Metadata["profile"].(string)
	endpoint, _ := job.Metadata["endpoint"].(string)
	return clientOptions{
		Profile:    profile,
		Endpoint:   endpoint,
		MaxRetries: job.Retries,
	}
}
