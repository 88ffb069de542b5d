package s3

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type clientOptions struct {
	Profile string
	// Endpoint targets S3-compatible stores (MinIO, R2, ...) with path-style addressing.
	Endpoint   string
	MaxRetries int
}

func getS3Client(ctx context.Context, opts clientOptions) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRetryMode(aws.RetryModeAdaptive),
		config.WithRetryMaxAttempts(opts.MaxRetries + 1),
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.Region == "" {
			o.Region = "us-east-1"
		}
	}), nil
}

func getS3ObjectSize(ctx context.Context, client *s3.Client, bucket, key string) (int64, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("error accessing S3 object: %v", err)
	}
	if head.ContentLength == nil {
		return 0, nil
	}
	return *head.ContentLength, nil
}

// progressWriterAt counts bytes landed by the transfer manager's concurrent part writers.
type progressWriterAt struct {
	file     *os.File
	total    int64
	written  atomic.Int64
	progress func(done, total int64)
}

func (w *progressWriterAt) WriteAt(p []byte, off int64) (int, error) {
	n, err := w.file.WriteAt(p, off)
	if n > 0 {
		done := w.written.Add(int64(n))
		if w.progress != nil {
			w.progress(done, w.total)
		}
	}
	return n, err
}
