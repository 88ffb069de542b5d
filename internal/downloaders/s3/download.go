package s3

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

const partSize = 8 * 1024 * 1024

func (d *S3Downloader) Download(ctx context.Context, job *utils.Job) error {
	bucket := job.Metadata["bucket"].(string)
	key := job.Metadata["key"].(string)
	size, _ := job.Metadata["size"].(int64)
	client, err := getS3Client(ctx, clientOptionsFor(job))
	if err != nil {
		return fmt.Errorf("error creating S3 client: %v", err)
	}
	log.Info().Str("op", "s3/download").Msgf("Starting object download for s3://%s/%s", bucket, key)
	written, err := performS3Download(ctx, client, bucket, key, job.OutputPath, size, job.ProgressFunc)
	if err != nil {
		utils.ReleaseOutputPath(job.OutputPath)
		return err
	}
	job.Metadata["totalDownloaded"] = written
	return nil
}

func performS3Download(ctx context.Context, client *s3.Client, bucket, key, outputPath string, size int64, progress func(done, total int64)) (int64, error) {
	tempDir := utils.ScratchRoot(outputPath)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return 0, fmt.Errorf("error creating temp directory: %v", err)
	}
	defer os.Remove(tempDir) // only succeeds once empty
	partPath := filepath.Join(tempDir, filepath.Base(outputPath)+".part")
	file, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("error creating file: %v", err)
	}
	writer := &progressWriterAt{file: file, total: size, progress: progress}

	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = partSize
	})
	written, err := downloader.Download(ctx, writer, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partPath)
		return 0, fmt.Errorf("error downloading object: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		os.Remove(partPath)
		return 0, fmt.Errorf("error creating output directory: %v", err)
	}
	if err := os.Rename(partPath, outputPath); err != nil {
		os.Remove(partPath)
		return 0, fmt.Errorf("error renaming (finalizing) output file: %v", err)
	}
	log.Info().Str("op", "s3/download").Msgf("Downloaded %s to %s", utils.FormatBytes(uint64(written)), outputPath)
	return written, nil
}
