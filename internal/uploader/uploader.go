package uploader

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader archives completed transcript files to S3.
type Uploader struct {
	s3Client    *s3.Client
	bucket      string
	deleteAfter bool
	maxRetries  int
}

// New creates an uploader using the default AWS credential chain.
func New(ctx context.Context, bucket, region string, deleteAfter bool, maxRetries int) (*Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &Uploader{
		s3Client:    s3.NewFromConfig(cfg),
		bucket:      bucket,
		deleteAfter: deleteAfter,
		maxRetries:  maxRetries,
	}, nil
}

// NewWithStaticCredentials creates an uploader with an explicit key pair.
func NewWithStaticCredentials(ctx context.Context, bucket, region, accessKeyID, secretAccessKey string, deleteAfter bool, maxRetries int) (*Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &Uploader{
		s3Client:    s3.NewFromConfig(cfg),
		bucket:      bucket,
		deleteAfter: deleteAfter,
		maxRetries:  maxRetries,
	}, nil
}

// ScanExisting uploads transcripts left over from a previous run. The
// recorder's currently open files are not in the directory yet, so
// everything found is safe to archive.
func (u *Uploader) ScanExisting(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scan transcript directory: %w", err)
	}

	var found int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		found++
		go u.uploadWithRetry(ctx, filepath.Join(dir, entry.Name()))
	}

	if found > 0 {
		log.Printf("uploader: found %d leftover transcript(s)", found)
	}
	return nil
}

// Start consumes completed transcript paths until ctx is cancelled.
func (u *Uploader) Start(ctx context.Context, files <-chan string) error {
	for {
		select {
		case path := <-files:
			go u.uploadWithRetry(ctx, path)
		case <-ctx.Done():
			log.Println("uploader: shutting down")
			return ctx.Err()
		}
	}
}

func (u *Uploader) uploadWithRetry(ctx context.Context, path string) {
	filename := filepath.Base(path)
	key, err := archiveKey(filename)
	if err != nil {
		log.Printf("uploader: skipping %s: %v", filename, err)
		return
	}

	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		err := u.put(ctx, path, key)
		if err == nil {
			log.Printf("uploader: archived s3://%s/%s", u.bucket, key)
			if u.deleteAfter {
				if err := os.Remove(path); err != nil {
					log.Printf("uploader: remove %s: %v", path, err)
				}
			}
			return
		}

		if attempt < u.maxRetries {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("uploader: attempt %d/%d for %s failed: %v (retry in %v)",
				attempt+1, u.maxRetries, filename, err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
		}
	}
	log.Printf("uploader: giving up on %s after %d attempts", filename, u.maxRetries)
}

func (u *Uploader) put(ctx context.Context, path, key string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer file.Close()

	_, err = u.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// archiveKey derives the S3 key from a transcript filename.
// Input:  twitch_20260115_143045_001.jsonl
// Output: transcripts/2026/01/15/twitch/twitch_20260115_143045_001.jsonl
func archiveKey(filename string) (string, error) {
	name := strings.TrimSuffix(filename, ".jsonl")
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return "", fmt.Errorf("unexpected transcript name %q", filename)
	}

	platform := parts[0]
	day, err := time.Parse("20060102", parts[1])
	if err != nil {
		return "", fmt.Errorf("parse transcript date: %w", err)
	}

	return fmt.Sprintf("transcripts/%04d/%02d/%02d/%s/%s",
		day.Year(), day.Month(), day.Day(), platform, filename), nil
}
