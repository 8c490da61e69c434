// Package blob stores exported resume documents in an S3-compatible bucket
// and hands back publicly addressable URLs.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config locates the bucket and its credentials. Endpoint and PublicBaseURL
// support S3-compatible providers; with an empty PublicBaseURL the standard
// AWS URL form is used.
type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	PublicBaseURL   string
}

// uploader is the S3 surface the store needs; satisfied by *s3.Client.
type uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads documents under a fixed pdfs/ prefix.
type Store struct {
	client uploader
	cfg    Config
	now    func() time.Time
}

// New builds a Store from cfg.
func New(cfg Config) *Store {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")

	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	options := []func(*s3.Options){
		func(o *s3.Options) {
			o.Credentials = creds
			o.Region = region
		},
	}
	if cfg.Endpoint != "" {
		options = append(options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &Store{
		client: s3.New(s3.Options{}, options...),
		cfg:    cfg,
		now:    time.Now,
	}
}

// UploadPDF stores one document under pdfs/ with a timestamped object name
// and returns its public URL. The timestamp prefix keeps repeated exports of
// the same resume from overwriting each other.
func (s *Store) UploadPDF(ctx context.Context, fileName string, data []byte, contentType string) (string, error) {
	if fileName == "" {
		fileName = "resume.pdf"
	}
	if contentType == "" {
		contentType = "application/pdf"
	}
	key := fmt.Sprintf("pdfs/%d_%s", s.now().UnixMilli(), sanitize(fileName))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("blob: upload %s: %w", key, err)
	}
	return s.publicURL(key), nil
}

func (s *Store) publicURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

// sanitize strips path separators and percent-escapes the rest so the object
// name survives as a single URL path segment.
func sanitize(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	return url.PathEscape(name)
}
