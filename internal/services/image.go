package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const maxImageBytes = 5 << 20 // 5 MB

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageService issues pre-signed S3 upload URLs for post images
type ImageService struct {
	s3Client *s3.Client
	bucket   string
	region   string
	endpoint string
}

// NewImageService creates a new image service
func NewImageService(awsRegion, s3Bucket, accessKey, secretKey, endpoint string) (*ImageService, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(awsRegion),
	}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &ImageService{
		s3Client: s3Client,
		bucket:   s3Bucket,
		region:   awsRegion,
		endpoint: endpoint,
	}, nil
}

// UploadRequest declares the image a client wants to upload
type UploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// UploadGrant is a pre-signed upload plus the attachment references to
// put on the post afterwards
type UploadGrant struct {
	UploadURL string `json:"upload_url"`
	ImageURL  string `json:"image_url"`
	ImageKey  string `json:"image_key"`
	ExpiresIn int    `json:"expires_in"`
}

// GrantUpload validates the declared image and returns a pre-signed PUT
// URL. A single request/response exchange; there is no retry or
// resumable upload.
func (s *ImageService) GrantUpload(ctx context.Context, userID string, req UploadRequest) (*UploadGrant, error) {
	ext, ok := allowedImageTypes[strings.ToLower(req.ContentType)]
	if !ok {
		return nil, &ValidationError{Field: "content_type", Message: "Only JPEG, PNG, GIF, or WebP images are allowed"}
	}
	if req.Size <= 0 || req.Size > maxImageBytes {
		return nil, &ValidationError{Field: "size", Message: "Image must be 5 MB or smaller"}
	}
	if e := strings.ToLower(path.Ext(req.Filename)); e == ".jpeg" {
		ext = ".jpeg"
	}

	key := fmt.Sprintf("posts/%s/%s%s", userID, uuid.New().String(), ext)

	presignClient := s3.NewPresignClient(s.s3Client)
	request, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(req.ContentType),
		ContentLength: aws.Int64(req.Size),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = 5 * time.Minute
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	return &UploadGrant{
		UploadURL: request.URL,
		ImageURL:  s.publicURL(key),
		ImageKey:  key,
		ExpiresIn: 300,
	}, nil
}

func (s *ImageService) publicURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.endpoint, "/"), s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
