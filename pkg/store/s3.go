package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xhad/bizintel/internal/models"
)

type S3Config struct {
	Endpoint        string // MinIO or other S3-compatible endpoint
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	Logger          *zap.Logger
}

// ObjectAPI is the subset of the S3 client the store needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps analyses as JSON objects under <prefix>/<request_id>.json.
type S3Store struct {
	client ObjectAPI
	config S3Config
	logger *zap.Logger
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, eris.New("S3 bucket name is required")
	}
	if cfg.Region == "" {
		return nil, eris.New("S3 region is required")
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to load AWS config")
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StoreWithClient(client, cfg), nil
}

func NewS3StoreWithClient(client ObjectAPI, cfg S3Config) *S3Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "analyses"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &S3Store{client: client, config: cfg, logger: cfg.Logger}
}

func (s *S3Store) Key(requestID string) string {
	return path.Join(s.config.Prefix, requestID+".json")
}

func (s *S3Store) Save(ctx context.Context, out *models.AnalysisOutput) error {
	data, err := json.Marshal(out)
	if err != nil {
		return eris.Wrap(err, "failed to encode analysis")
	}

	key := s.Key(out.RequestID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return eris.Wrap(err, "failed to upload analysis to S3")
	}

	s.logger.Info("saved analysis", zap.String("request_id", out.RequestID), zap.String("key", key))
	return nil
}

func (s *S3Store) Load(ctx context.Context, requestID string) (*models.AnalysisOutput, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.Key(requestID)),
	})
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, eris.Wrap(ErrNotFound, requestID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to get analysis from S3")
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, eris.Wrap(err, "failed to read analysis from S3")
	}

	var out models.AnalysisOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "failed to decode analysis")
	}
	return &out, nil
}
