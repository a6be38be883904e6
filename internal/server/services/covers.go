package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bloghub/internal/common"
	"github.com/dmitrijs2005/bloghub/internal/logging"
	sc "github.com/dmitrijs2005/bloghub/internal/server/config"
	"github.com/dmitrijs2005/bloghub/internal/server/models"
	"github.com/dmitrijs2005/bloghub/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// presignExpiry is how long a presigned cover URL stays valid.
const presignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Invalidator drops cached article listings.
type Invalidator interface {
	InvalidateAll(ctx context.Context) int64
}

// CoverService hands out presigned object-storage URLs for article cover
// images. Uploads go straight from the client to the bucket.
type CoverService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	invalidator Invalidator
	config      *sc.Config
	log         logging.Logger
	now         func() time.Time
}

func NewCoverService(db *sql.DB, repomanager repomanager.RepositoryManager, inv Invalidator, config *sc.Config, log logging.Logger) *CoverService {
	return &CoverService{
		db:          db,
		repomanager: repomanager,
		invalidator: inv,
		config:      config,
		log:         log.With("module", "covers"),
		now:         time.Now,
	}
}

// CoverStorageKey returns a fresh object key partitioned by date.
func CoverStorageKey(d time.Time) string {
	return fmt.Sprintf("articles/%04d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *CoverService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// UploadURL issues a presigned PUT for a new cover of the article and records
// its key. Only the author may replace the cover.
func (s *CoverService) UploadURL(ctx context.Context, articleID, requesterID string) (*models.CoverUpload, error) {
	repo := s.repomanager.Articles(s.db)

	a, err := repo.FindByID(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("error loading article: %w", err)
	}
	if a.Author.ID != requesterID {
		return nil, common.ErrorForbidden
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	key := CoverStorageKey(s.now().UTC())

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return nil, err
	}

	if err := repo.SetCoverKey(ctx, articleID, key); err != nil {
		return nil, fmt.Errorf("error saving cover key: %w", err)
	}

	s.log.Info(ctx, "cover upload issued", "article_id", articleID, "key", key)
	s.invalidator.InvalidateAll(ctx)
	return &models.CoverUpload{Key: key, URL: req.URL}, nil
}

// DownloadURL issues a presigned GET for the article's cover.
func (s *CoverService) DownloadURL(ctx context.Context, articleID string) (string, error) {
	a, err := s.repomanager.Articles(s.db).FindByID(ctx, articleID)
	if err != nil {
		return "", fmt.Errorf("error loading article: %w", err)
	}
	if a.CoverKey == "" {
		return "", common.ErrorNotFound
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	key := a.CoverKey

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
