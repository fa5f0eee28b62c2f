package objectstore

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/diillson/leasing-bi-pipeline/internal/domain/repository"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
)

// PutObjectAPI é o subconjunto do cliente S3 usado pelo publicador.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// CallerIdentityAPI é o subconjunto do cliente STS usado para descobrir a conta.
type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// S3RepositoryImpl implementa o ObjectStoreRepository sobre um bucket S3,
// com os clientes criados sob demanda a partir do perfil configurado.
type S3RepositoryImpl struct {
	bucket  string
	profile string
	region  string

	mu        sync.Mutex
	s3Client  PutObjectAPI
	stsClient CallerIdentityAPI
}

var _ repository.ObjectStoreRepository = (*S3RepositoryImpl)(nil)

// NewS3Repository cria o publicador para o bucket configurado.
func NewS3Repository(cfg types.PublishConfig) *S3RepositoryImpl {
	return &S3RepositoryImpl{
		bucket:  cfg.Bucket,
		profile: cfg.Profile,
		region:  cfg.Region,
	}
}

// NewS3RepositoryWithClients injeta clientes já construídos (usado nos testes).
func NewS3RepositoryWithClients(bucket string, s3Client PutObjectAPI, stsClient CallerIdentityAPI) *S3RepositoryImpl {
	return &S3RepositoryImpl{bucket: bucket, s3Client: s3Client, stsClient: stsClient}
}

func (r *S3RepositoryImpl) clients(ctx context.Context) (PutObjectAPI, CallerIdentityAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.s3Client != nil && r.stsClient != nil {
		return r.s3Client, r.stsClient, nil
	}

	var opts []func(*config.LoadOptions) error
	if r.profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(r.profile))
	}
	if r.region != "" {
		opts = append(opts, config.WithRegion(r.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load AWS config for profile %q: %w", r.profile, err)
	}

	if r.s3Client == nil {
		r.s3Client = s3.NewFromConfig(cfg)
	}
	if r.stsClient == nil {
		r.stsClient = sts.NewFromConfig(cfg)
	}
	return r.s3Client, r.stsClient, nil
}

// Identity retorna o ARN do chamador, registrado no log antes de publicar.
func (r *S3RepositoryImpl) Identity(ctx context.Context) (string, error) {
	_, stsClient, err := r.clients(ctx)
	if err != nil {
		return "", err
	}
	result, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("error getting caller identity: %w", err)
	}
	return aws.ToString(result.Arn), nil
}

// Upload envia um arquivo local para s3://bucket/key.
func (r *S3RepositoryImpl) Upload(ctx context.Context, localPath, key string) (string, error) {
	if r.bucket == "" {
		return "", fmt.Errorf("publish bucket is not configured")
	}
	s3Client, _, err := r.clients(ctx)
	if err != nil {
		return "", err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer file.Close()

	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	input := &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
		Body:   file,
	}
	if ct := contentType(localPath); ct != "" {
		input.ContentType = aws.String(ct)
	}
	if _, err := s3Client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("error uploading %s to s3://%s/%s: %w", localPath, r.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", r.bucket, key), nil
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	}
	return mime.TypeByExtension(filepath.Ext(p))
}
