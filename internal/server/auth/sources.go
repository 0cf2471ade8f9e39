package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/authhub/internal/logging"
)

const pemSuffix = ".pem"

// KeySource loads signing keys from some backing store.
type KeySource interface {
	Load(ctx context.Context) ([]SigningKey, error)
}

// DirSource reads every <kid>.pem file in Dir.
type DirSource struct {
	Dir string
}

func (d DirSource) Load(ctx context.Context) ([]SigningKey, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("read key dir %s: %w", d.Dir, err)
	}

	var keys []SigningKey
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), pemSuffix) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(d.Dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read key %s: %w", e.Name(), err)
		}
		k, err := ParsePrivateKeyPEM(b)
		if err != nil {
			return nil, fmt.Errorf("parse key %s: %w", e.Name(), err)
		}
		keys = append(keys, SigningKey{KID: strings.TrimSuffix(e.Name(), pemSuffix), PrivateKey: k})
	}
	return keys, nil
}

// S3API is the subset of *s3.Client used by S3Source.
type S3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads every <prefix><kid>.pem object in Bucket.
type S3Source struct {
	Client S3API
	Bucket string
	Prefix string
}

func (s S3Source) Load(ctx context.Context) ([]SigningKey, error) {
	var keys []SigningKey

	p := s3.NewListObjectsV2Paginator(s.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.Bucket, s.Prefix, err)
		}
		for _, obj := range page.Contents {
			name := aws.ToString(obj.Key)
			if !strings.HasSuffix(name, pemSuffix) {
				continue
			}
			k, err := s.fetch(ctx, name)
			if err != nil {
				return nil, err
			}
			keys = append(keys, SigningKey{KID: strings.TrimSuffix(path.Base(name), pemSuffix), PrivateKey: k})
		}
	}
	return keys, nil
}

func (s S3Source) fetch(ctx context.Context, key string) (*rsa.PrivateKey, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.Bucket, key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.Bucket, key, err)
	}
	k, err := ParsePrivateKeyPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse s3://%s/%s: %w", s.Bucket, key, err)
	}
	return k, nil
}

// S3Options configures NewS3Client.
type S3Options struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// NewS3Client builds an S3 client. Static credentials are used when given,
// otherwise the default AWS credential chain. A custom endpoint switches to
// path-style addressing for S3-compatible stores.
func NewS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	}), nil
}

// LoadKeySet gathers keys from every source and builds the KeySet. With no
// keys at all it generates an ephemeral key, which does not survive restarts
// and is not shared between replicas.
func LoadKeySet(ctx context.Context, log logging.Logger, activeKID string, sources ...KeySource) (*KeySet, error) {
	var all []SigningKey
	for _, src := range sources {
		keys, err := src.Load(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, keys...)
	}

	if len(all) == 0 {
		k, err := GenerateKey(2048)
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral key: %w", err)
		}
		all = []SigningKey{{KID: "ephemeral", PrivateKey: k}}
		activeKID = ""
		log.Warn(ctx, "no signing keys configured, using an ephemeral key")
	}

	ks, err := NewKeySet(all, activeKID)
	if err != nil {
		return nil, err
	}
	active, _ := ks.Active()
	log.Info(ctx, "signing keys loaded", "kids", ks.KIDs(), "active_kid", active)
	return ks, nil
}
