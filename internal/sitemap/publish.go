package sitemap

import (
	"bytes"
	"context"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/keithlinneman/newsfront/internal/cachepolicy"
	"github.com/keithlinneman/newsfront/internal/cryptoutil"
	"github.com/keithlinneman/newsfront/internal/log"
	"github.com/keithlinneman/newsfront/internal/xerrors"
)

// PutObjectAPI is the subset of *s3.Client used by the publisher.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type PublisherOptions struct {
	Bucket string
	// Prefix is prepended to every key, without a trailing slash.
	Prefix string
	Logger log.Logger

	// Client overrides the S3 client built from AWSConfig.
	Client PutObjectAPI
	// AWS config (uses default if nil)
	AWSConfig *aws.Config
}

// S3Publisher uploads generated sitemaps so a CDN can serve them directly.
type S3Publisher struct {
	opts   PublisherOptions
	client PutObjectAPI
	logger log.Logger
}

func NewS3Publisher(ctx context.Context, opts PublisherOptions) (*S3Publisher, error) {
	if opts.Bucket == "" {
		return nil, xerrors.New("Bucket is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	client := opts.Client
	if client == nil {
		var awsCfg aws.Config
		var err error
		if opts.AWSConfig != nil {
			awsCfg = *opts.AWSConfig
		} else {
			awsCfg, err = config.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, xerrors.Wrap(err, "load AWS config")
			}
		}
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Publisher{opts: opts, client: client, logger: opts.Logger}, nil
}

func (p *S3Publisher) key(name string) string {
	if p.opts.Prefix != "" {
		return path.Join(p.opts.Prefix, name)
	}
	return name
}

// Publish uploads doc under name and returns the full object key.
func (p *S3Publisher) Publish(ctx context.Context, name string, doc []byte) (string, error) {
	if name == "" {
		return "", xerrors.New("object name is required")
	}
	key := p.key(name)
	digest := cryptoutil.SHA256Hex(doc)

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(p.opts.Bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(doc),
		ContentLength:     aws.Int64(int64(len(doc))),
		ContentType:       aws.String("application/xml"),
		CacheControl:      aws.String(cachepolicy.HeaderFor(cachepolicy.ClassAPI)),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		Metadata:          map[string]string{"sha256": digest},
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "put S3 object s3://%s/%s", p.opts.Bucket, key)
	}

	p.logger.Info(ctx, "published sitemap",
		"bucket", p.opts.Bucket,
		"key", key,
		"bytes", len(doc),
		"sha256", digest,
	)
	return key, nil
}
