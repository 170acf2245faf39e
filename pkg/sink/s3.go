package sink

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
)

// s3Putter is the slice of the S3 client the sink needs.
type s3Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads files as objects keyed under a prefix.
type S3Sink struct {
	name   string
	bucket string
	prefix string
	client s3Putter
}

// S3Options configures the S3 client for one destination.
type S3Options struct {
	Bucket string
	Prefix string
	Region string

	// Endpoint overrides the AWS endpoint for S3-compatible stores; path
	// style addressing is enabled when it is set.
	Endpoint string
}

// NewS3Sink builds the client from the ambient AWS configuration.
func NewS3Sink(ctx context.Context, name string, opts S3Options) (*S3Sink, error) {
	const op = "sink.NewS3Sink"

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = &opts.Endpoint
			o.UsePathStyle = true
		}
	})
	return NewS3SinkWithClient(name, opts.Bucket, opts.Prefix, client), nil
}

// NewS3SinkWithClient wraps an existing client; used by tests.
func NewS3SinkWithClient(name, bucket, prefix string, client s3Putter) *S3Sink {
	return &S3Sink{name: name, bucket: bucket, prefix: prefix, client: client}
}

func (s *S3Sink) Name() string { return s.name }

func (s *S3Sink) Kind() event.DestinationKind { return event.DestinationS3 }

// Write uploads the content as prefix/targetPath.
func (s *S3Sink) Write(ctx context.Context, _ event.FileEvent, plan event.DestinationPlan, content io.Reader) (int64, error) {
	const op = "S3Sink.Write"

	data, err := io.ReadAll(content)
	if err != nil {
		return 0, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}

	key := path.Join(s.prefix, plan.TargetPath)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return 0, fherrors.Wrap(fherrors.KindNetwork, fherrors.CodeIO, op, err)
	}
	return int64(len(data)), nil
}
