package store

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrSnapshotNotFound is returned by persisters when no snapshot exists
// under the requested key.
var ErrSnapshotNotFound = stderrors.New("weave: snapshot not found")

// Persister stores state snapshots.
type Persister interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}

// FilePersister stores snapshots as files in a directory.
type FilePersister struct {
	dir string
}

// NewFilePersister creates the directory if needed.
func NewFilePersister(dir string) (*FilePersister, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FilePersister{dir: dir}, nil
}

// Save writes data atomically by renaming a temp file over the target.
func (p *FilePersister) Save(_ context.Context, key string, data []byte) error {
	target := filepath.Join(p.dir, filepath.Base(key))
	f, err := os.CreateTemp(p.dir, ".snapshot-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Load reads the snapshot stored under key.
func (p *FilePersister) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(p.dir, filepath.Base(key)))
	if os.IsNotExist(err) {
		return nil, ErrSnapshotNotFound
	}
	return data, err
}

// S3API is the subset of *s3.Client used by S3Persister.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Persister stores snapshots as objects in an S3 bucket.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	p := store.NewS3Persister(s3.NewFromConfig(cfg), "my-bucket", "weave/")
//	s := store.New(State{}, store.WithPersister(p))
type S3Persister struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Persister creates a persister writing to bucket under prefix.
func NewS3Persister(client S3API, bucket, prefix string) *S3Persister {
	return &S3Persister{client: client, bucket: bucket, prefix: prefix}
}

// Save uploads data as a JSON object.
func (p *S3Persister) Save(ctx context.Context, key string, data []byte) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

// Load downloads the object stored under key.
func (p *S3Persister) Load(ctx context.Context, key string) ([]byte, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.objectKey(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if stderrors.As(err, &noKey) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (p *S3Persister) objectKey(key string) string {
	if p.prefix == "" {
		return key
	}
	return path.Join(strings.TrimSuffix(p.prefix, "/"), key)
}
