package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
)

// S3Store implements Store on Amazon S3.
// The container of a namespace path is the bucket name.
type S3Store struct {
	api s3iface.S3API
}

// NewS3Store uses the default AWS credential chain unless a key pair is supplied.
func NewS3Store(region, keyID, secretKey string) (*S3Store, error) {
	awsConfig := aws.NewConfig()
	awsConfig.Region = aws.String(region)
	if keyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(keyID, secretKey, "")
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, errors.Wrap(err, "error creating AWS session")
	}
	return &S3Store{api: s3.New(sess)}, nil
}

func NewS3StoreWithAPI(api s3iface.S3API) *S3Store {
	return &S3Store{api: api}
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	loc, err := ParsePath(prefix)
	if err != nil {
		return nil, err
	}
	retval := make([]ObjectInfo, 0)
	params := &s3.ListObjectsV2Input{
		Bucket:  aws.String(loc.Container),
		MaxKeys: aws.Int64(1000),
		Prefix:  aws.String(loc.Key),
	}
	err = s.api.ListObjectsV2PagesWithContext(ctx, params, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, v := range page.Contents {
			retval = append(retval, ObjectInfo{
				Key:          Location{Container: loc.Container, Account: loc.Account, Key: aws.StringValue(v.Key)}.String(),
				Size:         aws.Int64Value(v.Size),
				LastModified: aws.TimeValue(v.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error listing s3://%v/%v", loc.Container, loc.Key)
	}
	return retval, nil
}

func (s *S3Store) Get(ctx context.Context, path string) ([]byte, error) {
	loc, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	res, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Container),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var awsErr awserr.Error
		if errors.As(err, &awsErr) && awsErr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrObjectNotFound
		}
		return nil, errors.Wrapf(err, "error fetching s3://%v/%v", loc.Container, loc.Key)
	}
	defer res.Body.Close()
	return io.ReadAll(res.Body)
}

func (s *S3Store) Put(ctx context.Context, path string, data []byte) error {
	loc, err := ParsePath(path)
	if err != nil {
		return err
	}
	_, err = s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(loc.Container),
		Key:    aws.String(loc.Key),
		Body:   bytes.NewReader(data),
	})
	return errors.Wrapf(err, "error writing s3://%v/%v", loc.Container, loc.Key)
}

func (s *S3Store) Delete(ctx context.Context, path string) error {
	loc, err := ParsePath(path)
	if err != nil {
		return err
	}
	_, err = s.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(loc.Container),
		Key:    aws.String(loc.Key),
	})
	return errors.Wrapf(err, "error deleting s3://%v/%v", loc.Container, loc.Key)
}
