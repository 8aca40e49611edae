package storage

import (
	"context"
	"iter"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectInfo describes a listed object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	StorageClass string
}

// ListObjects lazily yields every object whose key starts with prefix.
// Pages are fetched as the caller iterates and each iteration starts a fresh
// listing. A failed page yields a *StorageError and ends the sequence.
func (c *Client) ListObjects(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		start := time.Now()
		p := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
			Bucket: aws.String(c.bucket),
			Prefix: aws.String(prefix),
		})

		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				yield(ObjectInfo{}, c.finish(ctx, opList, prefix, start, err))
				return
			}
			for _, obj := range page.Contents {
				info := ObjectInfo{
					Key:          aws.ToString(obj.Key),
					Size:         aws.ToInt64(obj.Size),
					LastModified: aws.ToTime(obj.LastModified),
					ETag:         aws.ToString(obj.ETag),
					StorageClass: string(obj.StorageClass),
				}
				if !yield(info, nil) {
					_ = c.finish(ctx, opList, prefix, start, nil)
					return
				}
			}
		}
		_ = c.finish(ctx, opList, prefix, start, nil)
	}
}

// ListAll collects ListObjects into a slice.
func (c *Client) ListAll(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for info, err := range c.ListObjects(ctx, prefix) {
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}
