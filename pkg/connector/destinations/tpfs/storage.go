package tpfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/gcsblob"  // gs:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
	_ "gocloud.dev/blob/s3blob"   // s3:// buckets

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

// SuccessMarker is written last into a completed partition.
const SuccessMarker = "_SUCCESS"

// openBucket opens a bucket URL. An empty URL is the working directory.
func openBucket(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	if strings.TrimSpace(bucketURL) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "bucketURL is empty and the working directory is unknown")
		}
		bucketURL = "file://" + filepath.ToSlash(wd)
	}
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open bucket").
			WithDetail("bucket_url", bucketURL)
	}
	return b, nil
}

// objectKey maps a partition path and file name to a bucket key. Bucket keys
// never start with a slash.
func objectKey(partitionPath, name string) string {
	return strings.Trim(partitionPath, "/") + "/" + name
}

// partitionExists reports whether anything is stored under the partition path.
func partitionExists(ctx context.Context, b *blob.Bucket, path string) (bool, error) {
	iter := b.List(&blob.ListOptions{Prefix: objectKey(path, "")})
	_, err := iter.Next(ctx)
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeConnection, "failed to list partition").
			WithDetail("path", path)
	}
	return true, nil
}

// countingWriter counts the bytes that reach storage.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
