package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const keyTimeLayout = "2006-01-02_15-04-05"

// DestinationKey names the stored copy of an uploaded image.
func DestinationKey(t time.Time, filename string) string {
	return "history/" + t.Format(keyTimeLayout) + "_" + filename
}

// PublicURL is the anonymous download link of a publicly readable object.
// Only ASCII letters, digits and "_.-~/" are left unescaped in the key.
func PublicURL(bucket, key string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '_', c == '.', c == '-', c == '~', c == '/':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}

// GCSUploader writes objects to Google Cloud Storage and makes them public.
type GCSUploader struct {
	client *gcs.Client
}

func NewGCSUploader(ctx context.Context, credentialsFile string) (*GCSUploader, error) {
	client, err := gcs.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSUploader{client: client}, nil
}

func (u *GCSUploader) Upload(ctx context.Context, data []byte, bucket, key, contentType string) (string, error) {
	obj := u.client.Bucket(bucket).Object(key)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to write object %s: %w", key, err)
	}

	if err := obj.ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
		return "", fmt.Errorf("failed to make object %s public: %w", key, err)
	}
	return PublicURL(bucket, key), nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}
