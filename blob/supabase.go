package blob

import (
	"context"
	"fmt"
	"io"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStore keeps uploads in a public Supabase storage bucket. The
// client has no context support, so ctx is only checked before each call.
type SupabaseStore struct {
	client *storage_go.Client
	bucket string
}

func NewSupabaseStore(url, key, bucket string) *SupabaseStore {
	return &SupabaseStore{
		client: storage_go.NewClient(url+"/storage/v1", key, nil),
		bucket: bucket,
	}
}

func (s *SupabaseStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.client.UploadFile(s.bucket, key, r, storage_go.FileOptions{ContentType: &contentType}); err != nil {
		return "", fmt.Errorf("supabase put %s: %w", key, err)
	}
	return s.client.GetPublicUrl(s.bucket, key).SignedURL, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.RemoveFile(s.bucket, []string{key}); err != nil {
		return fmt.Errorf("supabase delete %s: %w", key, err)
	}
	return nil
}
