package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go"
	"github.com/cloudinary/cloudinary-go/api/uploader"
	"github.com/google/uuid"
	aws_pkg "github.com/yashrajoria/storefront/pkg/aws"
)

// MediaStore uploads a product image and returns its public URL.
type MediaStore interface {
	Upload(ctx context.Context, file io.Reader, filename, contentType string) (string, error)
}

// UploadPresigner issues direct-upload URLs. Only the S3 backend has one.
type UploadPresigner interface {
	PresignUpload(ctx context.Context, filename, contentType string, expiry time.Duration) (uploadURL string, headers map[string]string, publicURL string, err error)
}

type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStore reads credentials from a cloudinary:// URL.
func NewCloudinaryStore(cloudinaryURL, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init error: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, file io.Reader, filename, _ string) (string, error) {
	resp, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		PublicID: objectName(filename),
		Folder:   s.folder,
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload failed: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload failed: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}

type S3MediaStore struct {
	store  *aws_pkg.S3Store
	prefix string
}

func NewS3MediaStore(store *aws_pkg.S3Store, prefix string) *S3MediaStore {
	return &S3MediaStore{store: store, prefix: strings.Trim(prefix, "/")}
}

func (s *S3MediaStore) key(filename string) string {
	return s.prefix + "/" + objectName(filename) + strings.ToLower(path.Ext(filename))
}

func (s *S3MediaStore) Upload(ctx context.Context, file io.Reader, filename, contentType string) (string, error) {
	return s.store.Put(ctx, s.key(filename), contentType, file)
}

func (s *S3MediaStore) PresignUpload(ctx context.Context, filename, contentType string, expiry time.Duration) (string, map[string]string, string, error) {
	key := s.key(filename)
	url, headers, err := s.store.PresignPut(ctx, key, contentType, expiry)
	if err != nil {
		return "", nil, "", err
	}
	return url, headers, s.store.URL(key), nil
}

// objectName derives a collision-free object name from an upload filename.
func objectName(filename string) string {
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 40 {
		slug = slug[:40]
	}
	if slug == "" {
		slug = "image"
	}
	return slug + "-" + uuid.NewString()[:8]
}
