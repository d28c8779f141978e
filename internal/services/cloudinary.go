package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// Upload folders, one per media surface.
const (
	FolderProfilePictures = "rai/profile_pictures"
	FolderCommunityIcons  = "rai/community_icons"
	FolderChatImages      = "rai/chat_images"
	FolderChatAudio       = "rai/chat_audio"
)

const (
	MaxImageUploadSize = 10 << 20 // 10 MiB
	MaxAudioUploadSize = 25 << 20 // 25 MiB
	uploadTimeout      = 30 * time.Second
)

var ErrUnsupportedMediaType = errors.New("unsupported media type")

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var allowedAudioTypes = map[string]bool{
	"audio/mpeg":      true,
	"audio/mp4":       true,
	"audio/wav":       true,
	"audio/x-wav":     true,
	"audio/webm":      true,
	"audio/ogg":       true,
	"video/webm":      true,
	"application/ogg": true,
}

// CloudinaryService uploads media and hands back public URLs. Files never
// touch local disk.
type CloudinaryService struct {
	client *cloudinary.Cloudinary
}

func NewCloudinaryService(cloudName, apiKey, apiSecret string) (*CloudinaryService, error) {
	client, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	return &CloudinaryService{client: client}, nil
}

// UploadImage validates and uploads an image from a multipart form.
func (s *CloudinaryService) UploadImage(ctx context.Context, header *multipart.FileHeader, folder string) (string, error) {
	if header.Size > MaxImageUploadSize {
		return "", fmt.Errorf("image exceeds %d byte limit", MaxImageUploadSize)
	}
	if !allowedImageTypes[contentType(header)] {
		return "", ErrUnsupportedMediaType
	}
	return s.upload(ctx, header, folder, "image")
}

// UploadAudio validates and uploads a voice note. Cloudinary stores audio
// under the video resource type.
func (s *CloudinaryService) UploadAudio(ctx context.Context, header *multipart.FileHeader, folder string) (string, error) {
	if header.Size > MaxAudioUploadSize {
		return "", fmt.Errorf("audio exceeds %d byte limit", MaxAudioUploadSize)
	}
	if !allowedAudioTypes[contentType(header)] {
		return "", ErrUnsupportedMediaType
	}
	return s.upload(ctx, header, folder, "video")
}

func (s *CloudinaryService) upload(ctx context.Context, header *multipart.FileHeader, folder, resourceType string) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	resp, err := s.client.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		PublicID:     uuid.New().String(),
		ResourceType: resourceType,
	})
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", errors.New(resp.Error.Message)
	}
	return resp.SecureURL, nil
}

func contentType(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(strings.ToLower(ct))
}

// Media is the process-wide uploader, initialized from main. Nil when
// Cloudinary credentials are absent; handlers must check Configured.
var Media *CloudinaryService

func InitCloudinaryService(cloudName, apiKey, apiSecret string) error {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil
	}
	svc, err := NewCloudinaryService(cloudName, apiKey, apiSecret)
	if err != nil {
		return err
	}
	Media = svc
	return nil
}

// MediaConfigured reports whether uploads are available.
func MediaConfigured() bool {
	return Media != nil
}
