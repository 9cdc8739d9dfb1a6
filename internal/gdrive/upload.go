// Package gdrive copies exported transcripts to a Google Drive folder.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const googleDocMimeType = "application/vnd.google-apps.document"

// Uploader pushes transcript exports to one Drive folder. Uploading the same
// file name twice replaces the earlier copy.
type Uploader struct {
	service  *drive.Service
	folderID string
	logger   *slog.Logger

	mu      sync.Mutex
	fileIDs map[string]string
}

// NewUploader authenticates with a service account key file.
func NewUploader(ctx context.Context, credPath, folderID string) (*Uploader, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	return newUploader(ctx, folderID, option.WithCredentials(config))
}

func newUploader(ctx context.Context, folderID string, opts ...option.ClientOption) (*Uploader, error) {
	if strings.TrimSpace(folderID) == "" {
		return nil, errors.New("drive folder id is required")
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Uploader{
		service:  svc,
		folderID: folderID,
		logger:   slog.Default().With("component", "gdrive"),
		fileIDs:  make(map[string]string),
	}, nil
}

// Upload copies path to the folder. A markdown file next to it with the same
// base name is uploaded as a Google Doc.
func (u *Uploader) Upload(ctx context.Context, path string) error {
	if err := u.uploadFile(ctx, path, ""); err != nil {
		return err
	}

	md := strings.TrimSuffix(path, filepath.Ext(path)) + ".md"
	if md == path {
		return nil
	}
	if _, err := os.Stat(md); err != nil {
		return nil
	}
	return u.uploadFile(ctx, md, googleDocMimeType)
}

func (u *Uploader) uploadFile(ctx context.Context, path, mimeType string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	name := filepath.Base(path)
	if fileID, ok := u.fileIDs[name]; ok {
		if _, err := u.service.Files.Update(fileID, &drive.File{}).Media(f).Context(ctx).Do(); err != nil {
			return fmt.Errorf("drive update %s: %w", name, err)
		}
		u.logger.Info("transcript re-uploaded", "name", name, "file_id", fileID)
		return nil
	}

	meta := &drive.File{Name: name, Parents: []string{u.folderID}}
	if mimeType != "" {
		meta.Name = strings.TrimSuffix(name, filepath.Ext(name))
		meta.MimeType = mimeType
	}
	doc, err := u.service.Files.Create(meta).Media(f).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive create %s: %w", name, err)
	}

	u.fileIDs[name] = doc.Id
	u.logger.Info("transcript uploaded", "name", name, "file_id", doc.Id)
	return nil
}
