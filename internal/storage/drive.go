package storage

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// maxDriveFile bounds downloads; only small assets such as logos are fetched.
const maxDriveFile = 5 << 20

// Drive downloads files from Google Drive.
type Drive struct {
	service *drive.Service
}

// NewDrive opens a read-only Drive client from service account JSON.
func NewDrive(ctx context.Context, credJSON []byte) (*Drive, error) {
	return NewDriveWithOptions(ctx,
		option.WithCredentialsJSON(credJSON),
		option.WithScopes(drive.DriveReadonlyScope),
	)
}

// NewDriveWithOptions opens a Drive client from raw API options.
func NewDriveWithOptions(ctx context.Context, opts ...option.ClientOption) (*Drive, error) {
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: new drive client: %w", err)
	}
	return &Drive{service: service}, nil
}

// Download returns the content of fileID.
func (d *Drive) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := d.service.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("storage: download %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDriveFile+1))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", fileID, err)
	}
	if len(data) > maxDriveFile {
		return nil, fmt.Errorf("storage: %s is larger than %d bytes", fileID, maxDriveFile)
	}
	return data, nil
}
