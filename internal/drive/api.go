// Package drive manages the receipt folder hierarchy and files:
// root → per-user folder (reader permission for the user) → per-month folder
// → receipt files and the exported monthly report.
package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
)

const folderMimeType = "application/vnd.google-apps.folder"

// FileInfo describes a Drive file or folder.
type FileInfo struct {
	ID          string
	Name        string
	MimeType    string
	WebViewLink string
}

// IsFolder reports whether the file is a folder.
func (f FileInfo) IsFolder() bool { return f.MimeType == folderMimeType }

// API is the narrow Drive surface the manager needs.
type API interface {
	// FindChild returns the first non-trashed child with the exact name, or
	// nil when absent.
	FindChild(ctx context.Context, parentID, name string, folder bool) (*FileInfo, error)
	// ListChildren returns the non-folder children of a folder.
	ListChildren(ctx context.Context, parentID string) ([]FileInfo, error)
	// CreateFolder creates a folder under a parent.
	CreateFolder(ctx context.Context, name, parentID string) (*FileInfo, error)
	// CreateFile uploads a file under a parent.
	CreateFile(ctx context.Context, name, parentID, mimeType string, r io.Reader) (*FileInfo, error)
	// Delete removes a file or folder.
	Delete(ctx context.Context, fileID string) error
	// Download fetches a file's content.
	Download(ctx context.Context, fileID string) ([]byte, error)
	// GrantReader gives an email address read access, without notification.
	GrantReader(ctx context.Context, fileID, email string) error
}

type googleAPI struct {
	svc *gdrive.Service
}

// NewAPI wraps a Drive service client.
func NewAPI(svc *gdrive.Service) API {
	return &googleAPI{svc: svc}
}

func (g *googleAPI) FindChild(ctx context.Context, parentID, name string, folder bool) (*FileInfo, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", escapeQuery(name), parentID)
	if folder {
		q += fmt.Sprintf(" and mimeType = '%s'", folderMimeType)
	}
	list, err := g.svc.Files.List().Q(q).
		Fields("files(id, name, mimeType, webViewLink)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("querying drive: %w", err)
	}
	if len(list.Files) == 0 {
		return nil, nil
	}
	return fromFile(list.Files[0]), nil
}

func (g *googleAPI) ListChildren(ctx context.Context, parentID string) ([]FileInfo, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false and mimeType != '%s'", parentID, folderMimeType)
	var out []FileInfo
	pageToken := ""
	for {
		call := g.svc.Files.List().Q(q).
			Fields("nextPageToken, files(id, name, mimeType, webViewLink)").
			OrderBy("name").PageSize(100).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("listing drive folder: %w", err)
		}
		for _, f := range list.Files {
			out = append(out, *fromFile(f))
		}
		if list.NextPageToken == "" {
			return out, nil
		}
		pageToken = list.NextPageToken
	}
}

func (g *googleAPI) CreateFolder(ctx context.Context, name, parentID string) (*FileInfo, error) {
	f, err := g.svc.Files.Create(&gdrive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id, name, mimeType, webViewLink").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating folder %q: %w", name, err)
	}
	return fromFile(f), nil
}

func (g *googleAPI) CreateFile(ctx context.Context, name, parentID, mimeType string, r io.Reader) (*FileInfo, error) {
	f, err := g.svc.Files.Create(&gdrive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{parentID},
	}).Media(r).Fields("id, name, mimeType, webViewLink").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("uploading %q: %w", name, err)
	}
	return fromFile(f), nil
}

func (g *googleAPI) Delete(ctx context.Context, fileID string) error {
	if err := g.svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("deleting file %s: %w", fileID, err)
	}
	return nil
}

func (g *googleAPI) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := g.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("downloading file %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", fileID, err)
	}
	return data, nil
}

func (g *googleAPI) GrantReader(ctx context.Context, fileID, email string) error {
	_, err := g.svc.Permissions.Create(fileID, &gdrive.Permission{
		Type:         "user",
		Role:         "reader",
		EmailAddress: email,
	}).SendNotificationEmail(false).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("granting reader to %s: %w", email, err)
	}
	return nil
}

func fromFile(f *gdrive.File) *FileInfo {
	return &FileInfo{ID: f.Id, Name: f.Name, MimeType: f.MimeType, WebViewLink: f.WebViewLink}
}

// escapeQuery escapes single quotes and backslashes in Drive query literals.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
