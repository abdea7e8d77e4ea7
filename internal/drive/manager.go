package drive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/keihibot/keihi/internal/keihi"
	"github.com/keihibot/keihi/internal/month"
)

// EmailSource resolves a user's email for the reader permission on their
// root folder.
type EmailSource interface {
	Email(ctx context.Context, userID string) (string, error)
}

// FolderCache is an optional lookaside cache of resolved month-folder IDs.
// Entries are advisory; a stale ID only costs a failed call and a re-lookup.
type FolderCache interface {
	Folder(userID, yearMonth string) (string, bool)
	PutFolder(userID, yearMonth, folderID string)
}

// Manager composes the per-user, per-month folder hierarchy.
type Manager struct {
	api    API
	rootID string
	emails EmailSource
	cache  FolderCache // nil disables caching
}

// NewManager builds a Manager rooted at the given Drive folder. cache may be
// nil.
func NewManager(api API, rootID string, emails EmailSource, cache FolderCache) *Manager {
	return &Manager{api: api, rootID: rootID, emails: emails, cache: cache}
}

// EnsureFolder returns the folder with the exact name under parentID,
// creating it when absent. When a folder is created and email is non-empty,
// the email is granted read access.
//
// Lookup-then-create is not atomic: concurrent calls for a missing folder can
// create same-named duplicates. Accepted; the store has no locking primitive.
func (m *Manager) EnsureFolder(ctx context.Context, name, parentID, email string) (*FileInfo, error) {
	existing, err := m.api.FindChild(ctx, parentID, name, true)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	created, err := m.api.CreateFolder(ctx, name, parentID)
	if err != nil {
		return nil, err
	}
	if email != "" {
		if err := m.api.GrantReader(ctx, created.ID, email); err != nil {
			return nil, err
		}
	}
	slog.Info("created drive folder", "name", name, "id", created.ID)
	return created, nil
}

// MonthFolder returns the folder ID for a user's month, creating the user
// root and month folders as needed. The month folder needs no separate
// permission grant; it inherits from the user root.
func (m *Manager) MonthFolder(ctx context.Context, userID string, ym month.YearMonth) (string, error) {
	const op = "drive.MonthFolder"

	if m.cache != nil {
		if id, ok := m.cache.Folder(userID, ym.SheetName()); ok {
			return id, nil
		}
	}

	email, err := m.emails.Email(ctx, userID)
	if err != nil {
		return "", err
	}

	userFolder, err := m.EnsureFolder(ctx, userID, m.rootID, email)
	if err != nil {
		return "", keihi.E(keihi.KindOperation, userID, op, err)
	}
	monthFolder, err := m.EnsureFolder(ctx, ym.SheetName(), userFolder.ID, "")
	if err != nil {
		return "", keihi.E(keihi.KindOperation, userID, op, err)
	}

	if m.cache != nil {
		m.cache.PutFolder(userID, ym.SheetName(), monthFolder.ID)
	}
	return monthFolder.ID, nil
}

// MonthFolderURL returns the browser URL of the user's month folder.
// Implements sheet.FolderResolver.
func (m *Manager) MonthFolderURL(ctx context.Context, userID string, ym month.YearMonth) (string, error) {
	id, err := m.MonthFolder(ctx, userID, ym)
	if err != nil {
		return "", err
	}
	return FolderURL(id), nil
}

// UploadFile stores a receipt in the user's month folder. An existing file of
// the same name is deleted first, so re-submissions overwrite: delete before
// create, never the reverse, to avoid a transient duplicate being visible.
func (m *Manager) UploadFile(ctx context.Context, userID string, ym month.YearMonth, content []byte, fileName, mimeType string) (*FileInfo, error) {
	const op = "drive.UploadFile"

	folderID, err := m.MonthFolder(ctx, userID, ym)
	if err != nil {
		return nil, err
	}

	if err := m.DeleteFileByName(ctx, folderID, fileName); err != nil {
		return nil, keihi.E(keihi.KindOperation, userID, op, err)
	}

	info, err := m.api.CreateFile(ctx, fileName, folderID, mimeType, bytes.NewReader(content))
	if err != nil {
		return nil, keihi.E(keihi.KindOperation, userID, op, err)
	}
	slog.Info("uploaded receipt", "user", userID, "file", fileName, "id", info.ID)
	return info, nil
}

// DeleteFileByName removes the named file from a folder if present.
func (m *Manager) DeleteFileByName(ctx context.Context, folderID, fileName string) error {
	existing, err := m.api.FindChild(ctx, folderID, fileName, false)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return m.api.Delete(ctx, existing.ID)
}

// ListReceipts returns the files of a month folder, excluding the named file
// (the previously exported report, which must not feed back into a merge).
func (m *Manager) ListReceipts(ctx context.Context, folderID, excludeName string) ([]FileInfo, error) {
	files, err := m.api.ListChildren(ctx, folderID)
	if err != nil {
		return nil, err
	}
	out := files[:0]
	for _, f := range files {
		if f.Name == excludeName {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// Download fetches a file's content.
func (m *Manager) Download(ctx context.Context, fileID string) ([]byte, error) {
	return m.api.Download(ctx, fileID)
}

// FolderURL returns the browser URL of a folder.
func FolderURL(folderID string) string {
	return fmt.Sprintf("https://drive.google.com/drive/folders/%s", folderID)
}
