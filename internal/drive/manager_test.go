package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/keihibot/keihi/internal/month"
)

// fakeDrive is an in-memory file tree.
type fakeDrive struct {
	files   map[string]*fakeFile // id -> file
	nextID  int
	readers map[string][]string // id -> granted emails
}

type fakeFile struct {
	info     FileInfo
	parentID string
	content  []byte
}

func newFakeDrive() *fakeDrive {
	f := &fakeDrive{files: map[string]*fakeFile{}, readers: map[string][]string{}}
	f.files["root"] = &fakeFile{info: FileInfo{ID: "root", Name: "keihi", MimeType: folderMimeType}}
	return f
}

func (f *fakeDrive) FindChild(ctx context.Context, parentID, name string, folder bool) (*FileInfo, error) {
	for _, file := range f.files {
		if file.parentID != parentID || file.info.Name != name {
			continue
		}
		if folder != file.info.IsFolder() {
			continue
		}
		info := file.info
		return &info, nil
	}
	return nil, nil
}

func (f *fakeDrive) ListChildren(ctx context.Context, parentID string) ([]FileInfo, error) {
	var out []FileInfo
	for _, file := range f.files {
		if file.parentID == parentID && !file.info.IsFolder() {
			out = append(out, file.info)
		}
	}
	return out, nil
}

func (f *fakeDrive) CreateFolder(ctx context.Context, name, parentID string) (*FileInfo, error) {
	return f.create(name, parentID, folderMimeType, nil), nil
}

func (f *fakeDrive) CreateFile(ctx context.Context, name, parentID, mimeType string, r io.Reader) (*FileInfo, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return f.create(name, parentID, mimeType, content), nil
}

func (f *fakeDrive) create(name, parentID, mimeType string, content []byte) *FileInfo {
	f.nextID++
	id := fmt.Sprintf("id%d", f.nextID)
	file := &fakeFile{
		info: FileInfo{
			ID: id, Name: name, MimeType: mimeType,
			WebViewLink: "https://drive.google.com/file/d/" + id + "/view",
		},
		parentID: parentID,
		content:  content,
	}
	f.files[id] = file
	info := file.info
	return &info
}

func (f *fakeDrive) Delete(ctx context.Context, fileID string) error {
	if _, ok := f.files[fileID]; !ok {
		return fmt.Errorf("no file %s", fileID)
	}
	delete(f.files, fileID)
	return nil
}

func (f *fakeDrive) Download(ctx context.Context, fileID string) ([]byte, error) {
	file, ok := f.files[fileID]
	if !ok {
		return nil, fmt.Errorf("no file %s", fileID)
	}
	return file.content, nil
}

func (f *fakeDrive) GrantReader(ctx context.Context, fileID, email string) error {
	f.readers[fileID] = append(f.readers[fileID], email)
	return nil
}

func (f *fakeDrive) countFolders(name string) int {
	n := 0
	for _, file := range f.files {
		if file.info.Name == name && file.info.IsFolder() {
			n++
		}
	}
	return n
}

type fixedEmails struct{ email string }

func (e fixedEmails) Email(ctx context.Context, userID string) (string, error) {
	return e.email, nil
}

type mapCache struct{ m map[string]string }

func (c *mapCache) Folder(userID, ym string) (string, bool) {
	id, ok := c.m[userID+"/"+ym]
	return id, ok
}

func (c *mapCache) PutFolder(userID, ym, id string) {
	c.m[userID+"/"+ym] = id
}

var feb = month.YearMonth{Year: 2025, Month: time.February}

func newTestManager(api *fakeDrive, cache FolderCache) *Manager {
	return NewManager(api, "root", fixedEmails{email: "taro@example.com"}, cache)
}

func TestMonthFolderCreatesHierarchy(t *testing.T) {
	api := newFakeDrive()
	m := newTestManager(api, nil)

	id, err := m.MonthFolder(context.Background(), "U1", feb)
	if err != nil {
		t.Fatal(err)
	}
	monthFolder := api.files[id]
	if monthFolder == nil || monthFolder.info.Name != "2025_02" {
		t.Fatalf("month folder = %+v", monthFolder)
	}
	userFolder := api.files[monthFolder.parentID]
	if userFolder == nil || userFolder.info.Name != "U1" || userFolder.parentID != "root" {
		t.Fatalf("user folder = %+v", userFolder)
	}
	// Reader permission lands on the user root only; the month folder
	// inherits.
	if got := api.readers[userFolder.info.ID]; len(got) != 1 || got[0] != "taro@example.com" {
		t.Errorf("user folder readers = %v", got)
	}
	if got := api.readers[id]; len(got) != 0 {
		t.Errorf("month folder should have no direct grants, got %v", got)
	}
}

func TestMonthFolderIdempotent(t *testing.T) {
	api := newFakeDrive()
	m := newTestManager(api, nil)
	ctx := context.Background()

	first, err := m.MonthFolder(ctx, "U1", feb)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.MonthFolder(ctx, "U1", feb)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("folder IDs differ: %s vs %s", first, second)
	}
	if n := api.countFolders("2025_02"); n != 1 {
		t.Errorf("month folders = %d, want 1", n)
	}
}

func TestMonthFolderUsesCache(t *testing.T) {
	api := newFakeDrive()
	cache := &mapCache{m: map[string]string{"U1/2025_02": "cached-id"}}
	m := newTestManager(api, cache)

	id, err := m.MonthFolder(context.Background(), "U1", feb)
	if err != nil {
		t.Fatal(err)
	}
	if id != "cached-id" {
		t.Errorf("id = %q, want cached-id", id)
	}
	if n := api.countFolders("U1"); n != 0 {
		t.Error("cache hit must not touch the API")
	}
}

func TestUploadFileOverwritesSameName(t *testing.T) {
	api := newFakeDrive()
	m := newTestManager(api, nil)
	ctx := context.Background()

	first, err := m.UploadFile(ctx, "U1", feb, []byte("v1"), "receipt.jpg", "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.UploadFile(ctx, "U1", feb, []byte("v2"), "receipt.jpg", "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Error("overwrite should delete and recreate, producing a new ID")
	}
	if _, ok := api.files[first.ID]; ok {
		t.Error("old file must be gone")
	}
	if got := api.files[second.ID].content; !bytes.Equal(got, []byte("v2")) {
		t.Errorf("content = %q, want v2", got)
	}
}

func TestListReceiptsExcludesReport(t *testing.T) {
	api := newFakeDrive()
	m := newTestManager(api, nil)
	ctx := context.Background()

	folderID, err := m.MonthFolder(ctx, "U1", feb)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.UploadFile(ctx, "U1", feb, []byte("a"), "receipt1.jpg", "image/jpeg"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.UploadFile(ctx, "U1", feb, []byte("b"), "keihi_2025_02.pdf", "application/pdf"); err != nil {
		t.Fatal(err)
	}

	files, err := m.ListReceipts(ctx, folderID, "keihi_2025_02.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name != "receipt1.jpg" {
		t.Errorf("receipts = %+v", files)
	}
}

func TestDeleteFileByNameMissingIsNoop(t *testing.T) {
	api := newFakeDrive()
	m := newTestManager(api, nil)
	if err := m.DeleteFileByName(context.Background(), "root", "nothing.pdf"); err != nil {
		t.Fatalf("missing file should be a no-op, got %v", err)
	}
}
