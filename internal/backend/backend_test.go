package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/stash/internal/bus"
	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/remote"
	"github.com/matheus3301/stash/internal/store"
)

var (
	notes   = model.Folder{ID: 100, Title: "Notes"}
	links   = model.Folder{ID: 101, Title: "Links"}
	general = model.Folder{ID: 1, Title: "General"}
)

func newTestBackend(t *testing.T, opts Options) (*Backend, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "backend.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Upgrade(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, bus.New(), nil, opts), db
}

func texts(mm *model.MessageMap) []string {
	var out []string
	for _, m := range mm.Messages() {
		out = append(out, m.Text)
	}
	return out
}

func TestGetMeRevoked(t *testing.T) {
	be, _ := newTestBackend(t, Options{})
	ctx := context.Background()

	u, err := be.GetMe(ctx)
	if err != nil || u.ID != 1 {
		t.Fatalf("GetMe = %+v, %v", u, err)
	}

	if err := be.Revoke(); err != nil {
		t.Fatal(err)
	}
	if _, err := be.GetFolders(ctx); !remote.IsUnauthenticated(err) {
		t.Errorf("GetFolders after revoke: err = %v, want unauthenticated", err)
	}

	if err := be.Authorize(); err != nil {
		t.Fatal(err)
	}
	if _, err := be.GetFolders(ctx); err != nil {
		t.Errorf("GetFolders after authorize: %v", err)
	}
}

func TestGetMessagesPaging(t *testing.T) {
	be, db := newTestBackend(t, Options{PageSize: 3})
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		if _, err := db.InsertMessage(notes.ID, text, nil); err != nil {
			t.Fatal(err)
		}
	}

	u, err := be.GetMessages(ctx, notes, 0)
	if err != nil {
		t.Fatal(err)
	}
	page := u.FoldersMessages[notes.ID]
	if diff := cmp.Diff([]string{"e", "d", "c"}, texts(page)); diff != "" {
		t.Errorf("first page mismatch (-want +got):\n%s", diff)
	}

	last, _ := page.Last()
	u, err = be.GetMessages(ctx, notes, last.ID)
	if err != nil {
		t.Fatal(err)
	}
	// The folder's slice is complete, not just the new page.
	if diff := cmp.Diff([]string{"e", "d", "c", "b", "a"}, texts(u.FoldersMessages[notes.ID])); diff != "" {
		t.Errorf("second page mismatch (-want +got):\n%s", diff)
	}
}

func TestGetMessagesUnknownFolder(t *testing.T) {
	be, _ := newTestBackend(t, Options{})
	_, err := be.GetMessages(context.Background(), model.Folder{ID: 999}, 0)
	var re *remote.Error
	if !asRemote(err, &re) || re.Code != remote.CodeNotFound {
		t.Errorf("err = %v, want 404", err)
	}
}

func TestGeneralFolderExists(t *testing.T) {
	be, _ := newTestBackend(t, Options{})
	u, err := be.CreateMessage(context.Background(), model.InputMessage{Text: "hi"}, general)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := u.FoldersMessages[general.ID].Get(u.CreatedID); !ok {
		t.Error("created message missing from the general folder")
	}
}

func TestCreateMessage(t *testing.T) {
	be, _ := newTestBackend(t, Options{})
	ctx := context.Background()

	u, err := be.CreateMessage(ctx, model.InputMessage{Text: "read https://example.com/post/1."}, notes)
	if err != nil {
		t.Fatal(err)
	}
	if u.CreatedID == 0 {
		t.Fatal("CreatedID not set")
	}
	got, ok := u.FoldersMessages[notes.ID].Get(u.CreatedID)
	if !ok {
		t.Fatal("created message not in updates")
	}
	want := &model.Webpage{URL: "https://example.com/post/1", Pending: true}
	if diff := cmp.Diff(want, got.Webpage); diff != "" {
		t.Errorf("webpage mismatch (-want +got):\n%s", diff)
	}

	if _, err := be.CreateMessage(ctx, model.InputMessage{}, notes); err == nil {
		t.Error("empty message accepted")
	}
}

func TestEditMessage(t *testing.T) {
	be, db := newTestBackend(t, Options{})
	ctx := context.Background()
	id, _ := db.InsertMessage(notes.ID, "old", nil)
	if err := db.ExtendWindow(notes.ID, 0); err != nil {
		t.Fatal(err)
	}

	_, err := be.EditMessage(ctx, model.InputMessage{ID: id, Text: "old"}, notes)
	if !remote.IsNotModified(err) {
		t.Errorf("identical edit: err = %v, want not modified", err)
	}

	u, err := be.EditMessage(ctx, model.InputMessage{ID: id, Text: "new"}, notes)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := u.FoldersMessages[notes.ID].Get(id)
	if got.Text != "new" || !got.Edited {
		t.Errorf("edited message = %+v", got)
	}
}

func TestEditMessageDropsMedia(t *testing.T) {
	be, db := newTestBackend(t, Options{})
	ctx := context.Background()
	id, _ := db.InsertMessage(notes.ID, "files", nil)
	keep, _ := db.AddMedia(id, "a.txt", 1)
	if _, err := db.AddMedia(id, "b.txt", 2); err != nil {
		t.Fatal(err)
	}
	if err := db.ExtendWindow(notes.ID, 0); err != nil {
		t.Fatal(err)
	}

	u, err := be.EditMessage(ctx, model.InputMessage{ID: id, Text: "files", MediaIDs: []model.MessageID{keep}}, notes)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := u.FoldersMessages[notes.ID].Get(id)
	if diff := cmp.Diff([]model.MessageID{keep}, got.MediaIDs()); diff != "" {
		t.Errorf("media mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteMessage(t *testing.T) {
	be, db := newTestBackend(t, Options{})
	ctx := context.Background()
	id, _ := db.InsertMessage(notes.ID, "bye", nil)
	if err := db.ExtendWindow(notes.ID, 0); err != nil {
		t.Fatal(err)
	}

	u, err := be.DeleteMessage(ctx, model.DeleteRequest{ID: id}, notes)
	if err != nil {
		t.Fatal(err)
	}
	if u.FoldersMessages[notes.ID].Len() != 0 {
		t.Errorf("folder still holds %d messages", u.FoldersMessages[notes.ID].Len())
	}

	_, err = be.DeleteMessage(ctx, model.DeleteRequest{ID: id}, notes)
	var re *remote.Error
	if !asRemote(err, &re) || re.Code != remote.CodeNotFound {
		t.Errorf("second delete: err = %v, want 404", err)
	}
}

func TestMoveMessageCopies(t *testing.T) {
	be, db := newTestBackend(t, Options{})
	ctx := context.Background()
	id, _ := db.InsertMessage(notes.ID, "travel", nil)
	for _, f := range []model.FolderID{notes.ID, links.ID} {
		if err := db.ExtendWindow(f, 0); err != nil {
			t.Fatal(err)
		}
	}

	msg, _ := db.GetMessage(notes.ID, id)
	u, err := be.MoveMessage(ctx, msg, notes, links)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"travel"}, texts(u.FoldersMessages[links.ID])); diff != "" {
		t.Errorf("target mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"travel"}, texts(u.FoldersMessages[notes.ID])); diff != "" {
		t.Errorf("source mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshFloodWait(t *testing.T) {
	be, _ := newTestBackend(t, Options{RefreshRate: 0.001, RefreshBurst: 1})
	ctx := context.Background()

	if _, err := be.RefreshMessages(ctx, notes, nil); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if _, err := be.RefreshMessages(ctx, notes, nil); !remote.IsFloodWait(err) {
		t.Errorf("second refresh: err = %v, want flood wait", err)
	}
	if _, err := be.RefreshMessages(ctx, links, nil); err != nil {
		t.Errorf("other folder refresh: %v", err)
	}
}

func TestSearchSession(t *testing.T) {
	be, db := newTestBackend(t, Options{})
	ctx := context.Background()
	if _, err := db.InsertMessage(notes.ID, "golang tips", nil); err != nil {
		t.Fatal(err)
	}

	mm, err := be.SearchMessages(ctx, "golang", notes)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"golang tips"}, texts(mm)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	u, err := be.CreateMessage(ctx, model.InputMessage{Text: "more golang"}, notes)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"more golang", "golang tips"}, texts(u.SearchMessages)); diff != "" {
		t.Errorf("refreshed results mismatch (-want +got):\n%s", diff)
	}

	if err := be.ResetSearch(ctx); err != nil {
		t.Fatal(err)
	}
	u, err = be.CreateMessage(ctx, model.InputMessage{Text: "golang again"}, notes)
	if err != nil {
		t.Fatal(err)
	}
	if u.SearchMessages != nil {
		t.Error("search results sent after reset")
	}
}

func TestUploadFile(t *testing.T) {
	be, db := newTestBackend(t, Options{})
	ctx := context.Background()
	id, _ := db.InsertMessage(notes.ID, "doc", nil)

	path := filepath.Join(t.TempDir(), "report.pdf")
	if err := os.WriteFile(path, []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}

	u, err := be.UploadFile(ctx, notes, id, model.InputFile{Key: "k", Path: path})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := u.FoldersMessages[notes.ID].Get(id)
	if len(got.Media) != 1 || got.Media[0].Name != "report.pdf" || got.Media[0].Size != 5 {
		t.Errorf("media = %+v", got.Media)
	}

	if _, err := be.UploadFile(ctx, notes, id, model.InputFile{Path: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("missing file accepted")
	}
}

func TestResolvePendingPushes(t *testing.T) {
	be, _ := newTestBackend(t, Options{ResolveDelay: time.Second})
	ctx := context.Background()

	pushed := make(chan model.Updates, 1)
	unsub := be.ListenUpdates(func(u model.Updates) { pushed <- u })
	defer unsub()

	u, err := be.CreateMessage(ctx, model.InputMessage{Text: "https://www.example.com/a/b"}, notes)
	if err != nil {
		t.Fatal(err)
	}

	n, err := be.ResolvePending(time.Now())
	if err != nil || n != 0 {
		t.Fatalf("early resolve = %d, %v; want nothing resolved", n, err)
	}

	n, err = be.ResolvePending(time.Now().Add(2 * time.Second))
	if err != nil || n != 1 {
		t.Fatalf("resolve = %d, %v; want 1", n, err)
	}

	select {
	case u2 := <-pushed:
		got, _ := u2.FoldersMessages[notes.ID].Get(u.CreatedID)
		want := &model.Webpage{URL: "https://www.example.com/a/b", Title: "example.com", Description: "a/b"}
		if diff := cmp.Diff(want, got.Webpage); diff != "" {
			t.Errorf("webpage mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no push received")
	}
}

func TestEndSession(t *testing.T) {
	be, db := newTestBackend(t, Options{})
	ctx := context.Background()
	if _, err := be.GetMessages(ctx, notes, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := be.SearchMessages(ctx, "x", notes); err != nil {
		t.Fatal(err)
	}

	if err := be.EndSession(); err != nil {
		t.Fatal(err)
	}
	windows, err := db.Windows()
	if err != nil {
		t.Fatal(err)
	}
	if len(windows) != 0 {
		t.Errorf("windows = %v, want none", windows)
	}
	u, err := be.snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if u.SearchMessages != nil {
		t.Error("search session survived EndSession")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	be, _ := newTestBackend(t, Options{ResolveSchedule: "not a schedule"})
	if err := be.Start(); err == nil {
		be.Stop()
		t.Fatal("Start accepted an invalid schedule")
	}
}

func TestDetectWebpage(t *testing.T) {
	tests := []struct {
		text string
		want *model.Webpage
	}{
		{"no links here", nil},
		{"see http://a.io/x, ok", &model.Webpage{URL: "http://a.io/x", Pending: true}},
		{"(https://b.dev)", &model.Webpage{URL: "https://b.dev", Pending: true}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, detectWebpage(tt.text)); diff != "" {
			t.Errorf("detectWebpage(%q) mismatch (-want +got):\n%s", tt.text, diff)
		}
	}
}

func asRemote(err error, target **remote.Error) bool {
	return errors.As(err, target)
}

func TestPushDeliversInOrder(t *testing.T) {
	be, _ := newTestBackend(t, Options{})

	const n = 2000
	var mu sync.Mutex
	var got []model.MessageID
	done := make(chan struct{})
	unsub := be.ListenUpdates(func(u model.Updates) {
		mu.Lock()
		got = append(got, u.CreatedID)
		full := len(got) == n
		mu.Unlock()
		if full {
			close(done)
		}
	})
	defer unsub()

	for i := 1; i <= n; i++ {
		be.push(model.Updates{CreatedID: model.MessageID(i)})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pushes not all delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, id := range got {
		if id != model.MessageID(i+1) {
			t.Fatalf("push %d delivered as #%d", id, i+1)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	be, _ := newTestBackend(t, Options{})

	var calls atomic.Int32
	unsub := be.ListenUpdates(func(model.Updates) { calls.Add(1) })
	unsub()
	unsub()

	be.push(model.Updates{CreatedID: 1})
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("calls = %d after unsubscribe, want 0", calls.Load())
	}
}

func TestSnapshotsAreSequenced(t *testing.T) {
	be, _ := newTestBackend(t, Options{})
	ctx := context.Background()

	first, err := be.GetMessages(ctx, notes, 0)
	if err != nil {
		t.Fatal(err)
	}
	created, err := be.CreateMessage(ctx, model.InputMessage{Text: "later"}, notes)
	if err != nil {
		t.Fatal(err)
	}
	if first.Seq == 0 || created.Seq <= first.Seq {
		t.Errorf("seq = %d then %d, want increasing and non-zero", first.Seq, created.Seq)
	}
}
