package api

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/stash/internal/actions"
	"github.com/matheus3301/stash/internal/bus"
	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/outbox"
	"github.com/matheus3301/stash/internal/refresh"
	"github.com/matheus3301/stash/internal/remote/remotetest"
	"github.com/matheus3301/stash/internal/session"
	"github.com/matheus3301/stash/internal/state"
	"github.com/matheus3301/stash/internal/status"
	stashsync "github.com/matheus3301/stash/internal/sync"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

var notes = model.Folder{ID: 100, Title: "Notes"}

type fakeCreds struct {
	authorized, revoked int
}

func (c *fakeCreds) Authorize() error {
	c.authorized++
	return nil
}

func (c *fakeCreds) Revoke() error {
	c.revoked++
	return nil
}

type fixture struct {
	api      *remotetest.Fake
	bus      *bus.Bus
	store    *state.Store
	manager  *session.Manager
	creds    *fakeCreds
	sessions *SessionService
	folders  *FolderService
	messages *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := bus.New()
	s := state.New(b)
	r := stashsync.NewReconciler(s, zap.NewNop())
	fake := &remotetest.Fake{
		GetMeFn: func(context.Context) (model.User, error) {
			return model.User{ID: 1, Name: "me"}, nil
		},
		GetFoldersFn: func(context.Context) (model.Updates, error) {
			return model.Updates{Folders: []model.Folder{notes}}, nil
		},
	}
	mgr := session.NewManager(fake, s, r, status.NewMachine(b), zap.NewNop())
	up := outbox.NewUploader(fake, s, r, b, zap.NewNop(), 1)
	t.Cleanup(up.Stop)
	folders := actions.NewFolders(fake, s, r, mgr, zap.NewNop())
	messages := actions.NewMessages(fake, s, r, up, mgr, b, zap.NewNop())
	c := refresh.New(fake, r, b, zap.NewNop(), refresh.Options{Window: 5 * time.Millisecond})
	t.Cleanup(c.Close)

	creds := &fakeCreds{}
	return &fixture{
		api:      fake,
		bus:      b,
		store:    s,
		manager:  mgr,
		creds:    creds,
		sessions: NewSessionService("test", mgr, creds, s, nil),
		folders:  NewFolderService(folders, messages, s, c, mgr),
		messages: NewMessageService(folders, messages, s, c, mgr),
	}
}

func (f *fixture) logIn(t *testing.T) {
	t.Helper()
	if _, err := f.sessions.LogIn(context.Background(), &LogInRequest{}); err != nil {
		t.Fatalf("LogIn: %v", err)
	}
}

func TestRequiresReady(t *testing.T) {
	f := newFixture(t)
	_, err := f.folders.ListFolders(context.Background(), &ListFoldersRequest{})
	if grpcstatus.Code(err) != codes.FailedPrecondition {
		t.Errorf("ListFolders before log in: code = %v, want FailedPrecondition", grpcstatus.Code(err))
	}
}

func TestLogInAndOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.sessions.LogIn(ctx, &LogInRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != string(status.Ready) || f.creds.authorized != 1 {
		t.Errorf("LogIn = %+v, authorized %d times", resp, f.creds.authorized)
	}

	st, _ := f.sessions.Status(ctx, &StatusRequest{})
	if st.Session != "test" || st.User == nil || st.User.ID != 1 {
		t.Errorf("Status = %+v", st)
	}

	resp, err = f.sessions.LogOut(ctx, &LogOutRequest{Revoke: true})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != string(status.SignedOut) || f.creds.revoked != 1 {
		t.Errorf("LogOut = %+v, revoked %d times", resp, f.creds.revoked)
	}
	if f.store.User() != nil {
		t.Error("user kept after log out")
	}
}

func TestListFoldersIncludesGeneral(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)

	resp, err := f.folders.ListFolders(context.Background(), &ListFoldersRequest{})
	if err != nil {
		t.Fatal(err)
	}
	want := []model.Folder{{ID: 1, Title: actions.GeneralFolderTitle}, notes}
	if diff := cmp.Diff(want, resp.Folders); diff != "" {
		t.Errorf("folders mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenFolderLoadsOnce(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	f.api.GetMessagesFn = func(context.Context, model.Folder, model.MessageID) (model.Updates, error) {
		return model.Updates{FoldersMessages: model.FoldersMessages{
			notes.ID: model.NewMessageMap(model.Message{ID: 3, FolderID: notes.ID, Text: "hi"}),
		}}, nil
	}
	ctx := context.Background()

	for range 2 {
		resp, err := f.folders.OpenFolder(ctx, &FolderRequest{FolderID: notes.ID})
		if err != nil {
			t.Fatal(err)
		}
		if len(resp.Messages) != 1 {
			t.Fatalf("messages = %+v", resp.Messages)
		}
	}
	if n := f.api.Count("GetMessages"); n != 1 {
		t.Errorf("GetMessages called %d times, want 1", n)
	}
	if f.store.ActiveFolderID() != notes.ID {
		t.Errorf("active folder = %d", f.store.ActiveFolderID())
	}

	if _, err := f.folders.OpenFolder(ctx, &FolderRequest{FolderID: 404}); grpcstatus.Code(err) != codes.NotFound {
		t.Errorf("unknown folder: code = %v, want NotFound", grpcstatus.Code(err))
	}
}

func TestLoadMoreUsesOldestLoaded(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	f.store.SetFoldersMessages(model.FoldersMessages{
		notes.ID: model.NewMessageMap(model.Message{ID: 9}, model.Message{ID: 5}),
	})

	var before model.MessageID
	f.api.GetMessagesFn = func(_ context.Context, _ model.Folder, b model.MessageID) (model.Updates, error) {
		before = b
		return model.Updates{}, nil
	}
	if _, err := f.folders.LoadMore(context.Background(), &FolderRequest{FolderID: notes.ID}); err != nil {
		t.Fatal(err)
	}
	if before != 5 {
		t.Errorf("before = %d, want 5", before)
	}
}

func TestSetDraftKeepsLoadedMedia(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	f.store.SetFoldersMessages(model.FoldersMessages{
		notes.ID: model.NewMessageMap(model.Message{ID: 4, Text: "old", Media: []model.Media{{ID: 7}}}),
	})
	ctx := context.Background()

	resp, err := f.messages.SetDraft(ctx, &SetDraftRequest{FolderID: notes.ID, ID: 4, Text: "new"})
	if err != nil {
		t.Fatal(err)
	}
	want := &model.InputMessage{ID: 4, Text: "new", MediaIDs: []model.MessageID{7}}
	if diff := cmp.Diff(want, resp.Draft); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}

	_, err = f.messages.SetDraft(ctx, &SetDraftRequest{
		FolderID: notes.ID,
		Text:     "x",
		Files:    []string{filepath.Join(t.TempDir(), "missing")},
	})
	if grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("missing file: code = %v, want InvalidArgument", grpcstatus.Code(err))
	}
}

func TestSubmitDraftWithoutDraft(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	_, err := f.messages.SubmitDraft(context.Background(), &FolderRequest{FolderID: notes.ID})
	if grpcstatus.Code(err) != codes.FailedPrecondition {
		t.Errorf("code = %v, want FailedPrecondition", grpcstatus.Code(err))
	}
}

func TestSubmitDraftCreates(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	ctx := context.Background()

	if _, err := f.messages.SetDraft(ctx, &SetDraftRequest{FolderID: notes.ID, Text: "hello"}); err != nil {
		t.Fatal(err)
	}
	resp, err := f.messages.SubmitDraft(ctx, &FolderRequest{FolderID: notes.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.OK || resp.Draft != nil {
		t.Errorf("SubmitDraft = %+v", resp)
	}
	calls := f.api.CallsTo("CreateMessage")
	if len(calls) != 1 || calls[0].Input.Text != "hello" {
		t.Errorf("CreateMessage calls = %+v", calls)
	}
}

func TestMoveMessageNotLoaded(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	_, err := f.messages.MoveMessage(context.Background(), &MoveMessageRequest{FromFolderID: notes.ID, ID: 1, ToFolderID: 1})
	if grpcstatus.Code(err) != codes.NotFound {
		t.Errorf("code = %v, want NotFound", grpcstatus.Code(err))
	}
}

func TestFolderDefaultsToActive(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	ctx := context.Background()

	if _, err := f.messages.Search(ctx, &SearchRequest{Query: "x"}); grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("no active folder: code = %v, want InvalidArgument", grpcstatus.Code(err))
	}

	f.store.SetActiveFolderID(notes.ID)
	f.api.SearchMessagesFn = func(_ context.Context, q string, folder model.Folder) (*model.MessageMap, error) {
		return model.NewMessageMap(model.Message{ID: 2, FolderID: folder.ID, Text: q}), nil
	}
	resp, err := f.messages.Search(ctx, &SearchRequest{Query: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.OK || len(resp.Messages) != 1 || resp.Messages[0].FolderID != notes.ID {
		t.Errorf("Search = %+v", resp)
	}
}

func TestRefreshWaitsForSettle(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := f.messages.Refresh(ctx, &RefreshRequest{
		FolderID: notes.ID,
		IDs:      []model.MessageID{1, 1, 2},
		Wait:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]model.MessageID{1, 2}, resp.Accepted); diff != "" {
		t.Errorf("accepted mismatch (-want +got):\n%s", diff)
	}
	if !resp.Settled {
		t.Error("refresh not settled")
	}
	if n := f.api.Count("RefreshMessages"); n != 1 {
		t.Errorf("RefreshMessages called %d times, want 1", n)
	}
}

func TestRefreshWaitGivesUpOnFailure(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	f.api.RefreshMessagesFn = func(context.Context, model.Folder, []model.MessageID) (model.Updates, error) {
		return model.Updates{}, errors.New("boom")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	resp, err := f.messages.Refresh(ctx, &RefreshRequest{FolderID: notes.ID, IDs: []model.MessageID{1}, Wait: true})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Settled {
		t.Error("failed refresh reported as settled")
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		prefixes []string
		kind     string
		want     bool
	}{
		{nil, "state.changed", true},
		{[]string{"state."}, "state.changed", true},
		{[]string{"upload.", "message."}, "message.send_failed", true},
		{[]string{"upload."}, "state.changed", false},
	}
	for _, tt := range tests {
		if got := matches(tt.prefixes, tt.kind); got != tt.want {
			t.Errorf("matches(%v, %q) = %v, want %v", tt.prefixes, tt.kind, got, tt.want)
		}
	}
}

func TestEnvelope(t *testing.T) {
	s := NewEventService(bus.New(), "main", nil)
	evt := bus.NewEvent(bus.KindMessageSendFailed, actions.SendFailed{FolderID: 100, Error: "nope"})

	got := s.envelope(evt)
	if got.ID == "" || got.Session != "main" || got.Kind != bus.KindMessageSendFailed {
		t.Errorf("envelope = %+v", got)
	}
	var payload actions.SendFailed
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.FolderID != 100 || payload.Error != "nope" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestCodecName(t *testing.T) {
	var c jsonCodec
	data, err := c.Marshal(&RefreshRequest{FolderID: 3, IDs: []model.MessageID{1}})
	if err != nil {
		t.Fatal(err)
	}
	var out RefreshRequest
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.FolderID != 3 || c.Name() != CodecName {
		t.Errorf("decoded %+v with codec %q", out, c.Name())
	}
}
