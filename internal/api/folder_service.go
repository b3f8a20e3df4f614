package api

import (
	"context"

	"github.com/matheus3301/stash/internal/actions"
	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/refresh"
	"github.com/matheus3301/stash/internal/state"
	"github.com/matheus3301/stash/internal/status"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// StatusSource reports the session state.
type StatusSource interface {
	Status() status.State
}

// FolderService implements FolderServer.
type FolderService struct {
	folders   *actions.Folders
	messages  *actions.Messages
	store     *state.Store
	coalescer *refresh.Coalescer
	session   StatusSource
}

// NewFolderService creates a new folder service.
func NewFolderService(f *actions.Folders, m *actions.Messages, s *state.Store, c *refresh.Coalescer, sess StatusSource) *FolderService {
	return &FolderService{folders: f, messages: m, store: s, coalescer: c, session: sess}
}

func requireReady(sess StatusSource) error {
	if st := sess.Status(); st != status.Ready {
		return grpcstatus.Errorf(codes.FailedPrecondition, "session is %s, log in first", st)
	}
	return nil
}

func (s *FolderService) folder(id model.FolderID) (model.Folder, error) {
	if err := requireReady(s.session); err != nil {
		return model.Folder{}, err
	}
	f, ok := s.folders.Find(id)
	if !ok {
		return model.Folder{}, grpcstatus.Errorf(codes.NotFound, "folder %d not found", id)
	}
	return f, nil
}

func (s *FolderService) ListFolders(ctx context.Context, req *ListFoldersRequest) (*ListFoldersResponse, error) {
	if err := requireReady(s.session); err != nil {
		return nil, err
	}
	if req.Reload && !s.folders.LoadFolders(ctx) {
		return nil, grpcstatus.Errorf(codes.Unavailable, "folders could not be loaded")
	}
	list := s.folders.List()
	return &ListFoldersResponse{
		Folders:      list,
		Categories:   actions.Categories(list),
		ActiveFolder: s.store.ActiveFolderID(),
	}, nil
}

// OpenFolder makes the folder active and loads its latest page unless it is
// already loaded.
func (s *FolderService) OpenFolder(ctx context.Context, req *FolderRequest) (*MessagesResponse, error) {
	f, err := s.folder(req.FolderID)
	if err != nil {
		return nil, err
	}
	s.folders.SetActiveFolder(f.ID)
	if s.store.FolderMessages(f.ID) == nil && !s.messages.LoadFolderMessages(ctx, f, 0) {
		return nil, grpcstatus.Errorf(codes.Unavailable, "messages of folder %d could not be loaded", f.ID)
	}
	return s.messagesResponse(f), nil
}

// LoadMore loads the page older than the oldest loaded message.
func (s *FolderService) LoadMore(ctx context.Context, req *FolderRequest) (*MessagesResponse, error) {
	f, err := s.folder(req.FolderID)
	if err != nil {
		return nil, err
	}
	var before model.MessageID
	if last, ok := s.store.FolderMessages(f.ID).Last(); ok {
		before = last.ID
	}
	if !s.messages.LoadFolderMessages(ctx, f, before) {
		return nil, grpcstatus.Errorf(codes.Unavailable, "messages of folder %d could not be loaded", f.ID)
	}
	return s.messagesResponse(f), nil
}

// ListMessages returns the loaded messages and starts polling the previews
// that are still pending.
func (s *FolderService) ListMessages(_ context.Context, req *FolderRequest) (*MessagesResponse, error) {
	f, err := s.folder(req.FolderID)
	if err != nil {
		return nil, err
	}
	resp := s.messagesResponse(f)
	for _, m := range resp.Messages {
		if m.Webpage != nil && m.Webpage.Pending {
			s.coalescer.RefreshMessageWebpage(s.store, f, m.ID)
		}
	}
	return resp, nil
}

func (s *FolderService) messagesResponse(f model.Folder) *MessagesResponse {
	return &MessagesResponse{
		Folder:   f,
		Messages: s.store.FolderMessages(f.ID).Messages(),
		Loading:  s.store.FolderLoading(f.ID),
	}
}
