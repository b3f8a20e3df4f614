package api

import (
	"context"
	"time"

	"github.com/matheus3301/stash/internal/actions"
	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/outbox"
	"github.com/matheus3301/stash/internal/refresh"
	"github.com/matheus3301/stash/internal/state"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// MessageService implements MessageServer.
type MessageService struct {
	folders   *actions.Folders
	messages  *actions.Messages
	store     *state.Store
	coalescer *refresh.Coalescer
	session   StatusSource
}

// NewMessageService creates a new message service.
func NewMessageService(f *actions.Folders, m *actions.Messages, s *state.Store, c *refresh.Coalescer, sess StatusSource) *MessageService {
	return &MessageService{folders: f, messages: m, store: s, coalescer: c, session: sess}
}

func (s *MessageService) folder(id model.FolderID) (model.Folder, error) {
	if err := requireReady(s.session); err != nil {
		return model.Folder{}, err
	}
	if id == 0 {
		f, ok := s.folders.GetActiveFolder()
		if !ok {
			return model.Folder{}, grpcstatus.Errorf(codes.InvalidArgument, "no folder given and none open")
		}
		return f, nil
	}
	f, ok := s.folders.Find(id)
	if !ok {
		return model.Folder{}, grpcstatus.Errorf(codes.NotFound, "folder %d not found", id)
	}
	return f, nil
}

func (s *MessageService) loaded(f model.Folder, id model.MessageID) (model.Message, error) {
	msg, ok := s.store.FolderMessages(f.ID).Get(id)
	if !ok {
		return model.Message{}, grpcstatus.Errorf(codes.NotFound, "message %d not loaded in folder %d", id, f.ID)
	}
	return msg, nil
}

// SetDraft replaces the folder's draft. Files are local paths. Editing a
// loaded message without media ids keeps its current media.
func (s *MessageService) SetDraft(_ context.Context, req *SetDraftRequest) (*DraftResponse, error) {
	f, err := s.folder(req.FolderID)
	if err != nil {
		return nil, err
	}

	draft := &model.InputMessage{ID: req.ID, Text: req.Text, MediaIDs: req.MediaIDs}
	for _, path := range req.Files {
		file, err := outbox.NewInputFile(path)
		if err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
		}
		draft.InputFiles = append(draft.InputFiles, file)
	}
	if draft.ID != 0 && draft.MediaIDs == nil {
		if msg, ok := s.store.FolderMessages(f.ID).Get(draft.ID); ok {
			draft.MediaIDs = msg.MediaIDs()
		}
	}

	s.messages.SetSendingMessage(f.ID, draft)
	return &DraftResponse{Draft: s.messages.GetSendingMessage(f.ID)}, nil
}

func (s *MessageService) SubmitDraft(ctx context.Context, req *FolderRequest) (*SubmitDraftResponse, error) {
	f, err := s.folder(req.FolderID)
	if err != nil {
		return nil, err
	}
	if s.messages.GetSendingMessage(f.ID) == nil {
		return nil, grpcstatus.Errorf(codes.FailedPrecondition, "folder %d has no draft", f.ID)
	}
	ok := s.messages.SubmitDraft(ctx, f)
	return &SubmitDraftResponse{OK: ok, Draft: s.messages.GetSendingMessage(f.ID)}, nil
}

func (s *MessageService) CancelDraft(_ context.Context, req *FolderRequest) (*DraftResponse, error) {
	f, err := s.folder(req.FolderID)
	if err != nil {
		return nil, err
	}
	s.messages.ResetSendingMessage(f.ID)
	return &DraftResponse{}, nil
}

func (s *MessageService) DeleteMessage(ctx context.Context, req *MessageRequest) (*OKResponse, error) {
	f, err := s.folder(req.FolderID)
	if err != nil {
		return nil, err
	}
	del := model.DeleteRequest{ID: req.ID}
	if msg, ok := s.store.FolderMessages(f.ID).Get(req.ID); ok {
		del.MediaIDs = msg.MediaIDs()
	}
	return &OKResponse{OK: s.messages.DeleteMessage(ctx, del, f)}, nil
}

// MoveMessage opens the source folder and moves one of its loaded messages.
func (s *MessageService) MoveMessage(ctx context.Context, req *MoveMessageRequest) (*MoveMessageResponse, error) {
	from, err := s.folder(req.FromFolderID)
	if err != nil {
		return nil, err
	}
	to, err := s.folder(req.ToFolderID)
	if err != nil {
		return nil, err
	}
	msg, err := s.loaded(from, req.ID)
	if err != nil {
		return nil, err
	}

	s.folders.SetActiveFolder(from.ID)
	res := s.messages.MoveMessage(ctx, msg, to)
	return &MoveMessageResponse{Result: res.String(), OK: res.OK()}, nil
}

func (s *MessageService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	f, err := s.folder(req.FolderID)
	if err != nil {
		return nil, err
	}
	if req.Query == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "empty query")
	}
	ok := s.messages.SearchMessages(ctx, req.Query, f)
	return &SearchResponse{OK: ok, Messages: s.store.SearchMessages().Messages()}, nil
}

func (s *MessageService) ResetSearch(ctx context.Context, _ *ResetSearchRequest) (*OKResponse, error) {
	if err := requireReady(s.session); err != nil {
		return nil, err
	}
	s.messages.ResetSearch(ctx)
	return &OKResponse{OK: true}, nil
}

// Refresh queues ids on the folder's coalescer. With Wait the call returns
// once every accepted id has settled or ctx is done.
func (s *MessageService) Refresh(ctx context.Context, req *RefreshRequest) (*RefreshResponse, error) {
	f, err := s.folder(req.FolderID)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond

	// Buffered so callbacks of an abandoned wait never block.
	settled := make(chan struct{}, len(req.IDs))
	var onSettled func()
	if req.Wait {
		onSettled = func() { settled <- struct{}{} }
	}

	resp := &RefreshResponse{Accepted: []model.MessageID{}}
	for _, id := range req.IDs {
		if s.coalescer.RefreshMessage(f, id, timeout, onSettled) {
			resp.Accepted = append(resp.Accepted, id)
		}
	}
	if !req.Wait {
		return resp, nil
	}

	for range resp.Accepted {
		select {
		case <-settled:
		case <-ctx.Done():
			return resp, nil
		}
	}
	resp.Settled = true
	return resp, nil
}
