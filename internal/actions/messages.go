package actions

import (
	"context"
	"slices"

	"github.com/matheus3301/stash/internal/bus"
	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/remote"
	"github.com/matheus3301/stash/internal/state"
	"go.uber.org/zap"
)

// Merger applies an Updates bundle to the store.
type Merger interface {
	SetUpdates(u model.Updates)
}

// Uploader attaches draft files to a confirmed message. UploadFiles must
// clear the folder's draft once every file is done.
type Uploader interface {
	UploadFiles(ctx context.Context, msg model.InputMessage, folder model.Folder, parentID model.MessageID)
	ResetUploadingFiles(files []model.InputFile)
}

// Session is logged out when the remote rejects the credentials.
type Session interface {
	LogOut()
}

// Messages holds the message lifecycle actions. Callers serialize
// create/edit/delete calls against one folder's draft.
type Messages struct {
	api      remote.API
	store    *state.Store
	merger   Merger
	uploader Uploader
	session  Session
	bus      *bus.Bus
	logger   *zap.Logger
}

// NewMessages creates the message actions.
func NewMessages(api remote.API, s *state.Store, m Merger, up Uploader, sess Session, b *bus.Bus, logger *zap.Logger) *Messages {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Messages{
		api:      api,
		store:    s,
		merger:   m,
		uploader: up,
		session:  sess,
		bus:      b,
		logger:   logger,
	}
}

// LoadFolderMessages fetches the page of messages older than before, or the
// latest page when before is zero. The folder's loading flag is set for the
// duration of the call but does not prevent concurrent loads.
func (m *Messages) LoadFolderMessages(ctx context.Context, folder model.Folder, before model.MessageID) bool {
	m.store.SetFolderLoading(folder.ID, true)
	u, err := m.api.GetMessages(ctx, folder, before)
	if err != nil {
		m.store.SetFolderLoading(folder.ID, false)
		m.logger.Warn("load messages failed",
			zap.Int64("folder_id", int64(folder.ID)),
			zap.Int64("before", int64(before)),
			zap.Error(err))
		if remote.IsUnauthenticated(err) {
			m.session.LogOut()
		}
		return false
	}

	m.merger.SetUpdates(u)
	m.store.SetFolderLoading(folder.ID, false)
	return true
}

// CreateMessage sends a new message. On failure the draft is kept for a
// retry. Files are handed to the uploader under the new message's id and the
// draft stays until the uploader finishes; otherwise a final create clears it.
func (m *Messages) CreateMessage(ctx context.Context, input model.InputMessage, folder model.Folder, final bool) bool {
	u, err := m.api.CreateMessage(ctx, input, folder)
	if err != nil {
		m.logger.Warn("create message failed", zap.Int64("folder_id", int64(folder.ID)), zap.Error(err))
		m.bus.Publish(bus.NewEvent(bus.KindMessageSendFailed, SendFailed{FolderID: folder.ID, Error: err.Error()}))
		return false
	}
	m.merger.SetUpdates(u)

	if input.HasFiles() {
		if parentID := createdID(u, folder.ID); parentID != 0 {
			m.uploader.UploadFiles(ctx, input, folder, parentID)
		} else {
			m.logger.Warn("created message id unknown, files not uploaded",
				zap.Int64("folder_id", int64(folder.ID)),
				zap.Int("files", len(input.InputFiles)))
		}
	}

	if final && !input.HasFiles() {
		m.ResetSendingMessage(folder.ID)
	}
	return true
}

// createdID returns the id of the message a create produced. An explicit id
// wins; otherwise the newest entry of the folder's map in the bundle is taken.
func createdID(u model.Updates, folderID model.FolderID) model.MessageID {
	if u.CreatedID != 0 {
		return u.CreatedID
	}
	msg, ok := u.FoldersMessages[folderID].First()
	if !ok {
		return 0
	}
	return msg.ID
}

// EditMessage edits an existing message. With updated false the remote call
// is skipped, for drafts where only attachments changed. An unchanged-content
// rejection counts as success. The draft is cleared whatever the outcome,
// by the uploader when files are handed off after a successful edit.
func (m *Messages) EditMessage(ctx context.Context, input model.InputMessage, folder model.Folder, updated bool) EditResult {
	var res EditResult
	if !updated {
		res = EditResult{Outcome: EditSkipped}
	} else {
		u, err := m.api.EditMessage(ctx, input, folder)
		switch {
		case err == nil:
			m.merger.SetUpdates(u)
			res = EditResult{Outcome: EditApplied, Updates: u}
		case remote.IsNotModified(err):
			res = EditResult{Outcome: EditNoOp}
		default:
			m.logger.Warn("edit message failed",
				zap.Int64("folder_id", int64(folder.ID)),
				zap.Int64("message_id", int64(input.ID)),
				zap.Error(err))
			res = EditResult{Outcome: EditFailed, Err: err}
		}
	}

	if res.OK() && input.HasFiles() && input.ID != 0 {
		// The uploader clears the draft once the files are done.
		m.uploader.UploadFiles(ctx, input, folder, input.ID)
		return res
	}
	m.ResetSendingMessage(folder.ID)
	return res
}

// DeleteMessage deletes a message and its media messages.
func (m *Messages) DeleteMessage(ctx context.Context, req model.DeleteRequest, folder model.Folder) bool {
	u, err := m.api.DeleteMessage(ctx, req, folder)
	if err != nil {
		m.logger.Warn("delete message failed",
			zap.Int64("folder_id", int64(folder.ID)),
			zap.Int64("message_id", int64(req.ID)),
			zap.Error(err))
		return false
	}
	m.merger.SetUpdates(u)
	return true
}

// MoveMessage moves msg from the active folder to to: the remote copies it,
// then the source copy is deleted. Without an active folder nothing is
// called. A failed delete leaves both copies and is reported as
// MoveDuplicated.
func (m *Messages) MoveMessage(ctx context.Context, msg model.Message, to model.Folder) MoveResult {
	from, ok := activeFolder(m.store)
	if !ok {
		return MoveSkipped
	}

	u, err := m.api.MoveMessage(ctx, msg, from, to)
	if err != nil {
		m.logger.Warn("move message failed",
			zap.Int64("message_id", int64(msg.ID)),
			zap.Int64("from", int64(from.ID)),
			zap.Int64("to", int64(to.ID)),
			zap.Error(err))
		return MoveFailed
	}
	m.merger.SetUpdates(u)

	if !m.DeleteMessage(ctx, model.DeleteRequest{ID: msg.ID, MediaIDs: msg.MediaIDs()}, from) {
		m.logger.Warn("message copied but source not deleted",
			zap.Int64("message_id", int64(msg.ID)),
			zap.Int64("from", int64(from.ID)),
			zap.Int64("to", int64(to.ID)))
		m.bus.Publish(bus.NewEvent(bus.KindMessageMoveGap, MoveGap{Message: msg, From: from, To: to}))
		return MoveDuplicated
	}
	return MoveCompleted
}

// SearchMessages replaces the search results with the matches of query.
func (m *Messages) SearchMessages(ctx context.Context, query string, folder model.Folder) bool {
	mm, err := m.api.SearchMessages(ctx, query, folder)
	if err != nil {
		m.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return false
	}
	if mm == nil {
		return false
	}
	m.store.SetSearchMessages(mm)
	return true
}

// ResetSearch drops the results and the remote search session.
func (m *Messages) ResetSearch(ctx context.Context) {
	if err := m.api.ResetSearch(ctx); err != nil {
		m.logger.Warn("reset search failed", zap.Error(err))
	}
	m.store.SetSearchMessages(nil)
}

// GetSendingMessage returns the folder's draft, or nil.
func (m *Messages) GetSendingMessage(folderID model.FolderID) *model.InputMessage {
	return m.store.SendingMessage(folderID)
}

// SetSendingMessage replaces the folder's draft.
func (m *Messages) SetSendingMessage(folderID model.FolderID, msg *model.InputMessage) {
	m.store.SetSendingMessage(folderID, msg)
}

// ResetSendingMessage discards the folder's draft and cancels its uploads.
func (m *Messages) ResetSendingMessage(folderID model.FolderID) {
	if draft := m.store.SendingMessage(folderID); draft.HasFiles() {
		m.uploader.ResetUploadingFiles(draft.InputFiles)
	}
	m.store.SetSendingMessage(folderID, nil)
}

// GetMessageWebpage returns a stored message's link preview, or nil.
func (m *Messages) GetMessageWebpage(folder model.Folder, id model.MessageID) *model.Webpage {
	return m.store.MessageWebpage(folder.ID, id)
}

// SubmitDraft sends the folder's draft: a create when it has no id yet,
// otherwise an edit that skips the remote call when only files changed.
func (m *Messages) SubmitDraft(ctx context.Context, folder model.Folder) bool {
	draft := m.store.SendingMessage(folder.ID)
	if draft == nil || (draft.Text == "" && !draft.HasFiles()) {
		return false
	}
	if draft.ID == 0 {
		return m.CreateMessage(ctx, *draft, folder, true)
	}

	updated := true
	if stored, ok := m.store.FolderMessages(folder.ID).Get(draft.ID); ok {
		updated = stored.Text != draft.Text || !slices.Equal(stored.MediaIDs(), draft.MediaIDs)
	}
	return m.EditMessage(ctx, *draft, folder, updated).OK()
}

// SendFailed is the payload of message.send_failed events.
type SendFailed struct {
	FolderID model.FolderID
	Error    string
}
