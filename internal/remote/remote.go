package remote

import (
	"context"

	"github.com/matheus3301/stash/internal/model"
)

// API is the remote collaborator. Every mutating call returns an Updates
// bundle holding the complete resulting slices for whatever it touched.
type API interface {
	GetMe(ctx context.Context) (model.User, error)
	GetFolders(ctx context.Context) (model.Updates, error)

	// GetMessages fetches a page of messages older than before, or the
	// latest page when before is zero.
	GetMessages(ctx context.Context, folder model.Folder, before model.MessageID) (model.Updates, error)
	CreateMessage(ctx context.Context, msg model.InputMessage, folder model.Folder) (model.Updates, error)

	// EditMessage fails with an *Error whose Message is MsgNotModified when
	// the content is identical to the stored one.
	EditMessage(ctx context.Context, msg model.InputMessage, folder model.Folder) (model.Updates, error)
	DeleteMessage(ctx context.Context, req model.DeleteRequest, folder model.Folder) (model.Updates, error)
	MoveMessage(ctx context.Context, msg model.Message, from, to model.Folder) (model.Updates, error)
	RefreshMessages(ctx context.Context, folder model.Folder, ids []model.MessageID) (model.Updates, error)
	SearchMessages(ctx context.Context, query string, folder model.Folder) (*model.MessageMap, error)
	ResetSearch(ctx context.Context) error
	UploadFile(ctx context.Context, folder model.Folder, parentID model.MessageID, file model.InputFile) (model.Updates, error)

	// ListenUpdates registers fn for unsolicited server pushes. fn is called
	// asynchronously. The returned function unregisters it.
	ListenUpdates(fn func(model.Updates)) (unsubscribe func())
}
