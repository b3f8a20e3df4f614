package remotetest

import (
	"context"
	"slices"
	"sync"

	"github.com/matheus3301/stash/internal/model"
)

// Call records one invocation of the fake.
type Call struct {
	Method   string
	Folder   model.FolderID
	ToFolder model.FolderID
	ID       model.MessageID
	IDs      []model.MessageID
	Query    string
	Input    model.InputMessage
	File     model.InputFile
}

// Fake implements remote.API. Unset handlers succeed with an empty bundle.
type Fake struct {
	GetMeFn           func(ctx context.Context) (model.User, error)
	GetFoldersFn      func(ctx context.Context) (model.Updates, error)
	GetMessagesFn     func(ctx context.Context, folder model.Folder, before model.MessageID) (model.Updates, error)
	CreateMessageFn   func(ctx context.Context, msg model.InputMessage, folder model.Folder) (model.Updates, error)
	EditMessageFn     func(ctx context.Context, msg model.InputMessage, folder model.Folder) (model.Updates, error)
	DeleteMessageFn   func(ctx context.Context, req model.DeleteRequest, folder model.Folder) (model.Updates, error)
	MoveMessageFn     func(ctx context.Context, msg model.Message, from, to model.Folder) (model.Updates, error)
	RefreshMessagesFn func(ctx context.Context, folder model.Folder, ids []model.MessageID) (model.Updates, error)
	SearchMessagesFn  func(ctx context.Context, query string, folder model.Folder) (*model.MessageMap, error)
	ResetSearchFn     func(ctx context.Context) error
	UploadFileFn      func(ctx context.Context, folder model.Folder, parentID model.MessageID, file model.InputFile) (model.Updates, error)

	mu        sync.Mutex
	calls     []Call
	listeners map[int]func(model.Updates)
	nextID    int
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

// Calls returns every recorded call in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallsTo returns the recorded calls of one method.
func (f *Fake) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times method was called.
func (f *Fake) Count(method string) int {
	return len(f.CallsTo(method))
}

// Push delivers u to every registered listener.
func (f *Fake) Push(u model.Updates) {
	f.mu.Lock()
	fns := make([]func(model.Updates), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

// Listeners returns the number of registered push listeners.
func (f *Fake) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *Fake) GetMe(ctx context.Context) (model.User, error) {
	f.record(Call{Method: "GetMe"})
	if f.GetMeFn != nil {
		return f.GetMeFn(ctx)
	}
	return model.User{ID: 1, Name: "test"}, nil
}

func (f *Fake) GetFolders(ctx context.Context) (model.Updates, error) {
	f.record(Call{Method: "GetFolders"})
	if f.GetFoldersFn != nil {
		return f.GetFoldersFn(ctx)
	}
	return model.Updates{}, nil
}

func (f *Fake) GetMessages(ctx context.Context, folder model.Folder, before model.MessageID) (model.Updates, error) {
	f.record(Call{Method: "GetMessages", Folder: folder.ID, ID: before})
	if f.GetMessagesFn != nil {
		return f.GetMessagesFn(ctx, folder, before)
	}
	return model.Updates{}, nil
}

func (f *Fake) CreateMessage(ctx context.Context, msg model.InputMessage, folder model.Folder) (model.Updates, error) {
	f.record(Call{Method: "CreateMessage", Folder: folder.ID, Input: msg})
	if f.CreateMessageFn != nil {
		return f.CreateMessageFn(ctx, msg, folder)
	}
	return model.Updates{}, nil
}

func (f *Fake) EditMessage(ctx context.Context, msg model.InputMessage, folder model.Folder) (model.Updates, error) {
	f.record(Call{Method: "EditMessage", Folder: folder.ID, ID: msg.ID, Input: msg})
	if f.EditMessageFn != nil {
		return f.EditMessageFn(ctx, msg, folder)
	}
	return model.Updates{}, nil
}

func (f *Fake) DeleteMessage(ctx context.Context, req model.DeleteRequest, folder model.Folder) (model.Updates, error) {
	f.record(Call{Method: "DeleteMessage", Folder: folder.ID, ID: req.ID, IDs: req.MediaIDs})
	if f.DeleteMessageFn != nil {
		return f.DeleteMessageFn(ctx, req, folder)
	}
	return model.Updates{}, nil
}

func (f *Fake) MoveMessage(ctx context.Context, msg model.Message, from, to model.Folder) (model.Updates, error) {
	f.record(Call{Method: "MoveMessage", Folder: from.ID, ToFolder: to.ID, ID: msg.ID})
	if f.MoveMessageFn != nil {
		return f.MoveMessageFn(ctx, msg, from, to)
	}
	return model.Updates{}, nil
}

func (f *Fake) RefreshMessages(ctx context.Context, folder model.Folder, ids []model.MessageID) (model.Updates, error) {
	f.record(Call{Method: "RefreshMessages", Folder: folder.ID, IDs: slices.Clone(ids)})
	if f.RefreshMessagesFn != nil {
		return f.RefreshMessagesFn(ctx, folder, ids)
	}
	return model.Updates{}, nil
}

func (f *Fake) SearchMessages(ctx context.Context, query string, folder model.Folder) (*model.MessageMap, error) {
	f.record(Call{Method: "SearchMessages", Folder: folder.ID, Query: query})
	if f.SearchMessagesFn != nil {
		return f.SearchMessagesFn(ctx, query, folder)
	}
	return model.NewMessageMap(), nil
}

func (f *Fake) ResetSearch(ctx context.Context) error {
	f.record(Call{Method: "ResetSearch"})
	if f.ResetSearchFn != nil {
		return f.ResetSearchFn(ctx)
	}
	return nil
}

func (f *Fake) UploadFile(ctx context.Context, folder model.Folder, parentID model.MessageID, file model.InputFile) (model.Updates, error) {
	f.record(Call{Method: "UploadFile", Folder: folder.ID, ID: parentID, File: file})
	if f.UploadFileFn != nil {
		return f.UploadFileFn(ctx, folder, parentID, file)
	}
	return model.Updates{}, nil
}

func (f *Fake) ListenUpdates(fn func(model.Updates)) func() {
	f.mu.Lock()
	if f.listeners == nil {
		f.listeners = make(map[int]func(model.Updates))
	}
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}
