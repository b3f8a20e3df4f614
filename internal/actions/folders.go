package actions

import (
	"context"
	"slices"

	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/remote"
	"github.com/matheus3301/stash/internal/state"
	"go.uber.org/zap"
)

// GeneralFolderTitle is the title of the virtual folder keyed by the user id.
const GeneralFolderTitle = "General"

// Folders holds the folder list actions.
type Folders struct {
	api     remote.API
	store   *state.Store
	merger  Merger
	session Session
	logger  *zap.Logger
}

// NewFolders creates the folder actions.
func NewFolders(api remote.API, s *state.Store, m Merger, sess Session, logger *zap.Logger) *Folders {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Folders{api: api, store: s, merger: m, session: sess, logger: logger}
}

// LoadFolders fetches the folder list. An unauthenticated failure logs the
// session out.
func (f *Folders) LoadFolders(ctx context.Context) bool {
	f.store.SetFoldersLoading(true)
	u, err := f.api.GetFolders(ctx)
	f.store.SetFoldersLoading(false)
	if err != nil {
		f.logger.Warn("load folders failed", zap.Error(err))
		if remote.IsUnauthenticated(err) {
			f.session.LogOut()
		}
		return false
	}
	f.merger.SetUpdates(u)
	return true
}

// SetActiveFolder selects the folder the view is showing. Zero clears it.
func (f *Folders) SetActiveFolder(id model.FolderID) {
	f.store.SetActiveFolderID(id)
}

// GetActiveFolder returns the selected folder, including the general one.
func (f *Folders) GetActiveFolder() (model.Folder, bool) {
	return activeFolder(f.store)
}

// List returns the folders with the general folder first.
func (f *Folders) List() []model.Folder {
	return FoldersWithGeneral(f.store.User(), f.store.Folders())
}

// Find looks a folder up by id, including the general one.
func (f *Folders) Find(id model.FolderID) (model.Folder, bool) {
	return findFolder(f.List(), id)
}

// FoldersWithGeneral prepends the virtual general folder, keyed by the user
// id, to the loaded folders. Without a user only the loaded folders are
// returned.
func FoldersWithGeneral(user *model.User, folders []model.Folder) []model.Folder {
	if user == nil {
		return slices.Clone(folders)
	}
	out := make([]model.Folder, 0, len(folders)+1)
	out = append(out, model.Folder{ID: model.FolderID(user.ID), Title: GeneralFolderTitle})
	return append(out, folders...)
}

// Categories returns the distinct folder categories in first-seen order.
func Categories(folders []model.Folder) []string {
	var out []string
	for _, f := range folders {
		if !slices.Contains(out, f.Category) {
			out = append(out, f.Category)
		}
	}
	return out
}

func activeFolder(s *state.Store) (model.Folder, bool) {
	id := s.ActiveFolderID()
	if id == 0 {
		return model.Folder{}, false
	}
	return findFolder(FoldersWithGeneral(s.User(), s.Folders()), id)
}

func findFolder(folders []model.Folder, id model.FolderID) (model.Folder, bool) {
	i := slices.IndexFunc(folders, func(f model.Folder) bool { return f.ID == id })
	if i < 0 {
		return model.Folder{}, false
	}
	return folders[i], true
}
