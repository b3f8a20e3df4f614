package state

import (
	"maps"
	"sync"

	"github.com/matheus3301/stash/internal/bus"
	"github.com/matheus3301/stash/internal/model"
)

// Slice names one independently replaced part of the client state.
type Slice string

const (
	SliceUser            Slice = "user"
	SliceFolders         Slice = "folders"
	SliceFoldersLoading  Slice = "folders_loading"
	SliceActiveFolder    Slice = "active_folder"
	SliceFoldersMessages Slice = "folders_messages"
	SliceLoadingFolders  Slice = "loading_folders"
	SliceSearchMessages  Slice = "search_messages"
	SliceSendingMessages Slice = "sending_messages"
)

// Change is the payload of a state.changed event.
type Change struct {
	Slice   Slice
	Version uint64
}

// Snapshot is a read-only view of the state at one version. The maps and
// slices it holds are never mutated after being stored; callers must not
// mutate them either.
type Snapshot struct {
	Version         uint64
	User            *model.User
	Folders         []model.Folder
	FoldersLoading  bool
	ActiveFolderID  model.FolderID
	FoldersMessages model.FoldersMessages
	LoadingFolders  map[model.FolderID]bool
	SearchMessages  *model.MessageMap
	SendingMessages map[model.FolderID]*model.InputMessage
}

// Store is the process-wide client state container. Every write replaces a
// whole slice and bumps the version; subscribers are notified on the bus.
type Store struct {
	mu       sync.RWMutex
	bus      *bus.Bus
	cur      Snapshot
	versions map[Slice]uint64
}

// New creates an empty store publishing change events on b.
func New(b *bus.Bus) *Store {
	return &Store{
		bus:      b,
		cur:      emptySnapshot(),
		versions: make(map[Slice]uint64),
	}
}

func emptySnapshot() Snapshot {
	return Snapshot{
		FoldersMessages: model.FoldersMessages{},
		LoadingFolders:  map[model.FolderID]bool{},
		SearchMessages:  model.NewMessageMap(),
		SendingMessages: map[model.FolderID]*model.InputMessage{},
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Version returns the global state version.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Version
}

// SliceVersion returns the version at which slice was last replaced.
func (s *Store) SliceVersion(slice Slice) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[slice]
}

// Subscribe registers an observer for state changes.
func (s *Store) Subscribe(bufSize int) (<-chan bus.Event, func()) {
	return s.bus.Subscribe(bus.KindStateChanged, bufSize)
}

// replace runs fn under the write lock, bumps the versions and publishes one
// change event per slice after unlocking.
func (s *Store) replace(fn func(cur *Snapshot), slices ...Slice) {
	s.mu.Lock()
	fn(&s.cur)
	s.cur.Version++
	v := s.cur.Version
	for _, sl := range slices {
		s.versions[sl] = v
	}
	s.mu.Unlock()

	for _, sl := range slices {
		s.bus.Publish(bus.NewEvent(bus.KindStateChanged, Change{Slice: sl, Version: v}))
	}
}

// User returns the signed-in user, or nil.
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.User
}

// SetUser replaces the user slice.
func (s *Store) SetUser(u *model.User) {
	s.replace(func(cur *Snapshot) { cur.User = u }, SliceUser)
}

// Folders returns the folder list.
func (s *Store) Folders() []model.Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Folders
}

// SetFolders replaces the folder list.
func (s *Store) SetFolders(folders []model.Folder) {
	s.replace(func(cur *Snapshot) { cur.Folders = folders }, SliceFolders)
}

// FoldersLoading reports whether the folder list is being fetched.
func (s *Store) FoldersLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.FoldersLoading
}

// SetFoldersLoading sets the folder list loading flag.
func (s *Store) SetFoldersLoading(loading bool) {
	s.replace(func(cur *Snapshot) { cur.FoldersLoading = loading }, SliceFoldersLoading)
}

// ActiveFolderID returns the folder selected by the view, zero if none.
func (s *Store) ActiveFolderID() model.FolderID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.ActiveFolderID
}

// SetActiveFolderID selects a folder; zero clears the selection.
func (s *Store) SetActiveFolderID(id model.FolderID) {
	s.replace(func(cur *Snapshot) { cur.ActiveFolderID = id }, SliceActiveFolder)
}

// FoldersMessages returns the folder-to-messages map.
func (s *Store) FoldersMessages() model.FoldersMessages {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.FoldersMessages
}

// FolderMessages returns the messages of one folder, or nil.
func (s *Store) FolderMessages(id model.FolderID) *model.MessageMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.FoldersMessages[id]
}

// SetFoldersMessages replaces the whole folder-to-messages map.
func (s *Store) SetFoldersMessages(fm model.FoldersMessages) {
	if fm == nil {
		fm = model.FoldersMessages{}
	}
	s.replace(func(cur *Snapshot) { cur.FoldersMessages = fm }, SliceFoldersMessages)
}

// Apply replaces every slice present in u in one write, so readers never see
// part of a bundle.
func (s *Store) Apply(u model.Updates) {
	var changed []Slice
	if u.Folders != nil {
		changed = append(changed, SliceFolders)
	}
	if u.FoldersMessages != nil {
		changed = append(changed, SliceFoldersMessages)
	}
	if u.SearchMessages != nil {
		changed = append(changed, SliceSearchMessages)
	}
	if len(changed) == 0 {
		return
	}
	s.replace(func(cur *Snapshot) {
		if u.Folders != nil {
			cur.Folders = u.Folders
		}
		if u.FoldersMessages != nil {
			cur.FoldersMessages = u.FoldersMessages
		}
		if u.SearchMessages != nil {
			cur.SearchMessages = u.SearchMessages
		}
	}, changed...)
}

// MessageWebpage returns the webpage preview of a stored message, or nil.
func (s *Store) MessageWebpage(folderID model.FolderID, id model.MessageID) *model.Webpage {
	msg, ok := s.FolderMessages(folderID).Get(id)
	if !ok {
		return nil
	}
	return msg.Webpage
}

// FolderLoading reports the advisory loading flag of a folder.
func (s *Store) FolderLoading(id model.FolderID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.LoadingFolders[id]
}

// SetFolderLoading sets the advisory loading flag of a folder.
func (s *Store) SetFolderLoading(id model.FolderID, loading bool) {
	s.replace(func(cur *Snapshot) {
		next := maps.Clone(cur.LoadingFolders)
		if loading {
			next[id] = true
		} else {
			delete(next, id)
		}
		cur.LoadingFolders = next
	}, SliceLoadingFolders)
}

// SearchMessages returns the results of the last search.
func (s *Store) SearchMessages() *model.MessageMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.SearchMessages
}

// SetSearchMessages replaces the search results.
func (s *Store) SetSearchMessages(mm *model.MessageMap) {
	if mm == nil {
		mm = model.NewMessageMap()
	}
	s.replace(func(cur *Snapshot) { cur.SearchMessages = mm }, SliceSearchMessages)
}

// SendingMessage returns the folder's draft, or nil.
func (s *Store) SendingMessage(id model.FolderID) *model.InputMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.SendingMessages[id]
}

// SetSendingMessage replaces the folder's draft. A nil draft removes it.
func (s *Store) SetSendingMessage(id model.FolderID, msg *model.InputMessage) {
	s.replace(func(cur *Snapshot) {
		next := maps.Clone(cur.SendingMessages)
		if msg == nil {
			delete(next, id)
		} else {
			next[id] = msg
		}
		cur.SendingMessages = next
	}, SliceSendingMessages)
}

// Reset drops every slice, keeping the version counter monotonic.
func (s *Store) Reset() {
	s.replace(func(cur *Snapshot) {
		v := cur.Version
		*cur = emptySnapshot()
		cur.Version = v
	},
		SliceUser, SliceFolders, SliceFoldersLoading, SliceActiveFolder,
		SliceFoldersMessages, SliceLoadingFolders, SliceSearchMessages, SliceSendingMessages,
	)
}
