package model

// FolderID identifies a folder. The virtual general folder uses the user's ID.
type FolderID int64

// MessageID identifies a message within a folder once the server has confirmed it.
type MessageID int64

// User is the signed-in account.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Folder is a named container of messages.
type Folder struct {
	ID       FolderID `json:"id"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
}

// Webpage is a link preview resolved asynchronously by the server.
type Webpage struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Pending     bool   `json:"pending"`
}

// Media is a file attached to a message. Each media item is stored as its own
// message on the server and grouped under the parent.
type Media struct {
	ID   MessageID `json:"id"`
	Name string    `json:"name"`
	Size int64     `json:"size"`
}

// Message is a server-confirmed message.
type Message struct {
	ID       MessageID `json:"id"`
	FolderID FolderID  `json:"folder_id"`
	Text     string    `json:"text"`
	Media    []Media   `json:"media,omitempty"`
	Webpage  *Webpage  `json:"webpage,omitempty"`
	Date     int64     `json:"date"`
	Edited   bool      `json:"edited,omitempty"`
}

// MediaIDs returns the IDs of the message's attached media.
func (m Message) MediaIDs() []MessageID {
	if len(m.Media) == 0 {
		return nil
	}
	ids := make([]MessageID, len(m.Media))
	for i, md := range m.Media {
		ids[i] = md.ID
	}
	return ids
}

// InputFile is a file queued for upload, keyed by a local token until persisted.
type InputFile struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// InputMessage is a draft used for create and edit. ID is zero until the
// message has been created on the server.
type InputMessage struct {
	ID         MessageID   `json:"id,omitempty"`
	Text       string      `json:"text"`
	InputFiles []InputFile `json:"input_files,omitempty"`
	MediaIDs   []MessageID `json:"media_ids,omitempty"`
}

// HasFiles reports whether the draft carries files waiting for upload.
func (m *InputMessage) HasFiles() bool {
	return m != nil && len(m.InputFiles) > 0
}

// DeleteRequest identifies a message to delete along with its media messages.
type DeleteRequest struct {
	ID       MessageID   `json:"id"`
	MediaIDs []MessageID `json:"media_ids,omitempty"`
}

// FoldersMessages maps a folder to its ordered messages.
type FoldersMessages map[FolderID]*MessageMap

// Updates is a partial patch of the client state returned by the remote API.
// A nil field is absent and leaves the store untouched; a non-nil field fully
// replaces the corresponding slice.
type Updates struct {
	Folders         []Folder        `json:"folders,omitempty"`
	FoldersMessages FoldersMessages `json:"folders_messages,omitempty"`
	SearchMessages  *MessageMap     `json:"search_messages,omitempty"`

	// CreatedID is set by CreateMessage when the server reports the new
	// message's identifier explicitly.
	CreatedID MessageID `json:"created_id,omitempty"`

	// Seq orders bundles built from server snapshots: a higher Seq reflects
	// a later server state. Zero means unordered.
	Seq uint64 `json:"seq,omitempty"`
}

// Empty reports whether the bundle carries no slices.
func (u Updates) Empty() bool {
	return u.Folders == nil && u.FoldersMessages == nil && u.SearchMessages == nil
}
