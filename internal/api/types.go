package api

import (
	"encoding/json"

	"github.com/matheus3301/stash/internal/model"
)

type StatusRequest struct{}

type StatusResponse struct {
	Session      string         `json:"session"`
	Status       string         `json:"status"`
	User         *model.User    `json:"user,omitempty"`
	ActiveFolder model.FolderID `json:"active_folder,omitempty"`
	UptimeMs     int64          `json:"uptime_ms"`
	Uploads      int            `json:"uploads"`
	Pushes       uint64         `json:"pushes"`
}

type LogInRequest struct{}

type LogOutRequest struct {
	// Revoke also invalidates the credentials on the remote side.
	Revoke bool `json:"revoke,omitempty"`
}

type SessionResponse struct {
	Status string `json:"status"`
}

type ListFoldersRequest struct {
	Reload bool `json:"reload,omitempty"`
}

type ListFoldersResponse struct {
	Folders      []model.Folder `json:"folders"`
	Categories   []string       `json:"categories"`
	ActiveFolder model.FolderID `json:"active_folder,omitempty"`
}

type FolderRequest struct {
	FolderID model.FolderID `json:"folder_id"`
}

type MessagesResponse struct {
	Folder   model.Folder    `json:"folder"`
	Messages []model.Message `json:"messages"`
	Loading  bool            `json:"loading,omitempty"`
}

type SetDraftRequest struct {
	FolderID model.FolderID    `json:"folder_id"`
	ID       model.MessageID   `json:"id,omitempty"`
	Text     string            `json:"text"`
	Files    []string          `json:"files,omitempty"`
	MediaIDs []model.MessageID `json:"media_ids,omitempty"`
}

type DraftResponse struct {
	Draft *model.InputMessage `json:"draft,omitempty"`
}

type SubmitDraftResponse struct {
	OK    bool                `json:"ok"`
	Draft *model.InputMessage `json:"draft,omitempty"`
}

type MessageRequest struct {
	FolderID model.FolderID  `json:"folder_id"`
	ID       model.MessageID `json:"id"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type MoveMessageRequest struct {
	FromFolderID model.FolderID  `json:"from_folder_id"`
	ID           model.MessageID `json:"id"`
	ToFolderID   model.FolderID  `json:"to_folder_id"`
}

type MoveMessageResponse struct {
	Result string `json:"result"`
	OK     bool   `json:"ok"`
}

type SearchRequest struct {
	Query    string         `json:"query"`
	FolderID model.FolderID `json:"folder_id"`
}

type SearchResponse struct {
	OK       bool            `json:"ok"`
	Messages []model.Message `json:"messages"`
}

type ResetSearchRequest struct{}

type RefreshRequest struct {
	FolderID  model.FolderID    `json:"folder_id"`
	IDs       []model.MessageID `json:"ids"`
	TimeoutMs int64             `json:"timeout_ms,omitempty"`
	// Wait blocks until every accepted id's batch has settled successfully
	// or the call's deadline passes.
	Wait bool `json:"wait,omitempty"`
}

type RefreshResponse struct {
	Accepted []model.MessageID `json:"accepted"`
	Settled  bool              `json:"settled"`
}

type WatchRequest struct {
	// Prefixes filter event kinds; empty means every kind.
	Prefixes []string `json:"prefixes,omitempty"`
}

type Event struct {
	ID               string          `json:"id"`
	Session          string          `json:"session"`
	Kind             string          `json:"kind"`
	OccurredAtUnixMs int64           `json:"occurred_at_unix_ms"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}
