package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon's Unix domain socket. The connection is lazy;
// the first call reports an unreachable daemon.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, service, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, "/"+service+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c, SessionServiceName, "Status", &StatusRequest{})
}

func (c *Client) LogIn(ctx context.Context) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c, SessionServiceName, "LogIn", &LogInRequest{})
}

func (c *Client) LogOut(ctx context.Context, revoke bool) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c, SessionServiceName, "LogOut", &LogOutRequest{Revoke: revoke})
}

func (c *Client) ListFolders(ctx context.Context, reload bool) (*ListFoldersResponse, error) {
	return invoke[ListFoldersResponse](ctx, c, FolderServiceName, "ListFolders", &ListFoldersRequest{Reload: reload})
}

func (c *Client) OpenFolder(ctx context.Context, in *FolderRequest) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c, FolderServiceName, "OpenFolder", in)
}

func (c *Client) LoadMore(ctx context.Context, in *FolderRequest) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c, FolderServiceName, "LoadMore", in)
}

func (c *Client) ListMessages(ctx context.Context, in *FolderRequest) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c, FolderServiceName, "ListMessages", in)
}

func (c *Client) SetDraft(ctx context.Context, in *SetDraftRequest) (*DraftResponse, error) {
	return invoke[DraftResponse](ctx, c, MessageServiceName, "SetDraft", in)
}

func (c *Client) SubmitDraft(ctx context.Context, in *FolderRequest) (*SubmitDraftResponse, error) {
	return invoke[SubmitDraftResponse](ctx, c, MessageServiceName, "SubmitDraft", in)
}

func (c *Client) CancelDraft(ctx context.Context, in *FolderRequest) (*DraftResponse, error) {
	return invoke[DraftResponse](ctx, c, MessageServiceName, "CancelDraft", in)
}

func (c *Client) DeleteMessage(ctx context.Context, in *MessageRequest) (*OKResponse, error) {
	return invoke[OKResponse](ctx, c, MessageServiceName, "DeleteMessage", in)
}

func (c *Client) MoveMessage(ctx context.Context, in *MoveMessageRequest) (*MoveMessageResponse, error) {
	return invoke[MoveMessageResponse](ctx, c, MessageServiceName, "MoveMessage", in)
}

func (c *Client) Search(ctx context.Context, in *SearchRequest) (*SearchResponse, error) {
	return invoke[SearchResponse](ctx, c, MessageServiceName, "Search", in)
}

func (c *Client) ResetSearch(ctx context.Context) (*OKResponse, error) {
	return invoke[OKResponse](ctx, c, MessageServiceName, "ResetSearch", &ResetSearchRequest{})
}

func (c *Client) Refresh(ctx context.Context, in *RefreshRequest) (*RefreshResponse, error) {
	return invoke[RefreshResponse](ctx, c, MessageServiceName, "Refresh", in)
}

// Watch streams daemon events until ctx is cancelled.
func (c *Client) Watch(ctx context.Context, in *WatchRequest) (grpc.ServerStreamingClient[Event], error) {
	desc := &eventServiceDesc.Streams[0]
	stream, err := c.conn.NewStream(ctx, desc, "/"+EventServiceName+"/Watch")
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchRequest, Event]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
