package api

import (
	"context"

	"google.golang.org/grpc"
)

// Service names on the wire.
const (
	SessionServiceName = "stash.v1.SessionService"
	FolderServiceName  = "stash.v1.FolderService"
	MessageServiceName = "stash.v1.MessageService"
	EventServiceName   = "stash.v1.EventService"
)

// SessionServer signs the daemon's session in and out.
type SessionServer interface {
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	LogIn(context.Context, *LogInRequest) (*SessionResponse, error)
	LogOut(context.Context, *LogOutRequest) (*SessionResponse, error)
}

// FolderServer browses folders and their loaded messages.
type FolderServer interface {
	ListFolders(context.Context, *ListFoldersRequest) (*ListFoldersResponse, error)
	OpenFolder(context.Context, *FolderRequest) (*MessagesResponse, error)
	LoadMore(context.Context, *FolderRequest) (*MessagesResponse, error)
	ListMessages(context.Context, *FolderRequest) (*MessagesResponse, error)
}

// MessageServer drives drafts and the message lifecycle.
type MessageServer interface {
	SetDraft(context.Context, *SetDraftRequest) (*DraftResponse, error)
	SubmitDraft(context.Context, *FolderRequest) (*SubmitDraftResponse, error)
	CancelDraft(context.Context, *FolderRequest) (*DraftResponse, error)
	DeleteMessage(context.Context, *MessageRequest) (*OKResponse, error)
	MoveMessage(context.Context, *MoveMessageRequest) (*MoveMessageResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	ResetSearch(context.Context, *ResetSearchRequest) (*OKResponse, error)
	Refresh(context.Context, *RefreshRequest) (*RefreshResponse, error)
}

// EventServer streams bus events.
type EventServer interface {
	Watch(*WatchRequest, grpc.ServerStreamingServer[Event]) error
}

// unary builds the descriptor of a unary method whose server type is S.
func unary[S, Req, Resp any](service, name string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SessionServiceName, "Status", SessionServer.Status),
		unary(SessionServiceName, "LogIn", SessionServer.LogIn),
		unary(SessionServiceName, "LogOut", SessionServer.LogOut),
	},
}

var folderServiceDesc = grpc.ServiceDesc{
	ServiceName: FolderServiceName,
	HandlerType: (*FolderServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(FolderServiceName, "ListFolders", FolderServer.ListFolders),
		unary(FolderServiceName, "OpenFolder", FolderServer.OpenFolder),
		unary(FolderServiceName, "LoadMore", FolderServer.LoadMore),
		unary(FolderServiceName, "ListMessages", FolderServer.ListMessages),
	},
}

var messageServiceDesc = grpc.ServiceDesc{
	ServiceName: MessageServiceName,
	HandlerType: (*MessageServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MessageServiceName, "SetDraft", MessageServer.SetDraft),
		unary(MessageServiceName, "SubmitDraft", MessageServer.SubmitDraft),
		unary(MessageServiceName, "CancelDraft", MessageServer.CancelDraft),
		unary(MessageServiceName, "DeleteMessage", MessageServer.DeleteMessage),
		unary(MessageServiceName, "MoveMessage", MessageServer.MoveMessage),
		unary(MessageServiceName, "Search", MessageServer.Search),
		unary(MessageServiceName, "ResetSearch", MessageServer.ResetSearch),
		unary(MessageServiceName, "Refresh", MessageServer.Refresh),
	},
}

var eventServiceDesc = grpc.ServiceDesc{
	ServiceName: EventServiceName,
	HandlerType: (*EventServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(WatchRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(EventServer).Watch(in, &grpc.GenericServerStream[WatchRequest, Event]{ServerStream: stream})
			},
		},
	},
}

func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&sessionServiceDesc, srv)
}

func RegisterFolderServer(s grpc.ServiceRegistrar, srv FolderServer) {
	s.RegisterService(&folderServiceDesc, srv)
}

func RegisterMessageServer(s grpc.ServiceRegistrar, srv MessageServer) {
	s.RegisterService(&messageServiceDesc, srv)
}

func RegisterEventServer(s grpc.ServiceRegistrar, srv EventServer) {
	s.RegisterService(&eventServiceDesc, srv)
}
