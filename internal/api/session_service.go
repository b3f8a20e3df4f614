package api

import (
	"context"
	"time"

	"github.com/matheus3301/stash/internal/session"
	"github.com/matheus3301/stash/internal/state"
	"github.com/matheus3301/stash/internal/status"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Credentials controls the remote side of the session.
type Credentials interface {
	Authorize() error
	Revoke() error
}

// Counters reports daemon activity for Status.
type Counters interface {
	InFlight() int
	Pushes() uint64
}

// SessionService implements SessionServer.
type SessionService struct {
	sessionName string
	startedAt   time.Time
	manager     *session.Manager
	creds       Credentials
	store       *state.Store
	counters    Counters
}

// NewSessionService creates a new session service. creds and counters may
// be nil.
func NewSessionService(sessionName string, manager *session.Manager, creds Credentials, s *state.Store, counters Counters) *SessionService {
	return &SessionService{
		sessionName: sessionName,
		startedAt:   time.Now(),
		manager:     manager,
		creds:       creds,
		store:       s,
		counters:    counters,
	}
}

func (s *SessionService) Status(_ context.Context, _ *StatusRequest) (*StatusResponse, error) {
	resp := &StatusResponse{
		Session:      s.sessionName,
		Status:       string(s.manager.Status()),
		User:         s.store.User(),
		ActiveFolder: s.store.ActiveFolderID(),
		UptimeMs:     time.Since(s.startedAt).Milliseconds(),
	}
	if s.counters != nil {
		resp.Uploads = s.counters.InFlight()
		resp.Pushes = s.counters.Pushes()
	}
	return resp, nil
}

func (s *SessionService) LogIn(ctx context.Context, _ *LogInRequest) (*SessionResponse, error) {
	if s.manager.Status() == status.Ready {
		return &SessionResponse{Status: string(status.Ready)}, nil
	}
	if s.creds != nil {
		if err := s.creds.Authorize(); err != nil {
			return nil, grpcstatus.Errorf(codes.Internal, "authorize: %v", err)
		}
	}
	if err := s.manager.LogIn(ctx); err != nil {
		return nil, grpcstatus.Errorf(codes.Unauthenticated, "log in: %v", err)
	}
	return &SessionResponse{Status: string(s.manager.Status())}, nil
}

func (s *SessionService) LogOut(_ context.Context, req *LogOutRequest) (*SessionResponse, error) {
	if req.Revoke && s.creds != nil {
		if err := s.creds.Revoke(); err != nil {
			return nil, grpcstatus.Errorf(codes.Internal, "revoke: %v", err)
		}
	}
	s.manager.LogOut()
	return &SessionResponse{Status: string(s.manager.Status())}, nil
}
