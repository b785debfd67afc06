// Package rpc exposes the run operations over JSON-RPC for internal clients.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"

	"github.com/xiaot623/gogo/await/internal/domain"
	"github.com/xiaot623/gogo/await/internal/runtime"
	"github.com/xiaot623/gogo/await/internal/service"
)

// ServiceName is the name the handler is registered under.
const ServiceName = "Runs"

// Server exposes internal RPC endpoints.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the service.
func NewServer(svc *service.Service) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc}
	if err := rpcServer.RegisterName(ServiceName, handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			log.Printf("WARN: RPC accept error: %v", err)
			continue
		}

		go s.ServeConn(conn)
	}
}

// ServeConn serves a single connection until the client hangs up.
func (s *Server) ServeConn(conn net.Conn) {
	s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the Runs RPC methods.
type Handler struct {
	service *service.Service
}

// ResumeArgs wraps a run ID with the resume payload.
type ResumeArgs struct {
	RunID   string               `json:"run_id"`
	Request domain.ResumeRequest `json:"request"`
}

// CancelArgs identifies a run to cancel.
type CancelArgs struct {
	RunID  string `json:"run_id"`
	Reason string `json:"reason,omitempty"`
}

// GetRunArgs identifies a run.
type GetRunArgs struct {
	RunID string `json:"run_id"`
}

// StartRun starts a run of an agent.
func (h *Handler) StartRun(req *domain.StartRunRequest, resp *domain.Run) error {
	if req == nil {
		return errors.New("start request is required")
	}

	run, err := h.service.StartRun(context.Background(), *req)
	return reply(run, resp, err)
}

// Resume submits a resume signal.
func (h *Handler) Resume(req *ResumeArgs, resp *domain.Run) error {
	if req == nil {
		return errors.New("resume request is required")
	}
	if req.RunID == "" {
		return errors.New("run_id is required")
	}

	run, err := h.service.Resume(context.Background(), req.RunID, req.Request)
	return reply(run, resp, err)
}

// Cancel cancels a run.
func (h *Handler) Cancel(req *CancelArgs, resp *domain.Run) error {
	if req == nil {
		return errors.New("cancel request is required")
	}
	if req.RunID == "" {
		return errors.New("run_id is required")
	}

	run, err := h.service.CancelRun(context.Background(), req.RunID, req.Reason)
	return reply(run, resp, err)
}

// GetRun returns a run snapshot.
func (h *Handler) GetRun(req *GetRunArgs, resp *domain.Run) error {
	if req == nil || req.RunID == "" {
		return errors.New("run_id is required")
	}

	run, err := h.service.GetRun(context.Background(), req.RunID)
	return reply(run, resp, err)
}

func reply(run *domain.Run, resp *domain.Run, err error) error {
	if err != nil {
		// Errors cross the wire as strings; prefix the kind so clients can
		// tell them apart.
		return fmt.Errorf("%s: %v", runtime.KindOf(err), err)
	}
	if resp != nil && run != nil {
		*resp = *run
	}
	return nil
}

// ErrorKind extracts the kind prefix from an error returned by a client call.
func ErrorKind(err error) runtime.Kind {
	if err == nil {
		return ""
	}
	kind, _, ok := strings.Cut(err.Error(), ": ")
	if !ok {
		return runtime.KindInternal
	}
	return runtime.Kind(kind)
}
