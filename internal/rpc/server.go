// Package rpc exposes the ledger service over Connect with a JSON codec.
//
// The acting member of every call comes from the bearer token, via
// middleware.RequireAuth; request bodies never name the caller.
package rpc

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/service"
)

const ServiceName = "splitledger.v1.LedgerService"

const (
	CreateGroupProcedure      = "/" + ServiceName + "/CreateGroup"
	JoinGroupProcedure        = "/" + ServiceName + "/JoinGroup"
	GetGroupProcedure         = "/" + ServiceName + "/GetGroup"
	ListGroupsProcedure       = "/" + ServiceName + "/ListGroups"
	DeleteGroupProcedure      = "/" + ServiceName + "/DeleteGroup"
	AddExpenseProcedure       = "/" + ServiceName + "/AddExpense"
	DeleteExpenseProcedure    = "/" + ServiceName + "/DeleteExpense"
	ListExpensesProcedure     = "/" + ServiceName + "/ListExpenses"
	GetSummaryProcedure       = "/" + ServiceName + "/GetSummary"
	GetGroupBalancesProcedure = "/" + ServiceName + "/GetGroupBalances"
	WatchGroupsProcedure      = "/" + ServiceName + "/WatchGroups"
	WatchExpensesProcedure    = "/" + ServiceName + "/WatchExpenses"
)

// Server implements the LedgerService procedures.
type Server struct {
	svc    *service.LedgerService
	logger *slog.Logger
}

// NewServer creates a Server backed by svc.
func NewServer(svc *service.LedgerService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, logger: logger}
}

// Handler returns the path prefix and handler for every procedure. The JSON
// codec is always installed; opts typically add interceptors.
func (s *Server) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec())}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateGroupProcedure, connect.NewUnaryHandler(CreateGroupProcedure, s.CreateGroup, opts...))
	mux.Handle(JoinGroupProcedure, connect.NewUnaryHandler(JoinGroupProcedure, s.JoinGroup, opts...))
	mux.Handle(GetGroupProcedure, connect.NewUnaryHandler(GetGroupProcedure, s.GetGroup, opts...))
	mux.Handle(ListGroupsProcedure, connect.NewUnaryHandler(ListGroupsProcedure, s.ListGroups, opts...))
	mux.Handle(DeleteGroupProcedure, connect.NewUnaryHandler(DeleteGroupProcedure, s.DeleteGroup, opts...))
	mux.Handle(AddExpenseProcedure, connect.NewUnaryHandler(AddExpenseProcedure, s.AddExpense, opts...))
	mux.Handle(DeleteExpenseProcedure, connect.NewUnaryHandler(DeleteExpenseProcedure, s.DeleteExpense, opts...))
	mux.Handle(ListExpensesProcedure, connect.NewUnaryHandler(ListExpensesProcedure, s.ListExpenses, opts...))
	mux.Handle(GetSummaryProcedure, connect.NewUnaryHandler(GetSummaryProcedure, s.GetSummary, opts...))
	mux.Handle(GetGroupBalancesProcedure, connect.NewUnaryHandler(GetGroupBalancesProcedure, s.GetGroupBalances, opts...))
	mux.Handle(WatchGroupsProcedure, connect.NewServerStreamHandler(WatchGroupsProcedure, s.WatchGroups, opts...))
	mux.Handle(WatchExpensesProcedure, connect.NewServerStreamHandler(WatchExpensesProcedure, s.WatchExpenses, opts...))
	return "/" + ServiceName + "/", mux
}

// caller returns the authenticated member for the request.
func caller(ctx context.Context) (models.User, error) {
	user, ok := middleware.GetUser(ctx)
	if !ok {
		return models.User{}, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return user, nil
}

// CreateGroup creates a group with the caller as its only member.
func (s *Server) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[CreateGroupResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "CreateGroup request received", "name", req.Msg.Name, "user_id", user.ID)

	group, err := s.svc.CreateGroup(ctx, user.Ref(), req.Msg.Name, req.Msg.Description)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CreateGroupResponse{Group: toGroup(group)}), nil
}

// JoinGroup adds the caller to a group.
func (s *Server) JoinGroup(ctx context.Context, req *connect.Request[JoinGroupRequest]) (*connect.Response[JoinGroupResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "JoinGroup request received", "group_id", req.Msg.GroupID, "user_id", user.ID)

	group, err := s.svc.JoinGroup(ctx, req.Msg.GroupID, user.Ref())
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&JoinGroupResponse{Group: toGroup(group)}), nil
}

// GetGroup retrieves a group by ID.
func (s *Server) GetGroup(ctx context.Context, req *connect.Request[GetGroupRequest]) (*connect.Response[GetGroupResponse], error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "GetGroup request received", "group_id", req.Msg.GroupID)

	group, err := s.svc.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetGroupResponse{Group: toGroup(group)}), nil
}

// ListGroups lists the caller's groups, most recently updated first.
func (s *Server) ListGroups(ctx context.Context, req *connect.Request[ListGroupsRequest]) (*connect.Response[ListGroupsResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "ListGroups request received", "user_id", user.ID)

	groups, err := s.svc.ListGroups(ctx, user.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListGroupsResponse{Groups: toGroups(groups)}), nil
}

// DeleteGroup deletes a group the caller created, with all its expenses.
func (s *Server) DeleteGroup(ctx context.Context, req *connect.Request[DeleteGroupRequest]) (*connect.Response[DeleteGroupResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "DeleteGroup request received", "group_id", req.Msg.GroupID, "user_id", user.ID)

	if err := s.svc.DeleteGroup(ctx, req.Msg.GroupID, user.ID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&DeleteGroupResponse{}), nil
}

// AddExpense records an expense split evenly across the selected members.
func (s *Server) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "AddExpense request received",
		"group_id", req.Msg.GroupID,
		"user_id", user.ID,
		"sharers", len(req.Msg.SharedBy),
	)

	amount, err := s.svc.ParseAmount(req.Msg.Amount)
	if err != nil {
		return nil, toConnectError(err)
	}
	expense, err := s.svc.AddExpense(ctx, req.Msg.GroupID, user.ID, ledger.ExpenseDraft{
		Title:    req.Msg.Title,
		Amount:   amount,
		PaidBy:   req.Msg.PaidBy,
		SharedBy: req.Msg.SharedBy,
		Date:     req.Msg.Date,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&AddExpenseResponse{Expense: toExpense(expense)}), nil
}

// DeleteExpense deletes an expense the caller paid and reverses its effect.
func (s *Server) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "DeleteExpense request received", "expense_id", req.Msg.ExpenseID, "user_id", user.ID)

	if err := s.svc.DeleteExpense(ctx, req.Msg.ExpenseID, user.ID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&DeleteExpenseResponse{}), nil
}

// ListExpenses lists a group's expenses, newest first.
func (s *Server) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "ListExpenses request received", "group_id", req.Msg.GroupID, "user_id", user.ID)

	expenses, err := s.svc.ListExpenses(ctx, req.Msg.GroupID, user.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListExpensesResponse{Expenses: toExpenses(expenses)}), nil
}

// GetSummary returns the caller's position across all their groups.
func (s *Server) GetSummary(ctx context.Context, req *connect.Request[GetSummaryRequest]) (*connect.Response[GetSummaryResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "GetSummary request received", "user_id", user.ID)

	summary, err := s.svc.GetSummary(ctx, user.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetSummaryResponse{Summary: toSummary(summary)}), nil
}

// GetGroupBalances returns each member's balance and suggested settlements.
func (s *Server) GetGroupBalances(ctx context.Context, req *connect.Request[GetGroupBalancesRequest]) (*connect.Response[GetGroupBalancesResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "GetGroupBalances request received", "group_id", req.Msg.GroupID, "user_id", user.ID)

	gb, err := s.svc.GetGroupBalances(ctx, req.Msg.GroupID, user.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetGroupBalancesResponse{
		Group:       toGroup(gb.Group),
		Balances:    toBalances(gb.Balances),
		Settlements: toSettlements(gb.Settlements),
	}), nil
}

// WatchGroups streams the caller's group list until the client goes away.
func (s *Server) WatchGroups(ctx context.Context, req *connect.Request[WatchGroupsRequest], stream *connect.ServerStream[WatchGroupsResponse]) error {
	user, err := caller(ctx)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "WatchGroups request received", "user_id", user.ID)

	snapshots, err := s.svc.WatchGroups(ctx, user.ID)
	if err != nil {
		return toConnectError(err)
	}
	for snap := range snapshots {
		if err := stream.Send(&WatchGroupsResponse{Seq: snap.Seq, Groups: toGroups(snap.Items)}); err != nil {
			return err
		}
	}
	return nil
}

// WatchExpenses streams a group's expense list until the client goes away.
func (s *Server) WatchExpenses(ctx context.Context, req *connect.Request[WatchExpensesRequest], stream *connect.ServerStream[WatchExpensesResponse]) error {
	user, err := caller(ctx)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "WatchExpenses request received", "group_id", req.Msg.GroupID, "user_id", user.ID)

	snapshots, err := s.svc.WatchExpenses(ctx, req.Msg.GroupID, user.ID)
	if err != nil {
		return toConnectError(err)
	}
	for snap := range snapshots {
		if err := stream.Send(&WatchExpensesResponse{Seq: snap.Seq, Expenses: toExpenses(snap.Items)}); err != nil {
			return err
		}
	}
	return nil
}
