package rpc

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client is a typed client for LedgerService. Errors carrying a ledger code
// come back as *apperr.Error, so errors.Is works against the apperr
// sentinels.
type Client struct {
	createGroup      *connect.Client[CreateGroupRequest, CreateGroupResponse]
	joinGroup        *connect.Client[JoinGroupRequest, JoinGroupResponse]
	getGroup         *connect.Client[GetGroupRequest, GetGroupResponse]
	listGroups       *connect.Client[ListGroupsRequest, ListGroupsResponse]
	deleteGroup      *connect.Client[DeleteGroupRequest, DeleteGroupResponse]
	addExpense       *connect.Client[AddExpenseRequest, AddExpenseResponse]
	deleteExpense    *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	listExpenses     *connect.Client[ListExpensesRequest, ListExpensesResponse]
	getSummary       *connect.Client[GetSummaryRequest, GetSummaryResponse]
	getGroupBalances *connect.Client[GetGroupBalancesRequest, GetGroupBalancesResponse]
	watchGroups      *connect.Client[WatchGroupsRequest, WatchGroupsResponse]
	watchExpenses    *connect.Client[WatchExpensesRequest, WatchExpensesResponse]
}

// NewClient creates a client for the service at baseURL. Pass
// middleware.BearerToken through connect.WithInterceptors to authenticate.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec())}, opts...)
	return &Client{
		createGroup:      connect.NewClient[CreateGroupRequest, CreateGroupResponse](httpClient, baseURL+CreateGroupProcedure, opts...),
		joinGroup:        connect.NewClient[JoinGroupRequest, JoinGroupResponse](httpClient, baseURL+JoinGroupProcedure, opts...),
		getGroup:         connect.NewClient[GetGroupRequest, GetGroupResponse](httpClient, baseURL+GetGroupProcedure, opts...),
		listGroups:       connect.NewClient[ListGroupsRequest, ListGroupsResponse](httpClient, baseURL+ListGroupsProcedure, opts...),
		deleteGroup:      connect.NewClient[DeleteGroupRequest, DeleteGroupResponse](httpClient, baseURL+DeleteGroupProcedure, opts...),
		addExpense:       connect.NewClient[AddExpenseRequest, AddExpenseResponse](httpClient, baseURL+AddExpenseProcedure, opts...),
		deleteExpense:    connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+DeleteExpenseProcedure, opts...),
		listExpenses:     connect.NewClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL+ListExpensesProcedure, opts...),
		getSummary:       connect.NewClient[GetSummaryRequest, GetSummaryResponse](httpClient, baseURL+GetSummaryProcedure, opts...),
		getGroupBalances: connect.NewClient[GetGroupBalancesRequest, GetGroupBalancesResponse](httpClient, baseURL+GetGroupBalancesProcedure, opts...),
		watchGroups:      connect.NewClient[WatchGroupsRequest, WatchGroupsResponse](httpClient, baseURL+WatchGroupsProcedure, opts...),
		watchExpenses:    connect.NewClient[WatchExpensesRequest, WatchExpensesResponse](httpClient, baseURL+WatchExpensesProcedure, opts...),
	}
}

func call[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], req *Req) (*Res, error) {
	resp, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fromConnectError(err)
	}
	return resp.Msg, nil
}

func (c *Client) CreateGroup(ctx context.Context, req *CreateGroupRequest) (*CreateGroupResponse, error) {
	return call(ctx, c.createGroup, req)
}

func (c *Client) JoinGroup(ctx context.Context, req *JoinGroupRequest) (*JoinGroupResponse, error) {
	return call(ctx, c.joinGroup, req)
}

func (c *Client) GetGroup(ctx context.Context, req *GetGroupRequest) (*GetGroupResponse, error) {
	return call(ctx, c.getGroup, req)
}

func (c *Client) ListGroups(ctx context.Context, req *ListGroupsRequest) (*ListGroupsResponse, error) {
	return call(ctx, c.listGroups, req)
}

func (c *Client) DeleteGroup(ctx context.Context, req *DeleteGroupRequest) (*DeleteGroupResponse, error) {
	return call(ctx, c.deleteGroup, req)
}

func (c *Client) AddExpense(ctx context.Context, req *AddExpenseRequest) (*AddExpenseResponse, error) {
	return call(ctx, c.addExpense, req)
}

func (c *Client) DeleteExpense(ctx context.Context, req *DeleteExpenseRequest) (*DeleteExpenseResponse, error) {
	return call(ctx, c.deleteExpense, req)
}

func (c *Client) ListExpenses(ctx context.Context, req *ListExpensesRequest) (*ListExpensesResponse, error) {
	return call(ctx, c.listExpenses, req)
}

func (c *Client) GetSummary(ctx context.Context, req *GetSummaryRequest) (*GetSummaryResponse, error) {
	return call(ctx, c.getSummary, req)
}

func (c *Client) GetGroupBalances(ctx context.Context, req *GetGroupBalancesRequest) (*GetGroupBalancesResponse, error) {
	return call(ctx, c.getGroupBalances, req)
}

// Stream is one server stream. Receive blocks for the next message and
// returns false once the stream ends; Err then reports why.
type Stream[Res any] struct {
	stream *connect.ServerStreamForClient[Res]
}

func (s *Stream[Res]) Receive() bool { return s.stream.Receive() }
func (s *Stream[Res]) Msg() *Res     { return s.stream.Msg() }
func (s *Stream[Res]) Close() error  { return s.stream.Close() }

func (s *Stream[Res]) Err() error {
	if err := s.stream.Err(); err != nil {
		return fromConnectError(err)
	}
	return nil
}

func watch[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], req *Req) (*Stream[Res], error) {
	stream, err := c.CallServerStream(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fromConnectError(err)
	}
	return &Stream[Res]{stream: stream}, nil
}

// WatchGroups opens a stream of the caller's group list. Cancel ctx to stop.
func (c *Client) WatchGroups(ctx context.Context, req *WatchGroupsRequest) (*Stream[WatchGroupsResponse], error) {
	return watch(ctx, c.watchGroups, req)
}

// WatchExpenses opens a stream of a group's expenses. Cancel ctx to stop.
func (c *Client) WatchExpenses(ctx context.Context, req *WatchExpensesRequest) (*Stream[WatchExpensesResponse], error) {
	return watch(ctx, c.watchExpenses, req)
}
