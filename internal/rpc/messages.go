package rpc

import "github.com/mmynk/splitledger/internal/money"

// Wire types. Amounts travel as decimal strings ("12.34"); timestamps are
// Unix seconds.

type MemberRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ProfileURL string `json:"profileUrl,omitempty"`
}

type Member struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	ProfileURL string      `json:"profileUrl,omitempty"`
	Balance    money.Money `json:"balance"`
}

type Group struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	CreatedBy     string      `json:"createdBy"`
	MemberIDs     []string    `json:"memberIds"`
	Members       []Member    `json:"members"`
	TotalExpenses money.Money `json:"totalExpenses"`
	TotalBalance  money.Money `json:"totalBalance"`
	CreatedAt     int64       `json:"createdAt"`
	UpdatedAt     int64       `json:"updatedAt"`
	Deleting      bool        `json:"deleting,omitempty"`
}

type Share struct {
	MemberID string      `json:"memberId"`
	Name     string      `json:"name"`
	Amount   money.Money `json:"amount"`
}

type Expense struct {
	ID       string      `json:"id"`
	GroupID  string      `json:"groupId"`
	Title    string      `json:"title"`
	Amount   money.Money `json:"amount"`
	PaidBy   MemberRef   `json:"paidBy"`
	SharedBy []Share     `json:"sharedBy"`
	Date     int64       `json:"date"`
}

type Balance struct {
	MemberID   string      `json:"memberId"`
	MemberName string      `json:"memberName"`
	NetBalance money.Money `json:"netBalance"`
}

type Settlement struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Amount money.Money `json:"amount"`
}

// Counterparty is another member's net position with the caller. Positive
// means they owe the caller.
type Counterparty struct {
	MemberID string      `json:"memberId"`
	Name     string      `json:"name,omitempty"`
	Balance  money.Money `json:"balance"`
}

type Summary struct {
	TotalOwedToUser money.Money    `json:"totalOwedToUser"`
	TotalUserOwes   money.Money    `json:"totalUserOwes"`
	NetBalance      money.Money    `json:"netBalance"`
	Counterparties  []Counterparty `json:"counterparties"`
	TotalPaid       money.Money    `json:"totalPaid"`
	TotalShare      money.Money    `json:"totalShare"`
}

type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type JoinGroupRequest struct {
	GroupID string `json:"groupId"`
}

type JoinGroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"groupId"`
}

type DeleteGroupResponse struct{}

type AddExpenseRequest struct {
	GroupID string `json:"groupId"`
	Title   string `json:"title"`
	// Amount is the user's decimal input, e.g. "30" or "12,50".
	Amount string `json:"amount"`
	// PaidBy defaults to the caller.
	PaidBy   string   `json:"paidBy,omitempty"`
	SharedBy []string `json:"sharedBy"`
	// Date defaults to now.
	Date int64 `json:"date,omitempty"`
}

type AddExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type DeleteExpenseResponse struct{}

type ListExpensesRequest struct {
	GroupID string `json:"groupId"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

type GetSummaryRequest struct{}

type GetSummaryResponse struct {
	Summary *Summary `json:"summary"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupBalancesResponse struct {
	Group       *Group       `json:"group"`
	Balances    []Balance    `json:"balances"`
	Settlements []Settlement `json:"settlements"`
}

type WatchGroupsRequest struct{}

type WatchGroupsResponse struct {
	Seq    int64    `json:"seq"`
	Groups []*Group `json:"groups"`
}

type WatchExpensesRequest struct {
	GroupID string `json:"groupId"`
}

type WatchExpensesResponse struct {
	Seq      int64      `json:"seq"`
	Expenses []*Expense `json:"expenses"`
}
