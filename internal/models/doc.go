// Package models defines the core domain models for Splitledger.
//
// # Models
//
//   - Group: a set of members sharing expenses, with each member's running balance
//   - Member: one participant's identity and signed balance inside a group
//   - Expense: one payment by a member, split among selected members
//   - GroupSummary: a per-user projection across all of the user's groups
//
// # Design Principles
//
// 1. **Exact money**: amounts are money.Money (integer cents), never floats
// 2. **Avoid circular references**: use ID strings instead of pointers for relationships
// 3. **Documents, not rows**: a Group embeds its members so that one read gives
// the whole ledger, and one conditional write commits it
// 4. **Immutable expenses**: an Expense is created and deleted, never edited
//
// # Sign convention
//
// A positive Member.Balance means the group owes that member; negative means
// the member owes the group. Within a group the balances always sum to zero.
package models
