// Package models defines the core domain records for Divvy.
//
//   - Expense: a shared cost paid by one group member, split into Shares
//   - Share: one member's owed portion of an expense, with a paid flag
//   - Settlement: a direct payment between two users, optionally discharging
//     the payer's share on a linked expense
//   - Group: a set of members who share expenses
//
// Monetary fields are money.Money (integer minor units); timestamps are Unix
// seconds. Records are plain structs with no persistence tags: the storage
// layer owns its own mapping.
//
// Updates use tagged field-update structs (ExpenseUpdate, SettlementUpdate):
// a nil field means "leave unchanged", never "clear".
package models
