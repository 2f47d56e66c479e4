// Package split allocates a shared expense into per-participant share
// amounts under a split policy, preserving the exact monetary total.
package split

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/divvyhq/divvy/internal/money"
)

// Policy selects how an expense amount is divided among participants.
type Policy string

const (
	// PolicyEqual divides the amount evenly per head.
	PolicyEqual Policy = "equal"
	// PolicyAmount uses caller-supplied per-participant amounts.
	PolicyAmount Policy = "amount"
	// PolicyPercentage uses caller-supplied percentages summing to 100.
	PolicyPercentage Policy = "percentage"
)

var (
	ErrNoParticipants       = errors.New("at least one participant is required")
	ErrNonPositiveAmount    = errors.New("amount must be greater than zero")
	ErrDuplicateParticipant = errors.New("duplicate participant")
	ErrUnknownPolicy        = errors.New("unknown split policy")
	ErrMissingInput         = errors.New("input required for every participant")
	ErrNotParticipant       = errors.New("input references a non-participant")
	ErrNegativeShare        = errors.New("share amounts cannot be negative")
	ErrAmountMismatch       = errors.New("share amounts must sum to the expense amount")
	ErrPercentSum           = errors.New("percentages must sum to exactly 100")
	ErrPercentRange         = errors.New("percentage must be between 0 and 100")
)

// Input carries the caller-supplied value for one participant. Amount is
// read under PolicyAmount, Percent under PolicyPercentage; the other field
// is ignored.
type Input struct {
	UserID  string
	Amount  *money.Money
	Percent *decimal.Decimal
}

// ShareAmount is one participant's allocated portion of the expense.
type ShareAmount struct {
	UserID string
	Amount money.Money
}

var hundred = decimal.NewFromInt(100)

// Allocate splits total across participants under the given policy. The
// returned shares always sum to total exactly: per-share rounding residuals
// are redistributed one minor unit at a time over the participants in stable
// sorted order. Allocate is a pure function; persisting the result is the
// caller's job.
func Allocate(total money.Money, policy Policy, participants []string, inputs []Input) ([]ShareAmount, error) {
	if !total.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	ordered := make([]string, len(participants))
	copy(ordered, participants)
	sort.Strings(ordered)
	for i := 1; i < len(ordered); i++ {
		if ordered[i] == ordered[i-1] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, ordered[i])
		}
	}

	var shares []ShareAmount
	var err error
	switch policy {
	case PolicyEqual:
		shares = allocateEqual(total, ordered)
	case PolicyAmount:
		shares, err = allocateAmount(total, ordered, inputs)
	case PolicyPercentage:
		shares, err = allocatePercentage(total, ordered, inputs)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	if err != nil {
		return nil, err
	}

	// The residual rule guarantees this; a violation is a bug, not bad input.
	var sum money.Money
	for _, s := range shares {
		if s.Amount < 0 {
			return nil, fmt.Errorf("allocation produced negative share for %s", s.UserID)
		}
		sum += s.Amount
	}
	if sum != total {
		return nil, fmt.Errorf("allocation drifted: shares sum to %s, expense is %s", sum, total)
	}
	return shares, nil
}

// allocateEqual gives every participant the half-up rounded per-head amount,
// then pushes the residual minor units onto the first participants in order.
func allocateEqual(total money.Money, ordered []string) []ShareAmount {
	n := int64(len(ordered))
	per := total.DivHalfUp(n)

	shares := make([]ShareAmount, len(ordered))
	for i, userID := range ordered {
		shares[i] = ShareAmount{UserID: userID, Amount: per}
	}
	distributeResidual(shares, total)
	return shares
}

func allocateAmount(total money.Money, ordered []string, inputs []Input) ([]ShareAmount, error) {
	byUser, err := inputsByUser(ordered, inputs)
	if err != nil {
		return nil, err
	}

	shares := make([]ShareAmount, len(ordered))
	var sum money.Money
	for i, userID := range ordered {
		in := byUser[userID]
		if in.Amount == nil {
			return nil, fmt.Errorf("%w: no amount for %s", ErrMissingInput, userID)
		}
		if *in.Amount < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNegativeShare, userID)
		}
		shares[i] = ShareAmount{UserID: userID, Amount: *in.Amount}
		sum += *in.Amount
	}
	// Zero tolerance: monetary types, no floating epsilon.
	if sum != total {
		return nil, fmt.Errorf("%w: got %s, expense is %s", ErrAmountMismatch, sum, total)
	}
	return shares, nil
}

func allocatePercentage(total money.Money, ordered []string, inputs []Input) ([]ShareAmount, error) {
	byUser, err := inputsByUser(ordered, inputs)
	if err != nil {
		return nil, err
	}

	pctSum := decimal.Zero
	for _, userID := range ordered {
		in := byUser[userID]
		if in.Percent == nil {
			return nil, fmt.Errorf("%w: no percentage for %s", ErrMissingInput, userID)
		}
		if in.Percent.IsNegative() || in.Percent.GreaterThan(hundred) {
			return nil, fmt.Errorf("%w: %s", ErrPercentRange, userID)
		}
		pctSum = pctSum.Add(*in.Percent)
	}
	if !pctSum.Equal(hundred) {
		return nil, fmt.Errorf("%w: got %s", ErrPercentSum, pctSum)
	}

	totalDec := total.Decimal()
	shares := make([]ShareAmount, len(ordered))
	for i, userID := range ordered {
		raw := totalDec.Mul(*byUser[userID].Percent).Div(hundred)
		shares[i] = ShareAmount{UserID: userID, Amount: money.FromDecimalHalfUp(raw)}
	}
	distributeResidual(shares, total)
	return shares, nil
}

func inputsByUser(ordered []string, inputs []Input) (map[string]Input, error) {
	members := make(map[string]bool, len(ordered))
	for _, userID := range ordered {
		members[userID] = true
	}

	byUser := make(map[string]Input, len(inputs))
	for _, in := range inputs {
		if !members[in.UserID] {
			return nil, fmt.Errorf("%w: %s", ErrNotParticipant, in.UserID)
		}
		if _, dup := byUser[in.UserID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, in.UserID)
		}
		byUser[in.UserID] = in
	}
	return byUser, nil
}

// distributeResidual adjusts shares by one minor unit each, in order, so the
// shares sum exactly to total. A negative residual is taken only from shares
// with a positive amount; a 0% share stays at zero. Rounding error is never
// silently dropped or double-counted.
func distributeResidual(shares []ShareAmount, total money.Money) {
	var sum money.Money
	for _, s := range shares {
		sum += s.Amount
	}
	residual := total - sum

	step := money.Money(1)
	if residual < 0 {
		step = -1
	}
	for i := 0; residual != 0 && i < len(shares); i++ {
		if shares[i].Amount+step < 0 {
			continue
		}
		shares[i].Amount += step
		residual -= step
	}
}
