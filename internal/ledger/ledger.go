// Package ledger accumulates directed debt edges between user pairs and
// nets them down to the minimal set of debts.
//
// The package is total over any well-formed edge list: it raises no domain
// errors. Malformed edges (non-positive amounts) are the producer's problem;
// self-edges are discarded here before accumulation.
package ledger

import (
	"sort"

	"github.com/divvyhq/divvy/internal/money"
)

// Edge is a directed debt: Debtor owes Creditor the Amount.
type Edge struct {
	Debtor   string      `json:"debtor"`
	Creditor string      `json:"creditor"`
	Amount   money.Money `json:"amount"`
}

// pairKey is the canonical ordering of an unordered user pair: Low < High.
type pairKey struct {
	low, high string
}

func canonical(a, b string) (pairKey, bool) {
	if a < b {
		return pairKey{low: a, high: b}, false
	}
	return pairKey{low: b, high: a}, true
}

// Net collapses the edge multiset into at most one edge per user pair. For
// each unordered pair {A, B} it sums amounts A owes B minus amounts B owes A
// and emits a single edge in the surviving direction, or nothing when the
// pair nets to zero. Self-edges and zero-amount edges contribute nothing.
//
// The result is sorted by (debtor, creditor), so netting is idempotent
// bit-for-bit: Net(Net(edges)) reproduces Net(edges) exactly.
func Net(edges []Edge) []Edge {
	// Signed accumulator per canonical pair: positive means low owes high.
	acc := make(map[pairKey]money.Money)
	for _, e := range edges {
		if e.Debtor == e.Creditor || e.Amount == 0 {
			continue
		}
		key, flipped := canonical(e.Debtor, e.Creditor)
		if flipped {
			acc[key] -= e.Amount
		} else {
			acc[key] += e.Amount
		}
	}

	netted := make([]Edge, 0, len(acc))
	for key, net := range acc {
		switch {
		case net > 0:
			netted = append(netted, Edge{Debtor: key.low, Creditor: key.high, Amount: net})
		case net < 0:
			netted = append(netted, Edge{Debtor: key.high, Creditor: key.low, Amount: net.Neg()})
		}
	}
	sort.Slice(netted, func(i, j int) bool {
		if netted[i].Debtor != netted[j].Debtor {
			return netted[i].Debtor < netted[j].Debtor
		}
		return netted[i].Creditor < netted[j].Creditor
	})
	return netted
}

// NetBalances folds the edges into a signed per-user total: positive means
// the user is owed money, negative means the user owes. The fold is linear,
// so the result does not depend on edge order and is identical whether it
// runs over raw or netted edges.
func NetBalances(edges []Edge) map[string]money.Money {
	balances := make(map[string]money.Money)
	for _, e := range edges {
		if e.Debtor == e.Creditor {
			continue
		}
		balances[e.Debtor] -= e.Amount
		balances[e.Creditor] += e.Amount
	}
	return balances
}

// TotalOutstanding sums the netted debt between all pairs. Run it on the
// output of Net; on raw edges it counts offsetting debts twice.
func TotalOutstanding(netted []Edge) money.Money {
	var total money.Money
	for _, e := range netted {
		total += e.Amount
	}
	return total
}
