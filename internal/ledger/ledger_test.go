package ledger

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/divvyhq/divvy/internal/money"
)

func TestNet(t *testing.T) {
	tests := []struct {
		name  string
		edges []Edge
		want  []Edge
	}{
		{
			name: "offsetting debts collapse to one edge",
			edges: []Edge{
				{Debtor: "alice", Creditor: "bob", Amount: 3000},
				{Debtor: "bob", Creditor: "alice", Amount: 1000},
			},
			want: []Edge{{Debtor: "alice", Creditor: "bob", Amount: 2000}},
		},
		{
			name: "equal opposite debts vanish",
			edges: []Edge{
				{Debtor: "alice", Creditor: "bob", Amount: 1500},
				{Debtor: "bob", Creditor: "alice", Amount: 1500},
			},
			want: []Edge{},
		},
		{
			name: "same direction accumulates",
			edges: []Edge{
				{Debtor: "alice", Creditor: "bob", Amount: 500},
				{Debtor: "alice", Creditor: "bob", Amount: 250},
			},
			want: []Edge{{Debtor: "alice", Creditor: "bob", Amount: 750}},
		},
		{
			name: "direction flips when reverse flow dominates",
			edges: []Edge{
				{Debtor: "bob", Creditor: "alice", Amount: 100},
				{Debtor: "alice", Creditor: "bob", Amount: 600},
			},
			want: []Edge{{Debtor: "alice", Creditor: "bob", Amount: 500}},
		},
		{
			name: "self edges are discarded",
			edges: []Edge{
				{Debtor: "alice", Creditor: "alice", Amount: 9999},
				{Debtor: "alice", Creditor: "bob", Amount: 100},
			},
			want: []Edge{{Debtor: "alice", Creditor: "bob", Amount: 100}},
		},
		{
			name:  "empty input",
			edges: nil,
			want:  []Edge{},
		},
		{
			name: "independent pairs sorted deterministically",
			edges: []Edge{
				{Debtor: "dave", Creditor: "carol", Amount: 300},
				{Debtor: "bob", Creditor: "alice", Amount: 200},
				{Debtor: "alice", Creditor: "carol", Amount: 100},
			},
			want: []Edge{
				{Debtor: "alice", Creditor: "carol", Amount: 100},
				{Debtor: "bob", Creditor: "alice", Amount: 200},
				{Debtor: "dave", Creditor: "carol", Amount: 300},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Net(tt.edges)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Net() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Netting an already-netted edge set must reproduce it bit-for-bit, for any
// finite edge multiset.
func TestNetIdempotence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	users := []string{"alice", "bob", "carol", "dave", "erin"}

	for trial := 0; trial < 200; trial++ {
		n := rng.Intn(30)
		edges := make([]Edge, 0, n)
		for i := 0; i < n; i++ {
			debtor := users[rng.Intn(len(users))]
			creditor := users[rng.Intn(len(users))]
			edges = append(edges, Edge{
				Debtor:   debtor,
				Creditor: creditor,
				Amount:   money.Money(rng.Int63n(10000)),
			})
		}

		once := Net(edges)
		twice := Net(once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("trial %d: Net(Net(edges)) = %v, want %v", trial, twice, once)
		}
	}
}

// The per-user fold must not depend on edge processing order, and must agree
// between raw and netted views.
func TestNetBalances(t *testing.T) {
	edges := []Edge{
		{Debtor: "alice", Creditor: "bob", Amount: 3000},
		{Debtor: "bob", Creditor: "carol", Amount: 1000},
		{Debtor: "carol", Creditor: "alice", Amount: 500},
		{Debtor: "alice", Creditor: "bob", Amount: 200},
	}

	want := map[string]money.Money{
		"alice": -2700,
		"bob":   2200,
		"carol": 500,
	}

	got := NetBalances(edges)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NetBalances(raw) = %v, want %v", got, want)
	}

	reversed := make([]Edge, len(edges))
	for i, e := range edges {
		reversed[len(edges)-1-i] = e
	}
	if got := NetBalances(reversed); !reflect.DeepEqual(got, want) {
		t.Errorf("NetBalances(reversed) = %v, want %v", got, want)
	}

	fromNetted := NetBalances(Net(edges))
	if !reflect.DeepEqual(fromNetted, want) {
		t.Errorf("NetBalances(Net(edges)) = %v, want %v", fromNetted, want)
	}
}

func TestNetBalancesSumToZero(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	users := []string{"u1", "u2", "u3", "u4"}

	for trial := 0; trial < 100; trial++ {
		var edges []Edge
		for i := 0; i < rng.Intn(20); i++ {
			edges = append(edges, Edge{
				Debtor:   users[rng.Intn(len(users))],
				Creditor: users[rng.Intn(len(users))],
				Amount:   money.Money(rng.Int63n(5000)),
			})
		}
		var sum money.Money
		for _, bal := range NetBalances(edges) {
			sum += bal
		}
		if sum != 0 {
			t.Fatalf("trial %d: balances sum to %d, want 0", trial, sum)
		}
	}
}

func TestTotalOutstanding(t *testing.T) {
	edges := []Edge{
		{Debtor: "alice", Creditor: "bob", Amount: 3000},
		{Debtor: "bob", Creditor: "alice", Amount: 1000},
		{Debtor: "carol", Creditor: "bob", Amount: 500},
	}
	if got := TotalOutstanding(Net(edges)); got != 2500 {
		t.Errorf("TotalOutstanding = %d, want 2500", got)
	}
	if got := TotalOutstanding(Net(nil)); got != 0 {
		t.Errorf("TotalOutstanding(empty) = %d, want 0", got)
	}
}

func ExampleNet() {
	edges := []Edge{
		{Debtor: "alice", Creditor: "bob", Amount: 3000},
		{Debtor: "bob", Creditor: "alice", Amount: 1000},
	}
	for _, e := range Net(edges) {
		fmt.Printf("%s owes %s %s\n", e.Debtor, e.Creditor, e.Amount)
	}
	// Output: alice owes bob 20.00
}
