package evaluator

import (
	"sort"
	"strings"

	"github.com/lox/cardroom/internal/deck"
)

// Best returns the strongest five-card hand available from the hole cards
// and board under the rules. Omaha-family rules restrict the search to
// exactly two hole cards and three board cards; all other variants take the
// best five of the union.
func Best(hole, board []deck.Card, rules Rules) HandValue {
	var best HandValue
	found := false
	forEachFive(hole, board, rules, func(five []deck.Card) {
		hv := Evaluate5(five, rules)
		if !found || hv.Score > best.Score {
			best = hv
			found = true
		}
	})
	if !found {
		panic("evaluator: no five-card combination available")
	}
	return best
}

// LowValue is a qualifying low for hi-lo variants: five distinct ranks all
// eight or below, with the ace counting as one. Lower scores are better.
type LowValue struct {
	Score uint32
	// Ranks holds the five rank values in descending order, ace as 1.
	Ranks [5]int
	Cards []deck.Card
}

// String renders the low like "8-6-4-3-A Low".
func (lv LowValue) String() string {
	labels := make([]string, 5)
	for i, r := range lv.Ranks {
		if r == 1 {
			labels[i] = "A"
		} else {
			labels[i] = deck.Rank(r).String()
		}
	}
	return strings.Join(labels, "-") + " Low"
}

// Low returns the best qualifying low hand, or false when no combination
// qualifies. The same combination constraints as Best apply, so Omaha hi-lo
// lows also use exactly two hole cards.
func Low(hole, board []deck.Card, rules Rules) (LowValue, bool) {
	var best LowValue
	found := false
	forEachFive(hole, board, rules, func(five []deck.Card) {
		lv, ok := low5(five)
		if !ok {
			return
		}
		if !found || lv.Score < best.Score {
			best = lv
			found = true
		}
	})
	return best, found
}

// low5 checks one five-card combination for a qualifying low.
func low5(five []deck.Card) (LowValue, bool) {
	var ranks [5]int
	var seen [9]bool
	for i, c := range five {
		r := int(c.Rank)
		if c.Rank == deck.Ace {
			r = 1
		}
		if r > 8 || seen[r] {
			return LowValue{}, false
		}
		seen[r] = true
		ranks[i] = r
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks[:])))

	var score uint32
	for _, r := range ranks {
		score = score<<4 | uint32(r)
	}

	cards := make([]deck.Card, 5)
	copy(cards, five)
	return LowValue{Score: score, Ranks: ranks, Cards: cards}, true
}

// Winners returns the indices of the hands tied for the best score.
func Winners(values []HandValue) []int {
	best := []int{}
	for i, v := range values {
		switch {
		case len(best) == 0 || v.Score > values[best[0]].Score:
			best = []int{i}
		case v.Score == values[best[0]].Score:
			best = append(best, i)
		}
	}
	return best
}

// LowWinners returns the indices tied for the best qualifying low; the
// result is empty when no entry qualifies.
func LowWinners(lows []LowValue, qualified []bool) []int {
	best := []int{}
	for i, lv := range lows {
		if !qualified[i] {
			continue
		}
		switch {
		case len(best) == 0 || lv.Score < lows[best[0]].Score:
			best = []int{i}
		case lv.Score == lows[best[0]].Score:
			best = append(best, i)
		}
	}
	return best
}

// forEachFive enumerates the five-card combinations the rules allow.
func forEachFive(hole, board []deck.Card, rules Rules, fn func([]deck.Card)) {
	if rules.UseTwoHoleCards {
		five := make([]deck.Card, 5)
		combinations(len(hole), 2, func(hi []int) {
			combinations(len(board), 3, func(bi []int) {
				five[0] = hole[hi[0]]
				five[1] = hole[hi[1]]
				for i, b := range bi {
					five[2+i] = board[b]
				}
				fn(five)
			})
		})
		return
	}

	union := make([]deck.Card, 0, len(hole)+len(board))
	union = append(union, hole...)
	union = append(union, board...)
	five := make([]deck.Card, 5)
	combinations(len(union), 5, func(ci []int) {
		for i, idx := range ci {
			five[i] = union[idx]
		}
		fn(five)
	})
}

// combinations calls fn with each k-subset of [0,n) in lexicographic order.
// The index slice passed to fn is reused between calls.
func combinations(n, k int, fn func([]int)) {
	if k <= 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
