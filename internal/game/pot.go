package game

import "sort"

// Pot is one layer of the award partition. Eligible holds positions in the
// Seats slice, not persistent seat indexes.
type Pot struct {
	Amount   int
	Eligible []int
}

// buildPots partitions the hand's contributions into a main pot and side
// pots, layered by ascending all-in level. Every chip a dealt-in seat put
// up counts toward some layer: folded seats' money stays in as dead money,
// but folded seats are never eligible. Eligibility for a layer means being
// live with contributions beyond the previous level.
func (t *Table) buildPots() []Pot {
	var levels []int
	seen := make(map[int]bool)
	maxBet := 0
	for _, s := range t.Seats {
		if !s.inHand() {
			continue
		}
		if s.HandBet > maxBet {
			maxBet = s.HandBet
		}
		if s.live() && s.AllIn && s.HandBet > 0 && !seen[s.HandBet] {
			seen[s.HandBet] = true
			levels = append(levels, s.HandBet)
		}
	}
	sort.Ints(levels)
	if len(levels) == 0 || levels[len(levels)-1] < maxBet {
		levels = append(levels, maxBet)
	}

	var pots []Pot
	prev := 0
	for _, level := range levels {
		pot := Pot{}
		for pos, s := range t.Seats {
			if !s.inHand() {
				continue
			}
			if part := min(s.HandBet, level) - prev; part > 0 {
				pot.Amount += part
			}
			if s.live() && s.HandBet > prev {
				pot.Eligible = append(pot.Eligible, pos)
			}
		}
		prev = level
		if pot.Amount == 0 {
			continue
		}
		if len(pot.Eligible) == 0 && len(pots) > 0 {
			// Dead money beyond the deepest live stack folds into the
			// previous layer rather than going unawarded.
			pots[len(pots)-1].Amount += pot.Amount
			continue
		}
		pots = append(pots, pot)
	}
	return pots
}
