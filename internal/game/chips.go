package game

const (
	chipsWin      = 20
	chipsLoss     = 15
	chipsPerSpare = 5
)

// ScoreChips returns a player's new chip total after a finished match.
//
// A win pays 20 plus 5 per unused row when guessCount is within 1..6; counts
// outside that range earn no bonus. A loss costs 15, floored at zero.
// Always computed server-side from match state.
func ScoreChips(won bool, guessCount, current int) int {
	if won {
		total := current + chipsWin
		if guessCount >= 1 && guessCount <= DefaultRows {
			total += (DefaultRows + 1 - guessCount) * chipsPerSpare
		}
		return total
	}
	total := current - chipsLoss
	if total < 0 {
		return 0
	}
	return total
}
