package guess

// Distance is the absolute difference between a guess and the target.
func Distance(guess, target int) int {
	if guess > target {
		return guess - target
	}
	return target - guess
}

// SelectWinners returns the indexes of every bid at the minimal distance.
func SelectWinners(bids []Bid, target int) []int {
	best := -1
	var winners []int
	for i, b := range bids {
		d := Distance(b.Guess, target)
		switch {
		case best < 0 || d < best:
			best = d
			winners = append(winners[:0], i)
		case d == best:
			winners = append(winners, i)
		}
	}
	return winners
}

// Share is the integer payout per winner. The remainder stays in escrow.
func Share(pool int64, winners int) int64 {
	if winners <= 0 {
		return 0
	}
	return pool / int64(winners)
}
