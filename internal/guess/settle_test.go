package guess

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, Distance(42, 42))
	assert.Equal(t, 10, Distance(30, 40))
	assert.Equal(t, 10, Distance(40, 30))
	assert.Equal(t, 100, Distance(0, 100))
}

func TestSelectWinners(t *testing.T) {
	tests := []struct {
		name    string
		guesses []int
		target  int
		want    []int
	}{
		{"single bid", []int{3}, 90, []int{0}},
		{"exact match", []int{10, 70, 40}, 70, []int{1}},
		{"tie on both sides", []int{45, 55, 90}, 50, []int{0, 1}},
		{"duplicate guesses", []int{20, 20, 21}, 20, []int{0, 1}},
		{"later closer bid resets", []int{0, 30, 49}, 50, []int{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bids := make([]Bid, len(tt.guesses))
			for i, g := range tt.guesses {
				bids[i] = Bid{Guess: g}
			}
			assert.Equal(t, tt.want, SelectWinners(bids, tt.target))
		})
	}
}

func TestShare(t *testing.T) {
	assert.Equal(t, int64(300), Share(300, 1))
	assert.Equal(t, int64(13), Share(40, 3))
	assert.Equal(t, int64(0), Share(40, 0))
}

func TestKeccakDrawRange(t *testing.T) {
	d := KeccakDraw{}
	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		n := d.Draw(Entropy{Timestamp: int64(1700000000 + i), Sequence: uint64(i), Caller: "caller"})
		assert.True(t, ValidGuess(n), "draw %d out of range", n)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 50)

	e := Entropy{Timestamp: 1700000000, Sequence: 7, Caller: "x"}
	assert.Equal(t, d.Draw(e), d.Draw(e))
}

func TestWindows(t *testing.T) {
	w := DefaultWindows()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, w.JoinOpen(created, created.Add(time.Minute)))
	assert.False(t, w.JoinOpen(created, created.Add(w.Join)))
	assert.False(t, w.FinalizeEligible(created, created.Add(w.Finalize-time.Second)))
	assert.True(t, w.FinalizeEligible(created, created.Add(w.Finalize)))

	assert.Error(t, Windows{Join: 0, Finalize: time.Minute}.Validate())
	assert.Error(t, Windows{Join: time.Minute, Finalize: time.Minute}.Validate())
	assert.NoError(t, w.Validate())
}

func TestUserStatus(t *testing.T) {
	w := DefaultWindows()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Round{CreatedAt: created}

	assert.Equal(t, StatusInProgress, w.UserStatus(r, Bid{}, created))
	assert.Equal(t, StatusReadyToFinalize, w.UserStatus(r, Bid{}, created.Add(w.Join)))

	r.Settled = true
	assert.Equal(t, StatusFinalizedUnclaimed, w.UserStatus(r, Bid{IsWinner: true}, created))
	assert.Equal(t, StatusClosed, w.UserStatus(r, Bid{IsWinner: true, Claimed: true}, created))
	assert.Equal(t, StatusClosed, w.UserStatus(r, Bid{}, created))
	assert.Equal(t, "ready_to_finalize", StatusReadyToFinalize.String())
}
