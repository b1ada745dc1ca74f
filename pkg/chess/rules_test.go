package chess

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func play(t *testing.T, b Board, moves ...string) {
	t.Helper()
	for _, uci := range moves {
		req, err := ParseUCI(uci)
		require.NoError(t, err)
		_, err = b.Apply(req)
		require.NoError(t, err, "move %s", uci)
	}
}

func TestStandardBoard_OpeningMove(t *testing.T) {
	b := StandardRules{}.NewBoard()
	require.Equal(t, White, b.Turn())
	assert.Len(t, b.LegalMoves(), 20)

	mv, err := b.Apply(MoveRequest{From: "e2", To: "e4"})
	require.NoError(t, err)

	assert.Equal(t, "e2e4", mv.UCI)
	assert.Equal(t, "e4", mv.SAN)
	assert.Equal(t, White, mv.Color)
	assert.Equal(t, Black, b.Turn())
	assert.False(t, b.Terminal().Over())
}

func TestStandardBoard_RecordsSAN(t *testing.T) {
	tests := []struct {
		name  string
		moves []string
		want  string
	}{
		{"capture with check", []string{"e2e4", "e7e5", "f1c4", "b8c6", "c4f7"}, "Bxf7+"},
		{"short castling", []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6", "e1g1"}, "O-O"},
		{"knight development", []string{"g1f3"}, "Nf3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := StandardRules{}.NewBoard()
			play(t, b, tt.moves[:len(tt.moves)-1]...)

			last := tt.moves[len(tt.moves)-1]
			req, err := ParseUCI(last)
			require.NoError(t, err)

			mv, err := b.Apply(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mv.SAN)
			assert.Equal(t, last, mv.UCI)
		})
	}
}

func TestStandardBoard_IllegalMoveLeavesPosition(t *testing.T) {
	b := StandardRules{}.NewBoard()
	fen := b.FEN()

	_, err := b.Apply(MoveRequest{From: "e2", To: "e5"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalMove))
	assert.Equal(t, fen, b.FEN())
	assert.Equal(t, White, b.Turn())
}

func TestStandardBoard_Checkmate(t *testing.T) {
	b := StandardRules{}.NewBoard()
	play(t, b, "f2f3", "e7e5", "g2g4", "d8h4")

	term := b.Terminal()
	assert.True(t, term.Checkmate)
	assert.True(t, term.Over())
	assert.Empty(t, b.LegalMoves())
}

func TestStandardBoard_Stalemate(t *testing.T) {
	b, err := StandardRules{}.NewBoardFromFEN("7k/4Q3/6K1/8/8/8/8/8 w - - 0 1")
	require.NoError(t, err)

	play(t, b, "e7f7")

	term := b.Terminal()
	assert.True(t, term.Stalemate)
	assert.False(t, term.Checkmate)
}

func TestStandardBoard_InsufficientMaterial(t *testing.T) {
	b, err := StandardRules{}.NewBoardFromFEN("7k/8/8/8/8/8/1p6/K7 w - - 0 1")
	require.NoError(t, err)

	play(t, b, "a1b2")

	assert.True(t, b.Terminal().InsufficientMaterial)
}

func TestStandardBoard_ThreefoldRepetition(t *testing.T) {
	b := StandardRules{}.NewBoard()
	play(t, b, "g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1", "f6g8")

	assert.True(t, b.Terminal().Threefold)
}

func TestStandardBoard_Promotion(t *testing.T) {
	b, err := StandardRules{}.NewBoardFromFEN("7k/P7/8/8/8/8/8/K7 w - - 0 1")
	require.NoError(t, err)

	_, err = b.Apply(MoveRequest{From: "a7", To: "a8"})
	require.Error(t, err, "promotion piece is required")

	mv, err := b.Apply(MoveRequest{From: "a7", To: "a8", Promotion: "q"})
	require.NoError(t, err)
	assert.Equal(t, "a7a8q", mv.UCI)
}

func TestParseUCI(t *testing.T) {
	req, err := ParseUCI("E7E8Q")
	require.NoError(t, err)
	assert.Equal(t, MoveRequest{From: "e7", To: "e8", Promotion: "q"}, req)

	_, err = ParseUCI("e2")
	assert.Error(t, err)
}

func TestColor(t *testing.T) {
	assert.Equal(t, Black, White.Opp())
	assert.Equal(t, White, Black.Opp())
	assert.Equal(t, "black", Black.Name())
	assert.False(t, Color("x").Valid())
}
