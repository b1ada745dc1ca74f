package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/chess"
	"github.com/tecu23/arena-server/pkg/events"
	"github.com/tecu23/arena-server/pkg/messages"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[string][]messages.OutboundMessage
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(map[string][]messages.OutboundMessage)}
}

func (n *recordingNotifier) Send(connID string, msg messages.OutboundMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent[connID] = append(n.sent[connID], msg)
}

func (n *recordingNotifier) events(connID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.sent[connID] {
		out = append(out, m.Event)
	}
	return out
}

func (n *recordingNotifier) last(connID string) messages.OutboundMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	msgs := n.sent[connID]
	if len(msgs) == 0 {
		return messages.OutboundMessage{}
	}
	return msgs[len(msgs)-1]
}

func (n *recordingNotifier) count(connID, event string) int {
	c := 0
	for _, e := range n.events(connID) {
		if e == event {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = make(map[string][]messages.OutboundMessage)
}

func newTestSession(t *testing.T, params CreateParams) (*Session, *recordingNotifier) {
	t.Helper()
	if params.ID == "" {
		params.ID = "g1"
	}
	if params.Board == nil {
		params.Board = chess.StandardRules{}.NewBoard()
	}
	n := newRecordingNotifier()
	s := NewSession(params, n, events.NewPublisher(), zap.NewNop())
	t.Cleanup(s.Close)
	return s, n
}

// startedSession seats alice as white and bob as black.
func startedSession(t *testing.T) (*Session, *recordingNotifier) {
	t.Helper()
	s, n := newTestSession(t, CreateParams{})
	_, err := s.Join("c-alice", "alice", "Alice")
	require.NoError(t, err)
	_, err = s.Join("c-bob", "bob", "Bob")
	require.NoError(t, err)
	n.reset()
	return s, n
}

func mv(t *testing.T, uci string) chess.MoveRequest {
	t.Helper()
	req, err := chess.ParseUCI(uci)
	require.NoError(t, err)
	return req
}

func TestJoin_SecondPlayerStartsGame(t *testing.T) {
	s, n := newTestSession(t, CreateParams{})

	res, err := s.Join("c-alice", "alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, RolePlayer, res.Role)
	assert.Equal(t, chess.White, res.Color)
	assert.Equal(t, StatusWaiting, s.Status())

	res, err = s.Join("c-bob", "bob", "Bob")
	require.NoError(t, err)
	assert.Equal(t, chess.Black, res.Color)
	assert.Equal(t, StatusActive, s.Status())

	started := n.last("c-alice")
	require.Equal(t, messages.EventGameStarted, started.Event)
	assert.Equal(t, "Bob", started.Payload.(messages.GameStartedPayload).Opponent.Name)

	joined := n.last("c-bob")
	require.Equal(t, messages.EventGameJoined, joined.Event)
	payload := joined.Payload.(messages.GameJoinedPayload)
	assert.Equal(t, "b", payload.Color)
	require.NotNil(t, payload.Opponent)
	assert.Equal(t, "alice", payload.Opponent.ID)
	assert.Equal(t, "active", payload.Status)
}

func TestJoin_ThirdParticipantIsSpectator(t *testing.T) {
	s, n := startedSession(t)

	res, err := s.Join("c-carol", "carol", "Carol")
	require.NoError(t, err)
	assert.Equal(t, RoleSpectator, res.Role)

	joined := n.events("c-carol")
	require.NotEmpty(t, joined)
	assert.Equal(t, messages.EventGameJoined, joined[0])
	assert.Equal(t, 1, n.count("c-alice", messages.EventSpectatorJoined))

	_, err = s.SubmitMove("carol", mv(t, "e2e4"))
	assert.ErrorIs(t, err, ErrSpectatorWrite)
	assert.Equal(t, 0, s.MoveCount())
}

func TestJoin_ReconnectDoesNotDuplicate(t *testing.T) {
	s, n := startedSession(t)
	_, err := s.SubmitMove("alice", mv(t, "e2e4"))
	require.NoError(t, err)

	require.True(t, s.Disconnect("c-alice"))
	assert.Equal(t, 1, n.count("c-bob", messages.EventPlayerDisconnected))
	n.reset()

	res, err := s.Join("c-alice-2", "alice", "Alice")
	require.NoError(t, err)
	assert.True(t, res.Reconnected)
	assert.Equal(t, chess.White, res.Color)

	snap := n.last("c-alice-2")
	require.Equal(t, messages.EventGameJoined, snap.Event)
	payload := snap.Payload.(messages.GameJoinedPayload)
	assert.True(t, payload.Reconnected)
	require.Len(t, payload.Moves, 1)
	assert.Equal(t, "e4", payload.Moves[0].SAN)
	assert.Equal(t, "b", payload.Turn)

	assert.Equal(t, []string{messages.EventOpponentReconnected}, n.events("c-bob"))

	// Repeating the identification is idempotent.
	_, err = s.Join("c-alice-3", "alice", "Alice")
	require.NoError(t, err)
	assert.Len(t, s.players(), 2)
	assert.Empty(t, s.spectators)
}

func TestJoin_SpectatorRejoinIsIdempotent(t *testing.T) {
	s, _ := startedSession(t)

	_, err := s.Join("c-carol", "carol", "Carol")
	require.NoError(t, err)
	res, err := s.Join("c-carol-2", "carol", "Carol")
	require.NoError(t, err)

	assert.True(t, res.Reconnected)
	assert.Len(t, s.spectators, 1)
	assert.Equal(t, "c-carol-2", s.spectators[0].ConnID)
}

func TestSubmitMove_AppliesAndBroadcasts(t *testing.T) {
	s, n := startedSession(t)

	res, err := s.SubmitMove("alice", mv(t, "e2e4"))
	require.NoError(t, err)
	assert.Equal(t, "e4", res.Move.SAN)
	assert.Equal(t, chess.Black, res.Turn)
	assert.Equal(t, StatusActive, res.Status)

	for _, conn := range []string{"c-alice", "c-bob"} {
		msg := n.last(conn)
		require.Equal(t, messages.EventMoveMade, msg.Event)
		payload := msg.Payload.(messages.MoveMadePayload)
		assert.Equal(t, "b", payload.Turn)
		assert.False(t, payload.GameOver)
	}
}

func TestSubmitMove_TurnAlternatesWithParity(t *testing.T) {
	s, _ := startedSession(t)

	seq := []struct {
		player string
		uci    string
	}{
		{"alice", "e2e4"}, {"bob", "e7e5"}, {"alice", "g1f3"}, {"bob", "b8c6"}, {"alice", "f1b5"},
	}
	for i, step := range seq {
		_, err := s.SubmitMove(step.player, mv(t, step.uci))
		require.NoError(t, err)

		want := chess.White
		if (i+1)%2 == 1 {
			want = chess.Black
		}
		assert.Equal(t, want, s.Turn())
		assert.Equal(t, i+1, s.MoveCount())
	}
}

func TestSubmitMove_Rejections(t *testing.T) {
	s, n := startedSession(t)

	_, err := s.SubmitMove("bob", mv(t, "e7e5"))
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.Equal(t, "unauthorized", Kind(err))

	_, err = s.SubmitMove("alice", mv(t, "e2e5"))
	assert.ErrorIs(t, err, ErrIllegalMove)
	assert.Equal(t, "illegal_move", Kind(err))

	_, err = s.SubmitMove("mallory", mv(t, "e2e4"))
	assert.ErrorIs(t, err, ErrNotInRoom)

	assert.Equal(t, 0, s.MoveCount())
	assert.Equal(t, chess.White, s.Turn())
	assert.Empty(t, n.events("c-alice"))
	assert.Empty(t, n.events("c-bob"))
}

func TestSubmitMove_WaitingGameRejects(t *testing.T) {
	s, _ := newTestSession(t, CreateParams{})
	_, err := s.Join("c-alice", "alice", "Alice")
	require.NoError(t, err)

	_, err = s.SubmitMove("alice", mv(t, "e2e4"))
	assert.ErrorIs(t, err, ErrGameNotActive)
}

func TestSubmitMove_Checkmate(t *testing.T) {
	s, n := startedSession(t)

	for _, step := range []struct{ player, uci string }{
		{"alice", "f2f3"}, {"bob", "e7e5"}, {"alice", "g2g4"}, {"bob", "d8h4"},
	} {
		_, err := s.SubmitMove(step.player, mv(t, step.uci))
		require.NoError(t, err)
	}

	assert.Equal(t, StatusCheckmate, s.Status())
	assert.Equal(t, 1, n.count("c-alice", messages.EventGameOver))
	over := n.last("c-bob").Payload.(messages.GameOverPayload)
	assert.Equal(t, ResultBlackWins, over.Result)
	assert.Equal(t, "b", over.Winner)

	_, err := s.SubmitMove("alice", mv(t, "a2a3"))
	assert.ErrorIs(t, err, ErrGameNotActive)
}

func TestSubmitMove_TerminalConditions(t *testing.T) {
	tests := []struct {
		name       string
		fen        string // empty for the starting position
		moves      []string
		wantStatus Status
		wantReason string
		wantResult string
	}{
		{
			name:       "stalemate",
			fen:        "7k/4Q3/6K1/8/8/8/8/8 w - - 0 1",
			moves:      []string{"e7f7"},
			wantStatus: StatusStalemate,
			wantReason: "stalemate",
			wantResult: ResultDraw,
		},
		{
			name:       "threefold repetition",
			moves:      []string{"g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1", "f6g8"},
			wantStatus: StatusDraw,
			wantReason: "threefold repetition",
			wantResult: ResultDraw,
		},
		{
			name:       "insufficient material",
			fen:        "7k/8/8/8/8/8/1p6/K7 w - - 0 1",
			moves:      []string{"a1b2"},
			wantStatus: StatusDraw,
			wantReason: "insufficient material",
			wantResult: ResultDraw,
		},
		{
			name:       "fifty-move rule",
			fen:        "k7/8/8/8/8/8/8/KR6 w - - 99 80",
			moves:      []string{"b1b2"},
			wantStatus: StatusDraw,
			wantReason: "fifty-move rule",
			wantResult: ResultDraw,
		},
		{
			name:       "checkmate wins over the fifty-move rule",
			fen:        "7k/8/6K1/8/8/8/8/R7 w - - 99 80",
			moves:      []string{"a1a8"},
			wantStatus: StatusCheckmate,
			wantReason: "checkmate",
			wantResult: ResultWhiteWins,
		},
		{
			name:       "stalemate wins over the fifty-move rule",
			fen:        "7k/4Q3/6K1/8/8/8/8/8 w - - 99 80",
			moves:      []string{"e7f7"},
			wantStatus: StatusStalemate,
			wantReason: "stalemate",
			wantResult: ResultDraw,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var params CreateParams
			if tt.fen != "" {
				board, err := chess.StandardRules{}.NewBoardFromFEN(tt.fen)
				require.NoError(t, err)
				params.Board = board
			}
			s, n := newTestSession(t, params)
			_, err := s.Join("c-alice", "alice", "Alice")
			require.NoError(t, err)
			_, err = s.Join("c-bob", "bob", "Bob")
			require.NoError(t, err)

			players := map[chess.Color]string{chess.White: "alice", chess.Black: "bob"}
			for i, uci := range tt.moves {
				res, err := s.SubmitMove(players[s.Turn()], mv(t, uci))
				require.NoError(t, err, "move %s", uci)
				if i < len(tt.moves)-1 {
					require.Equal(t, StatusActive, res.Status, "game ended early at %s", uci)
				}
			}

			assert.Equal(t, tt.wantStatus, s.Status())
			assert.Equal(t, 1, n.count("c-alice", messages.EventGameOver))
			assert.Equal(t, 1, n.count("c-bob", messages.EventGameOver))

			over := n.last("c-bob").Payload.(messages.GameOverPayload)
			assert.Equal(t, string(tt.wantStatus), over.Status)
			assert.Equal(t, tt.wantReason, over.Reason)
			assert.Equal(t, tt.wantResult, over.Result)
			if tt.wantResult == ResultDraw {
				assert.Empty(t, over.Winner)
			}
		})
	}
}

func TestResign_IsTerminalOnce(t *testing.T) {
	s, n := startedSession(t)

	require.NoError(t, s.Resign("alice"))
	assert.Equal(t, StatusResigned, s.Status())

	over := n.last("c-bob").Payload.(messages.GameOverPayload)
	assert.Equal(t, ResultBlackWins, over.Result)

	assert.ErrorIs(t, s.Resign("alice"), ErrGameNotActive)
	assert.ErrorIs(t, s.Resign("bob"), ErrGameNotActive)
	assert.Equal(t, 1, n.count("c-alice", messages.EventGameOver))
	assert.Equal(t, 1, n.count("c-bob", messages.EventGameOver))
}

func TestDraw_DeclineThenMoveContinues(t *testing.T) {
	s, n := startedSession(t)

	require.NoError(t, s.OfferDraw("alice"))
	assert.Equal(t, []string{messages.EventDrawOffered}, n.events("c-bob"))
	assert.Empty(t, n.events("c-alice"))
	assert.ErrorIs(t, s.OfferDraw("alice"), ErrDrawAlreadyOffered)
	assert.ErrorIs(t, s.RespondToDraw("alice", true), ErrOwnDrawOffer)

	require.NoError(t, s.RespondToDraw("bob", false))
	assert.Nil(t, s.PendingDraw())
	assert.Equal(t, StatusActive, s.Status())
	declined := n.last("c-alice")
	require.Equal(t, messages.EventDrawDeclined, declined.Event)
	assert.Equal(t, "bob", declined.Payload.(messages.DrawDeclinedPayload).By.ID)

	_, err := s.SubmitMove("alice", mv(t, "e2e4"))
	assert.NoError(t, err)
}

func TestDraw_AcceptIsTerminal(t *testing.T) {
	s, n := startedSession(t)

	require.NoError(t, s.OfferDraw("bob"))
	require.NoError(t, s.RespondToDraw("alice", true))

	assert.Equal(t, StatusDraw, s.Status())
	over := n.last("c-bob").Payload.(messages.GameOverPayload)
	assert.Equal(t, ResultDraw, over.Result)
	assert.Equal(t, "agreement", over.Reason)

	assert.ErrorIs(t, s.RespondToDraw("alice", true), ErrGameNotActive)
	assert.Equal(t, 1, n.count("c-alice", messages.EventGameOver))
}

func TestDraw_MoveClearsPendingOffer(t *testing.T) {
	s, _ := startedSession(t)

	require.NoError(t, s.OfferDraw("alice"))
	_, err := s.SubmitMove("alice", mv(t, "e2e4"))
	require.NoError(t, err)

	assert.Nil(t, s.PendingDraw())
	assert.ErrorIs(t, s.RespondToDraw("bob", true), ErrNoDrawOffer)
}

func TestSendMessage_RoomMembers(t *testing.T) {
	s, n := startedSession(t)
	_, err := s.Join("c-carol", "carol", "Carol")
	require.NoError(t, err)
	n.reset()

	entry, err := s.SendMessage("carol", "nice opening")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "Carol", entry.PlayerName)
	assert.False(t, entry.Timestamp.IsZero())

	for _, conn := range []string{"c-alice", "c-bob", "c-carol"} {
		assert.Equal(t, []string{messages.EventMessageReceived}, n.events(conn))
	}

	_, err = s.SendMessage("mallory", "hi")
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestSendMessage_ChatIsCapped(t *testing.T) {
	s, _ := startedSession(t)
	for i := 0; i < maxChatEntries+5; i++ {
		_, err := s.SendMessage("alice", "spam")
		require.NoError(t, err)
	}
	assert.Len(t, s.chat, maxChatEntries)
}

func TestAIGame_DeclinesDrawAndReportsTurn(t *testing.T) {
	s, n := newTestSession(t, CreateParams{Type: TypeAI, AILevel: 3})
	require.NoError(t, s.JoinAI("c-alice", "alice", "Alice", "ai-1", "Computer"))
	assert.Equal(t, StatusActive, s.Status())

	_, ok := s.PendingAITurn()
	assert.False(t, ok)

	require.NoError(t, s.OfferDraw("alice"))
	assert.Nil(t, s.PendingDraw())
	assert.Equal(t, messages.EventDrawDeclined, n.last("c-alice").Event)

	_, err := s.SubmitMove("alice", mv(t, "e2e4"))
	require.NoError(t, err)

	turn, ok := s.PendingAITurn()
	require.True(t, ok)
	assert.Equal(t, "ai-1", turn.PlayerID)
	assert.Equal(t, chess.Black, turn.Color)
	assert.Equal(t, 3, turn.Level)
	assert.Len(t, turn.Legal, 20)

	_, err = s.Join("c-evil", "ai-1", "Impostor")
	assert.ErrorIs(t, err, ErrReservedIdentity)
}

func TestAbandonment(t *testing.T) {
	s, n := newTestSession(t, CreateParams{AbandonAfter: 20 * time.Millisecond})
	_, err := s.Join("c-alice", "alice", "Alice")
	require.NoError(t, err)
	_, err = s.Join("c-bob", "bob", "Bob")
	require.NoError(t, err)

	s.Disconnect("c-bob")

	assert.Eventually(t, func() bool {
		return s.Status() == StatusAbandoned
	}, time.Second, 5*time.Millisecond)
	over := n.last("c-alice").Payload.(messages.GameOverPayload)
	assert.Equal(t, ResultWhiteWins, over.Result)
}

func TestAbandonment_CancelledByReconnect(t *testing.T) {
	s, _ := newTestSession(t, CreateParams{AbandonAfter: 30 * time.Millisecond})
	_, err := s.Join("c-alice", "alice", "Alice")
	require.NoError(t, err)
	_, err = s.Join("c-bob", "bob", "Bob")
	require.NoError(t, err)

	s.Disconnect("c-bob")
	_, err = s.Join("c-bob-2", "bob", "Bob")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StatusActive, s.Status())
}

func TestTimeout(t *testing.T) {
	s, n := newTestSession(t, CreateParams{TimeControl: chess.TimeControl{InitialMs: 30}})
	_, err := s.Join("c-alice", "alice", "Alice")
	require.NoError(t, err)
	_, err = s.Join("c-bob", "bob", "Bob")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return s.Status() == StatusTimeout
	}, time.Second, 5*time.Millisecond)
	over := n.last("c-bob").Payload.(messages.GameOverPayload)
	assert.Equal(t, ResultBlackWins, over.Result)
	assert.Equal(t, "timeout", over.Reason)
}

func TestSubmitMove_AfterFlagFallEndsGame(t *testing.T) {
	tc := chess.TimeControl{InitialMs: 20}
	s, n := newTestSession(t, CreateParams{TimeControl: tc})
	_, err := s.Join("c-alice", "alice", "Alice")
	require.NoError(t, err)
	_, err = s.Join("c-bob", "bob", "Bob")
	require.NoError(t, err)

	// A clock without a flag callback stands in for a flag timer that has
	// not reached the session yet.
	s.mu.Lock()
	s.clock.Stop()
	s.clock = chess.NewClock(tc, nil)
	s.clock.Start(chess.White)
	s.mu.Unlock()
	time.Sleep(40 * time.Millisecond)

	_, err = s.SubmitMove("alice", mv(t, "e2e4"))
	assert.ErrorIs(t, err, ErrGameNotActive)

	assert.Equal(t, StatusTimeout, s.Status())
	assert.Equal(t, 0, s.MoveCount())
	assert.Equal(t, 1, n.count("c-bob", messages.EventGameOver))
	assert.Zero(t, n.count("c-bob", messages.EventMoveMade))

	over := n.last("c-bob").Payload.(messages.GameOverPayload)
	assert.Equal(t, ResultBlackWins, over.Result)
	assert.Equal(t, "timeout", over.Reason)
}

func TestFinish_PublishesGameOverOnce(t *testing.T) {
	s, _ := startedSession(t)

	var mu sync.Mutex
	var got []events.GameOverPayload
	s.publisher.Subscribe(events.EventGameOver, func(e events.Event) {
		mu.Lock()
		got = append(got, e.Payload.(events.GameOverPayload))
		mu.Unlock()
	})

	require.NoError(t, s.Resign("bob"))
	_ = s.Resign("alice")
	s.publisher.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, ResultWhiteWins, got[0].Result)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "protocol", Kind(ErrProtocol))
	assert.Equal(t, "not_found", Kind(ErrGameNotFound))
	assert.Equal(t, "unauthorized", Kind(ErrNotSeated))
	assert.Equal(t, "internal", Kind(assert.AnError))
}
