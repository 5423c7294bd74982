package game

import "github.com/iamasit07/blockfall/backend/internal/domain"

// ProjectOpponent reduces a session state to what other players in the room see:
// an occupancy-only board and the active piece's kind, position and mask.
// Nothing in the result aliases state.
func ProjectOpponent(state domain.SessionState, isBot bool) domain.OpponentView {
	view := domain.OpponentView{
		PlayerID:   state.PlayerID,
		PlayerName: state.PlayerName,
		IsBot:      isBot,
		Status:     state.Status,
		Score:      state.Score,
		Level:      state.Level,
		Lines:      state.Lines,
		Board:      domain.Occupancy(state.Board),
	}
	if state.Current != nil {
		view.Piece = &domain.PieceView{
			Kind: state.Current.Kind,
			X:    state.Current.X,
			Y:    state.Current.Y,
			Mask: state.Current.Mask(),
		}
	}
	return view
}
