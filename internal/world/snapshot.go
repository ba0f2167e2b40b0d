package world

import (
	"quadris/internal/game"
	"quadris/internal/protocol"
	"quadris/internal/room"
)

func pieceView(p *game.Piece) *protocol.PieceView {
	if p == nil {
		return nil
	}
	shape := make([][]bool, len(p.Shape))
	for y, row := range p.Shape {
		shape[y] = append([]bool(nil), row...)
	}
	return &protocol.PieceView{Kind: string(p.Kind), Shape: shape, Color: string(p.Color)}
}

func gameSnapshot(s *session) *protocol.GameSnapshot {
	return &protocol.GameSnapshot{
		Grid:     s.RenderGrid(),
		Next:     pieceView(s.NextPiece),
		Score:    s.Score,
		Level:    s.Level,
		Speed:    s.Speed,
		Lines:    s.TotalLinesCleared,
		GameOver: s.GameOver,
	}
}

func playerInfo(m *room.Member) protocol.PlayerInfo {
	return protocol.PlayerInfo{
		ID:             m.ConnID,
		Name:           m.Name,
		Ready:          m.Ready,
		GameOver:       m.GameOver,
		Score:          m.Score,
		Level:          m.Level,
		Lines:          m.Lines,
		PiecesConsumed: m.PiecesConsumed,
		Grid:           m.Grid,
	}
}

func roomSnapshot(r *room.Room) *protocol.RoomSnapshot {
	snap := &protocol.RoomSnapshot{ID: r.ID, ChiefID: r.ChiefID, Started: r.Started}
	for _, m := range r.Members {
		snap.Players = append(snap.Players, playerInfo(m))
	}
	return snap
}

// leaderboardSnapshot is the match-end view: members ordered by score.
func leaderboardSnapshot(r *room.Room) *protocol.RoomSnapshot {
	snap := &protocol.RoomSnapshot{ID: r.ID, ChiefID: r.ChiefID, Started: r.Started}
	for _, m := range r.Leaderboard() {
		snap.Players = append(snap.Players, playerInfo(m))
	}
	return snap
}

func toPositions(ps []game.Pos) []protocol.Pos {
	out := make([]protocol.Pos, len(ps))
	for i, p := range ps {
		out[i] = protocol.Pos{X: p.X, Y: p.Y}
	}
	return out
}
