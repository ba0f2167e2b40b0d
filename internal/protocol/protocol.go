// Package protocol defines the JSON messages exchanged with clients. Clients
// are untrusted renderers: they send intents and draw whatever snapshots the
// server pushes back.
package protocol

import "quadris/internal/game"

// Client -> server intent types.
const (
	MsgStartGame        = "startGame"
	MsgMoveBlock        = "moveBlock"
	MsgRotateBlock      = "rotateBlock"
	MsgDropBlock        = "dropBlock"
	MsgResetGame        = "resetGame"
	MsgStopGame         = "stopGame"
	MsgCreateLobby      = "createLobby"
	MsgJoinLobby        = "joinLobby"
	MsgLeaveLobby       = "leaveLobby"
	MsgToggleReady      = "toggleReady"
	MsgStartMultiplayer = "startMultiplayerGame"
	MsgGameOver         = "gameOver"
)

// Server -> client event types.
const (
	EvtReceiveGame   = "receiveGame"
	EvtRefreshGame   = "refreshGame"
	EvtRefreshRoom   = "refreshRoom"
	EvtLobbyCreated  = "lobbyCreated"
	EvtLobbyJoined   = "lobbyJoined"
	EvtPlayerLeft    = "playerLeft"
	EvtBlockFixed    = "blockFixed"
	EvtCountdown     = "countdown"
	EvtGameOver      = "gameOver"
	EvtMatchStarting = "startMultiplayerGame"
	EvtMatchEnd      = "multiplayerGameEnd"
	EvtError         = "error"
)

// Error tags carried by EvtError. Only the requesting connection ever sees
// them.
const (
	ErrLobbyNotFound = "lobbyNotFound"
	ErrLobbyFull     = "lobbyFull"
	ErrLobbyInGame   = "lobbyInGame"
	ErrNameLength    = "nameLength"
	ErrNameTaken     = "nameTaken"
	ErrBadMessage    = "badMessage"
)

type ClientMessage struct {
	Type       string `json:"type"`
	X          int    `json:"x,omitempty"`
	Y          int    `json:"y,omitempty"`
	RoomID     string `json:"roomId,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
}

type PieceView struct {
	Kind  string   `json:"type"`
	Shape [][]bool `json:"shape"`
	Color string   `json:"color"`
}

type PlayerInfo struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Ready          bool          `json:"isReady"`
	GameOver       bool          `json:"isGameOver"`
	Score          int           `json:"score"`
	Level          int           `json:"level"`
	Lines          int           `json:"totalLinesCleared"`
	PiecesConsumed int           `json:"piecesConsumed"`
	Grid           [][]game.Cell `json:"grid,omitempty"`
}

type RoomSnapshot struct {
	ID      string       `json:"roomId"`
	ChiefID string       `json:"chief"`
	Started bool         `json:"gameStarted"`
	Players []PlayerInfo `json:"players"`
}

type GameSnapshot struct {
	Grid     [][]game.Cell `json:"grid"`
	Next     *PieceView    `json:"nextBlock"`
	Score    int           `json:"score"`
	Level    int           `json:"level"`
	Speed    int           `json:"speed"`
	Lines    int           `json:"totalLinesCleared"`
	GameOver bool          `json:"isGameOver"`
	Room     *RoomSnapshot `json:"room,omitempty"`
}

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type ServerEvent struct {
	Type      string        `json:"type"`
	Game      *GameSnapshot `json:"game,omitempty"`
	Room      *RoomSnapshot `json:"room,omitempty"`
	RoomID    string        `json:"roomId,omitempty"`
	Positions []Pos         `json:"positions,omitempty"`
	Count     *int          `json:"count,omitempty"`
	Score     *int          `json:"score,omitempty"`
	Winner    *PlayerInfo   `json:"winner,omitempty"`
	ErrorType string        `json:"errorType,omitempty"`
}
