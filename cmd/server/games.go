package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/chess"
	"github.com/tecu23/arena-server/pkg/game"
	"github.com/tecu23/arena-server/pkg/manager"
)

type createGameRequest struct {
	TimeControl *chess.TimeControl `json:"timeControl,omitempty"`
}

type createGameResponse struct {
	GameID      string    `json:"gameId"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"createdAt"`
	GameType    string    `json:"gameType"`
	TimeControl string    `json:"timeControl"`
	Status      string    `json:"status"`
}

// gameResponse is the static view of a game. The live position is only
// available over the websocket.
type gameResponse struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	White       string            `json:"white,omitempty"`
	Black       string            `json:"black,omitempty"`
	MoveCount   int               `json:"moveCount"`
	TimeControl chess.TimeControl `json:"timeControl"`
	Clock       *clockResponse    `json:"clock,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type clockResponse struct {
	White string `json:"white"`
	Black string `json:"black"`
}

type gameListResponse struct {
	Games []gameResponse `json:"games"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleCreateGame handles POST /api/games
//
//	@Summary	Create a game room
//	@Tags		games
//	@Accept		json
//	@Produce	json
//	@Param		body	body		createGameRequest	false	"Optional time control"
//	@Success	201		{object}	createGameResponse
//	@Failure	400		{object}	errorResponse
//	@Failure	401		{object}	errorResponse
//	@Security	ApiKeyAuth
//	@Router		/api/games [post]
func (app *application) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest

	dec := json.NewDecoder(io.LimitReader(r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		app.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var params manager.CreateParams
	if req.TimeControl != nil {
		if err := req.TimeControl.Validate(); err != nil {
			app.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		params.TimeControl = *req.TimeControl
	}

	id, err := app.Manager.CreateGame(params)
	if err != nil {
		app.Logger.Error("create game failed", zap.Error(err))
		app.writeError(w, http.StatusInternalServerError, "could not create game")
		return
	}

	s, err := app.Manager.Game(id)
	if err != nil {
		app.writeError(w, http.StatusInternalServerError, "could not load game")
		return
	}
	sum := s.Summary()

	app.writeJSON(w, http.StatusCreated, createGameResponse{
		GameID:      id,
		URL:         "/game/" + id,
		CreatedAt:   sum.CreatedAt,
		GameType:    string(sum.Type),
		TimeControl: sum.TimeControl.String(),
		Status:      string(sum.Status),
	})
}

// handleGetGame handles GET /api/games/{id}
//
//	@Summary	Game metadata
//	@Tags		games
//	@Produce	json
//	@Param		id	path		string	true	"Game id"
//	@Success	200	{object}	gameResponse
//	@Failure	404	{object}	errorResponse
//	@Router		/api/games/{id} [get]
func (app *application) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		app.writeError(w, http.StatusBadRequest, "game id must be a uuid")
		return
	}

	s, err := app.Manager.Game(id)
	if errors.Is(err, game.ErrGameNotFound) {
		app.writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		app.writeError(w, http.StatusInternalServerError, "could not load game")
		return
	}

	app.writeJSON(w, http.StatusOK, toGameResponse(s.Summary()))
}

// handleActiveGames handles GET /api/games/status/active
//
//	@Summary	Games waiting for an opponent or in play
//	@Tags		games
//	@Produce	json
//	@Success	200	{object}	gameListResponse
//	@Router		/api/games/status/active [get]
func (app *application) handleActiveGames(w http.ResponseWriter, _ *http.Request) {
	sessions := app.Manager.OpenGames()

	resp := gameListResponse{Games: make([]gameResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Games = append(resp.Games, toGameResponse(s.Summary()))
	}

	app.writeJSON(w, http.StatusOK, resp)
}

func toGameResponse(sum game.Summary) gameResponse {
	resp := gameResponse{
		ID:          sum.ID,
		Type:        string(sum.Type),
		Status:      string(sum.Status),
		White:       sum.White,
		Black:       sum.Black,
		MoveCount:   sum.Moves,
		TimeControl: sum.TimeControl,
		CreatedAt:   sum.CreatedAt,
	}
	if sum.Clock != nil {
		resp.Clock = &clockResponse{
			White: chess.FormatClockTime(sum.Clock.WhiteMs),
			Black: chess.FormatClockTime(sum.Clock.BlackMs),
		}
	}
	return resp
}

func (app *application) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.Logger.Warn("write response failed", zap.Error(err))
	}
}

func (app *application) writeError(w http.ResponseWriter, status int, message string) {
	app.writeJSON(w, status, errorResponse{Error: message})
}
