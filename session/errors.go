/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import "errors"

var (
	ErrNameRequired         = errors.New("player name is required")
	ErrRoomCodeRequired     = errors.New("room code is required")
	ErrNotEnoughPlayers     = errors.New("at least 2 players are required to start")
	ErrIncompleteAccusation = errors.New("suspect, location and weapon must all be selected")
	ErrAlreadySubmitted     = errors.New("accusation already submitted")
	ErrUnknownCard          = errors.New("card is not in the catalog")
	ErrUnknownField         = errors.New("unknown accusation field")
	ErrBusy                 = errors.New("another action is in progress")
	ErrWrongState           = errors.New("action not available in the current view")
	ErrDiscarded            = errors.New("session has been discarded")
	ErrCatalogUnavailable   = errors.New("game catalog is not loaded")
)

// noticeText is what the player sees when a local check blocks an action.
var noticeText = map[error]string{
	ErrNameRequired:         "Informe seu nome",
	ErrRoomCodeRequired:     "Informe o código da sala",
	ErrNotEnoughPlayers:     "Mínimo de 2 jogadores necessário",
	ErrIncompleteAccusation: "Selecione suspeito, local e arma",
	ErrAlreadySubmitted:     "Seu palpite já foi enviado",
	ErrUnknownCard:          "Carta desconhecida",
	ErrUnknownField:         "Campo de palpite desconhecido",
	ErrBusy:                 "Aguarde a ação em andamento",
	ErrCatalogUnavailable:   "Dados do jogo ainda não carregados",
}
