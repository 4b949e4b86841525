package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/directory"
	"github.com/vovakirdan/roomchat/internal/store"
)

// RoomHandlers provides the room registry REST endpoints.
type RoomHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		log:   logger,
	}
}

// CreateRoomRequest is the create room request body.
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// CreateRoomResponse carries the server-assigned room id.
type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

// RoomResponse describes an existing room.
type RoomResponse struct {
	RoomID string `json:"room_id"`
	Name   string `json:"name"`
}

// NotFoundResponse is the sentinel body clients match on when a room is
// absent. The message text is part of the protocol; do not reword it.
type NotFoundResponse struct {
	Message string `json:"message"`
}

// ErrorResponse reports a request-level failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateRoom handles room creation.
// POST /rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room name must not be blank"})
		return
	}

	room, err := h.store.CreateRoom(c.Request.Context(), req.Name)
	if err != nil {
		h.log.Error().Err(err).Str("room_name", req.Name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room_id", room.ID).Str("room_name", room.Name).Msg("room created")
	c.JSON(http.StatusCreated, CreateRoomResponse{RoomID: room.ID})
}

// GetRoom handles room lookup.
// GET /rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	id := c.Param("id")

	room, err := h.store.GetRoom(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", id).Msg("failed to fetch room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if room == nil {
		c.JSON(http.StatusNotFound, NotFoundResponse{Message: directory.SentinelNotFound})
		return
	}

	c.JSON(http.StatusOK, RoomResponse{RoomID: room.ID, Name: room.Name})
}
