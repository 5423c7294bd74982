package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/blockfall/backend/internal/domain"
)

type RoomLister interface {
	ListRooms() []domain.RoomSummary
}

type RoomsHandler struct {
	Rooms RoomLister
}

func NewRoomsHandler(rooms RoomLister) *RoomsHandler {
	return &RoomsHandler{Rooms: rooms}
}

// GetRooms returns the lobby list with member details.
func (h *RoomsHandler) GetRooms(c *gin.Context) {
	rooms := h.Rooms.ListRooms()
	if rooms == nil {
		rooms = []domain.RoomSummary{}
	}
	c.JSON(http.StatusOK, rooms)
}
