package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/judgegodwins/chess-relay/util"
	"github.com/rs/zerolog/log"
)

type usernameRequest struct {
	Username string `json:"username" binding:"required,max=32"`
}

// Generates a token using the username passed as request body
func (s *Server) TokenGenerator(c *gin.Context) {
	var data usernameRequest

	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusUnprocessableEntity, validationResponse(err))
		return
	}

	token, payload, err := s.tokenMaker.CreateToken(data.Username, s.config.TokenDuration)

	if err != nil {
		log.Error().Err(err).Str("module", "api").Msg("error creating token")
		c.JSON(http.StatusInternalServerError, errorResponse(ErrorMessage500))
		return
	}

	c.JSON(http.StatusOK, successResponse("Auth data", gin.H{
		"id":         payload.ID,
		"username":   payload.Username,
		"token":      token,
		"expired_at": payload.ExpiredAt,
	}))
}

func (s *Server) GetTokenData(c *gin.Context) {
	payload, ok := GetPayload(c)

	if !ok {
		log.Error().Str("module", "api").Msg("auth_payload missing from request context")
		c.JSON(http.StatusInternalServerError, errorResponse(ErrorMessage500))
		return
	}

	c.JSON(http.StatusOK, successResponse("success", payload))
}

// CreateRoom suggests an unused room id. The room itself comes into being
// when the first participant joins it.
func (s *Server) CreateRoom(c *gin.Context) {
	roomID := util.NewRoomID()
	for {
		if _, taken := s.coordinator.Snapshot(roomID); !taken {
			break
		}
		roomID = util.NewRoomID()
	}

	c.JSON(http.StatusCreated, successResponse("Room id created", gin.H{
		"id": roomID,
	}))
}

func (s *Server) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse("rooms", s.coordinator.Snapshots()))
}

type checkRoomRequest struct {
	RoomID string `uri:"id" binding:"required,max=64"`
}

func (s *Server) CheckRoom(c *gin.Context) {
	var data checkRoomRequest

	if err := c.ShouldBindUri(&data); err != nil {
		c.JSON(http.StatusUnprocessableEntity, validationResponse(err))
		return
	}

	snapshot, ok := s.coordinator.Snapshot(data.RoomID)

	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("room not found"))
		return
	}

	c.JSON(http.StatusOK, successResponse("room data", snapshot))
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse("ok", gin.H{
		"clients": s.wsManager.Len(),
		"rooms":   s.coordinator.Len(),
	}))
}
