package ws

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/dto"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
	"github.com/ignatzorin/vialert-backend/internal/service"
)

// Voter - голосование за отчёт.
type Voter interface {
	Confirm(ctx context.Context, alertID, voterID uuid.UUID) (entity.VoteResult, error)
	Dispute(ctx context.Context, alertID, voterID uuid.UUID) (entity.VoteResult, error)
}

// LocationTracker принимает позицию пользователя.
type LocationTracker interface {
	UpdateLocation(ctx context.Context, userID uuid.UUID, loc valueobject.LatLng) (service.NavigationState, error)
}

// Commands выполняет команды, пришедшие по websocket. Результат или ошибка уходят отправителю.
type Commands struct {
	hub     *Hub
	voter   Voter
	tracker LocationTracker
}

var _ CommandHandler = (*Commands)(nil)

func NewCommands(hub *Hub, voter Voter, tracker LocationTracker) *Commands {
	return &Commands{hub: hub, voter: voter, tracker: tracker}
}

func (c *Commands) HandleCommand(ctx context.Context, userID uuid.UUID, cmd dto.WSCommand) {
	switch cmd.Type {
	case dto.CommandLocation:
		if cmd.Lat == nil || cmd.Lng == nil {
			c.fail(userID, apperror.Validation("нужны lat и lng"))
			return
		}
		// Ближайший отчёт и озвучка доставляются самим сервисом навигации.
		if _, err := c.tracker.UpdateLocation(ctx, userID, valueobject.LatLng{Lat: *cmd.Lat, Lng: *cmd.Lng}); err != nil {
			c.fail(userID, err)
		}

	case dto.CommandConfirm, dto.CommandDispute:
		alertID, err := uuid.Parse(cmd.AlertID)
		if err != nil {
			c.fail(userID, apperror.Validation("некорректный alert_id"))
			return
		}
		vote := c.voter.Confirm
		if cmd.Type == dto.CommandDispute {
			vote = c.voter.Dispute
		}
		res, err := vote(ctx, alertID, userID)
		if err != nil {
			c.fail(userID, err)
			return
		}
		_ = c.hub.SendToUser(userID, EventVote, struct {
			AlertID   uuid.UUID `json:"alert_id"`
			Direction string    `json:"direction"`
			dto.VoteResponse
		}{alertID, cmd.Type, dto.NewVoteResponse(res)})

	default:
		c.fail(userID, apperror.Validation("неизвестная команда %q", cmd.Type))
	}
}

func (c *Commands) fail(userID uuid.UUID, err error) {
	_ = c.hub.SendToUser(userID, EventError, map[string]string{
		"code":    string(apperror.CodeOf(err)),
		"message": errorMessage(err),
	})
}

func errorMessage(err error) string {
	if code := apperror.CodeOf(err); code == apperror.ErrCodeInternal {
		return "внутренняя ошибка"
	}
	return apperror.MessageOf(err)
}
