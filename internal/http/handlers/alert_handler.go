package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/dto"
	"github.com/ignatzorin/vialert-backend/internal/http/handlers/common"
	"github.com/ignatzorin/vialert-backend/internal/infrastructure/photo"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
	"github.com/ignatzorin/vialert-backend/internal/service"
	"github.com/ignatzorin/vialert-backend/internal/validation"
)

// AlertHandler - отчёты о дорожных опасностях.
type AlertHandler struct {
	alerts *service.AlertService
	photos *photo.Processor
}

// NewAlertHandler создаёт хэндлер.
func NewAlertHandler(alerts *service.AlertService, photos *photo.Processor) *AlertHandler {
	return &AlertHandler{alerts: alerts, photos: photos}
}

// List обрабатывает GET /api/alerts.
func (h *AlertHandler) List(c *gin.Context) {
	alerts, err := h.alerts.ListVisible(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewAlertList(alerts))
}

// Get обрабатывает GET /api/alerts/:id.
func (h *AlertHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	alert, err := h.alerts.Get(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewAlertResponse(alert))
}

// Types обрабатывает GET /api/alert-types.
func (h *AlertHandler) Types(c *gin.Context) {
	common.RespondJSON(c, http.StatusOK, valueobject.AlertTypes())
}

// Create обрабатывает POST /api/alerts.
// Принимает JSON (фото как data URL) или multipart форму с файлом в поле photo.
// В обоих случаях фото проходит через photo.Processor.
func (h *AlertHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.photos.MaxRequestBytes())

	var req dto.CreateAlertRequest
	if isMultipart(c) {
		if err := common.BindWith(c, &req, binding.FormMultipart); err != nil {
			common.Fail(c, err)
			return
		}
		encoded, err := h.readPhoto(c)
		if err != nil {
			common.Fail(c, err)
			return
		}
		req.Photo = encoded
	} else {
		if err := common.BindJSON(c, &req); err != nil {
			common.Fail(c, err)
			return
		}
		if req.Photo != nil {
			encoded, err := h.photos.ProcessDataURL(*req.Photo)
			if err != nil {
				common.Fail(c, err)
				return
			}
			req.Photo = &encoded
		}
	}

	description, err := validation.ValidateDescription(req.Description)
	if err != nil {
		common.Fail(c, err)
		return
	}

	res, err := h.alerts.Submit(c.Request.Context(), service.SubmitInput{
		Location:        req.Point(),
		Type:            req.Type,
		Subtype:         req.Subtype,
		Description:     description,
		DurationMinutes: req.DurationMinutes,
		Photo:           req.Photo,
		AuthorID:        userID,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	status := http.StatusCreated
	if res.Queued {
		status = http.StatusAccepted
	}
	common.RespondJSON(c, status, dto.NewSubmitAlertResponse(res))
}

// readPhoto сжимает загруженный файл. Отсутствие файла не ошибка.
func (h *AlertHandler) readPhoto(c *gin.Context) (*string, error) {
	file, err := c.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Validation("не удалось прочитать фото")
	}

	f, err := file.Open()
	if err != nil {
		return nil, apperror.Validation("не удалось прочитать фото")
	}
	defer f.Close()

	encoded, err := h.photos.Process(f)
	if err != nil {
		return nil, err
	}
	return &encoded, nil
}

// Confirm обрабатывает POST /api/alerts/:id/confirm.
func (h *AlertHandler) Confirm(c *gin.Context) {
	h.vote(c, h.alerts.Confirm)
}

// Dispute обрабатывает POST /api/alerts/:id/dispute.
func (h *AlertHandler) Dispute(c *gin.Context) {
	h.vote(c, h.alerts.Dispute)
}

type voteFunc func(ctx context.Context, alertID, voterID uuid.UUID) (entity.VoteResult, error)

func (h *AlertHandler) vote(c *gin.Context, apply voteFunc) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	alertID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	res, err := apply(c.Request.Context(), alertID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewVoteResponse(res))
}
