package dto

import (
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
)

// LatLngRequest is a coordinate pair sent by the client.
// Pointers let binding distinguish a missing value from 0.
type LatLngRequest struct {
	Lat *float64 `json:"lat" form:"lat" binding:"required"`
	Lng *float64 `json:"lng" form:"lng" binding:"required"`
}

// Point returns the coordinate; call only after binding succeeded.
func (r LatLngRequest) Point() valueobject.LatLng {
	return valueobject.LatLng{Lat: *r.Lat, Lng: *r.Lng}
}

// CreateAlertRequest represents a new hazard report (JSON or multipart form).
// A multipart request may carry the raw image in the "photo" file field instead of Photo.
type CreateAlertRequest struct {
	LatLngRequest
	Type            string  `json:"type" form:"type" binding:"required"`
	Subtype         *string `json:"subtype" form:"subtype"`
	Description     *string `json:"description" form:"description" binding:"omitempty,max=500"`
	DurationMinutes int     `json:"duration_minutes" form:"duration_minutes"`
	Photo           *string `json:"photo" form:"-"`
}

// LocationRequest updates the navigation position of the current user.
type LocationRequest struct {
	LatLngRequest
}

// RouteRequest asks for a driving route.
type RouteRequest struct {
	Origin      LatLngRequest `json:"origin" binding:"required"`
	Destination LatLngRequest `json:"destination" binding:"required"`
}

// GoogleSignInRequest carries a Google ID token obtained by the client.
type GoogleSignInRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// RefreshTokenRequest is used by refresh and sign-out.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// WebSocket command types sent by the client.
const (
	CommandLocation = "location"
	CommandConfirm  = "confirm"
	CommandDispute  = "dispute"
)

// WSCommand is one typed message received over the websocket.
type WSCommand struct {
	Type    string   `json:"type"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	AlertID string   `json:"alert_id,omitempty"`
}
