package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/geo"
	"github.com/ignatzorin/vialert-backend/internal/service"
)

// AlertResponse is a report as the client renders it on the map.
type AlertResponse struct {
	ID              uuid.UUID               `json:"id"`
	Type            valueobject.AlertTypeID `json:"type"`
	TypeLabel       string                  `json:"type_label"`
	Color           string                  `json:"color"`
	Warning         string                  `json:"warning,omitempty"`
	Subtype         *string                 `json:"subtype"`
	Description     *string                 `json:"description"`
	Lat             float64                 `json:"lat"`
	Lng             float64                 `json:"lng"`
	Photo           *string                 `json:"photo"`
	CreatedBy       *uuid.UUID              `json:"created_by"`
	CreatedAt       time.Time               `json:"created_at"`
	ExpiresAt       time.Time               `json:"expires_at"`
	Status          valueobject.AlertStatus `json:"status"`
	Votes           int                     `json:"votes"`
	PositiveVoters  []uuid.UUID             `json:"positive_voters"`
	Reports         int                     `json:"reports"`
	NegativeVoters  []uuid.UUID             `json:"negative_voters"`
	DeleteThreshold int                     `json:"delete_threshold"`
	Rewarded        bool                    `json:"rewarded"`
}

// NewAlertResponse converts an entity. Unknown types keep their raw id and get the pothole look.
func NewAlertResponse(a *entity.Alert) AlertResponse {
	t, ok := valueobject.LookupAlertType(a.Type)
	if !ok {
		t, _ = valueobject.LookupAlertType(valueobject.AlertTypePothole)
	}
	return AlertResponse{
		ID:              a.ID,
		Type:            a.Type,
		TypeLabel:       t.Label,
		Color:           t.Color,
		Warning:         t.Warning,
		Subtype:         a.Subtype,
		Description:     a.Description,
		Lat:             a.Location.Lat,
		Lng:             a.Location.Lng,
		Photo:           a.Photo,
		CreatedBy:       a.CreatedBy,
		CreatedAt:       a.CreatedAt,
		ExpiresAt:       a.ExpiresAt,
		Status:          a.Status,
		Votes:           a.Votes,
		PositiveVoters:  nonNilIDs(a.PositiveVoters),
		Reports:         a.Reports,
		NegativeVoters:  nonNilIDs(a.NegativeVoters),
		DeleteThreshold: a.DeleteThreshold(),
		Rewarded:        a.Rewarded,
	}
}

// NewAlertList converts a snapshot, always returning a non-nil slice.
func NewAlertList(alerts []*entity.Alert) []AlertResponse {
	out := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, NewAlertResponse(a))
	}
	return out
}

// SubmitAlertResponse tells whether the report was stored or queued offline.
type SubmitAlertResponse struct {
	Alert   *AlertResponse `json:"alert,omitempty"`
	Queued  bool           `json:"queued"`
	QueueID *uuid.UUID     `json:"queue_id,omitempty"`
}

func NewSubmitAlertResponse(res *service.SubmitResult) SubmitAlertResponse {
	if res.Queued {
		id := res.QueueID
		return SubmitAlertResponse{Queued: true, QueueID: &id}
	}
	alert := NewAlertResponse(res.Alert)
	return SubmitAlertResponse{Alert: &alert}
}

// VoteResponse reports what a confirm/dispute changed.
type VoteResponse struct {
	Applied  bool `json:"applied"`
	Promoted bool `json:"promoted"`
}

func NewVoteResponse(res entity.VoteResult) VoteResponse {
	return VoteResponse{Applied: res.Applied, Promoted: res.Promoted}
}

// ProfileResponse is the reputation of a user with the derived tier.
type ProfileResponse struct {
	ID           uuid.UUID             `json:"id"`
	TrustScore   int                   `json:"trust_score"`
	ReportsCount int                   `json:"reports_count"`
	Penalties    int                   `json:"penalties"`
	Tier         valueobject.TrustTier `json:"tier"`
	TierLabel    string                `json:"tier_label"`
	CanReport    bool                  `json:"can_report"`
}

func NewProfileResponse(p *entity.Profile) ProfileResponse {
	tier := p.Tier()
	return ProfileResponse{
		ID:           p.ID,
		TrustScore:   p.TrustScore,
		ReportsCount: p.ReportsCount,
		Penalties:    p.Penalties,
		Tier:         tier,
		TierLabel:    tier.Label(),
		CanReport:    p.CanReport(),
	}
}

// AuthResponse is returned by every sign-in flow.
type AuthResponse struct {
	User         service.Identity `json:"user"`
	IsAnonymous  bool             `json:"is_anonymous"`
	Profile      *ProfileResponse `json:"profile,omitempty"`
	AccessToken  string           `json:"access_token,omitempty"`
	RefreshToken string           `json:"refresh_token,omitempty"`
	ExpiresIn    int64            `json:"expires_in,omitempty"`
}

func NewAuthResponse(res *service.AuthResult) AuthResponse {
	out := AuthResponse{
		User:        res.Identity,
		IsAnonymous: res.Identity.IsAnonymous(),
	}
	if res.Profile != nil {
		p := NewProfileResponse(res.Profile)
		out.Profile = &p
	}
	if res.TokenPair != nil {
		out.AccessToken = res.TokenPair.AccessToken
		out.RefreshToken = res.TokenPair.RefreshToken
		out.ExpiresIn = int64(res.TokenPair.ExpiresIn.Seconds())
	}
	return out
}

// ProximityResponse describes the nearest hazard within the alert radius.
type ProximityResponse struct {
	Alert     AlertResponse `json:"alert"`
	DistanceM int           `json:"distance_m"`
}

func NewProximityResponse(p *geo.Proximity) *ProximityResponse {
	if p == nil {
		return nil
	}
	alert := p.Alert
	return &ProximityResponse{Alert: NewAlertResponse(&alert), DistanceM: p.Meters()}
}

// RouteResponse is the active route with the number of hazards on it.
type RouteResponse struct {
	Route   *valueobject.Route `json:"route"`
	OnRoute int                `json:"on_route"`
}

// NavigationStateResponse is the navigation view of one user.
type NavigationStateResponse struct {
	Nearest *ProximityResponse `json:"nearest"`
	Route   *valueobject.Route `json:"route"`
	OnRoute int                `json:"on_route"`
}

func NewNavigationStateResponse(st service.NavigationState) NavigationStateResponse {
	return NavigationStateResponse{
		Nearest: NewProximityResponse(st.Nearest),
		Route:   st.Route,
		OnRoute: st.OnRoute,
	}
}

// SpeakEvent asks the client to stop any current speech and say Text.
type SpeakEvent struct {
	Text           string `json:"text"`
	CancelPrevious bool   `json:"cancel_previous"`
}

func nonNilIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
