package service

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/geo"
	"github.com/ignatzorin/vialert-backend/internal/logger"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

// Geocoder - поиск мест по тексту в пределах города.
type Geocoder interface {
	Search(ctx context.Context, text string) ([]valueobject.Place, error)
}

// Router строит маршрут. (nil, nil) - маршрута нет.
type Router interface {
	Route(ctx context.Context, origin, destination valueobject.LatLng) (*valueobject.Route, error)
}

// NavigationSender - push-события навигации конкретному пользователю.
type NavigationSender interface {
	SendProximity(userID uuid.UUID, p *geo.Proximity)
	SendRoute(userID uuid.UUID, route *valueobject.Route, onRoute int)
	// Speak отменяет предыдущее сообщение и произносит новое.
	Speak(userID uuid.UUID, text string)
}

// Виды запросов с отдельной нумерацией.
const (
	requestSearch = "search"
	requestRoute  = "route"
)

// NavigationState - то, что пользователь видит в режиме навигации.
type NavigationState struct {
	Nearest *geo.Proximity
	Route   *valueobject.Route
	OnRoute int
}

type navSession struct {
	location  *valueobject.LatLng
	announcer Announcer
	route     *valueobject.Route
	onRoute   int
	seq       map[string]uint64
}

// NavigationService держит сессии навигации: позицию, озвученный отчёт и активный маршрут.
// Каждый новый снимок отчётов пересчитывает ближайший отчёт и число отчётов на маршруте.
type NavigationService struct {
	geocoder Geocoder
	router   Router
	sender   NavigationSender
	log      *logrus.Entry

	mu       sync.Mutex
	visible  []entity.Alert
	sessions map[uuid.UUID]*navSession
}

func NewNavigationService(geocoder Geocoder, router Router, sender NavigationSender) *NavigationService {
	return &NavigationService{
		geocoder: geocoder,
		router:   router,
		sender:   sender,
		log:      logger.Component("navigation"),
		sessions: make(map[uuid.UUID]*navSession),
	}
}

func (s *NavigationService) sessionLocked(userID uuid.UUID) *navSession {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &navSession{seq: make(map[string]uint64)}
		s.sessions[userID] = sess
	}
	return sess
}

// OnSnapshot заменяет видимый набор целиком и пересчитывает все сессии.
func (s *NavigationService) OnSnapshot(_ context.Context, visible []*entity.Alert) {
	snapshot := make([]entity.Alert, 0, len(visible))
	for _, a := range visible {
		snapshot = append(snapshot, *a)
	}

	s.mu.Lock()
	s.visible = snapshot
	type push struct {
		userID uuid.UUID
		out    evaluation
	}
	pushes := make([]push, 0, len(s.sessions))
	for id, sess := range s.sessions {
		pushes = append(pushes, push{userID: id, out: s.evaluateLocked(sess, true)})
	}
	s.mu.Unlock()

	for _, p := range pushes {
		s.deliver(p.userID, p.out)
	}
}

// UpdateLocation сохраняет позицию пользователя и пересчитывает ближайший отчёт.
func (s *NavigationService) UpdateLocation(_ context.Context, userID uuid.UUID, loc valueobject.LatLng) (NavigationState, error) {
	if userID == uuid.Nil {
		return NavigationState{}, apperror.ErrAuthRequired
	}
	if _, err := valueobject.NewLatLng(loc.Lat, loc.Lng); err != nil {
		return NavigationState{}, err
	}

	s.mu.Lock()
	sess := s.sessionLocked(userID)
	sess.location = &loc
	out := s.evaluateLocked(sess, false)
	s.mu.Unlock()

	s.deliver(userID, out)
	return out.state, nil
}

// Search ищет место. Ответ на устаревший запрос отбрасывается с ErrStaleRequest.
func (s *NavigationService) Search(ctx context.Context, userID uuid.UUID, text string) ([]valueobject.Place, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []valueobject.Place{}, nil
	}

	seq := s.issue(userID, requestSearch)
	places, err := s.geocoder.Search(ctx, text)
	if err != nil {
		return nil, err
	}
	if !s.isLatest(userID, requestSearch, seq) {
		return nil, apperror.ErrStaleRequest
	}
	return places, nil
}

// PlanRoute строит маршрут и считает отчёты на нём.
// Если пока шёл запрос пользователь запросил другой маршрут, результат отбрасывается.
func (s *NavigationService) PlanRoute(ctx context.Context, userID uuid.UUID, origin, destination valueobject.LatLng) (NavigationState, error) {
	if userID == uuid.Nil {
		return NavigationState{}, apperror.ErrAuthRequired
	}
	if _, err := valueobject.NewLatLng(origin.Lat, origin.Lng); err != nil {
		return NavigationState{}, err
	}
	if _, err := valueobject.NewLatLng(destination.Lat, destination.Lng); err != nil {
		return NavigationState{}, err
	}

	seq := s.issue(userID, requestRoute)
	route, err := s.router.Route(ctx, origin, destination)
	if err != nil {
		return NavigationState{}, err
	}
	if route == nil || len(route.Points) == 0 {
		return NavigationState{}, apperror.New(apperror.ErrCodeNotFound, "маршрут не найден")
	}

	s.mu.Lock()
	sess := s.sessionLocked(userID)
	if sess.seq[requestRoute] != seq {
		s.mu.Unlock()
		return NavigationState{}, apperror.ErrStaleRequest
	}
	sess.route = route
	out := s.evaluateLocked(sess, true)
	s.mu.Unlock()

	s.deliver(userID, out)
	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"points":   len(route.Points),
		"on_route": out.state.OnRoute,
	}).Debug("маршрут построен")
	return out.state, nil
}

// ClearRoute убирает активный маршрут; запросы, ещё не вернувшиеся, становятся устаревшими.
func (s *NavigationService) ClearRoute(userID uuid.UUID) {
	s.mu.Lock()
	sess := s.sessionLocked(userID)
	sess.seq[requestRoute]++
	sess.route = nil
	sess.onRoute = 0
	s.mu.Unlock()

	if s.sender != nil {
		s.sender.SendRoute(userID, nil, 0)
	}
}

// State - текущее состояние без побочных эффектов.
func (s *NavigationService) State(userID uuid.UUID) NavigationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return NavigationState{}
	}
	st := NavigationState{Route: sess.route, OnRoute: sess.onRoute}
	if sess.location != nil {
		if p, found := geo.Nearest(*sess.location, s.visible); found {
			st.Nearest = &p
		}
	}
	return st
}

// Forget удаляет сессию, когда у пользователя не осталось подключений.
func (s *NavigationService) Forget(userID uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

func (s *NavigationService) issue(userID uuid.UUID, kind string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessionLocked(userID)
	sess.seq[kind]++
	return sess.seq[kind]
}

func (s *NavigationService) isLatest(userID uuid.UUID, kind string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	return ok && sess.seq[kind] == seq
}

type evaluation struct {
	state       NavigationState
	hasLocation bool
	speech      string
	routeSent   bool
}

// evaluateLocked пересчитывает сессию. Вызывать под s.mu.
func (s *NavigationService) evaluateLocked(sess *navSession, withRoute bool) evaluation {
	var out evaluation

	if sess.location != nil {
		out.hasLocation = true
		p, found := geo.Nearest(*sess.location, s.visible)
		if found {
			out.state.Nearest = &p
		}
		if text, speak := sess.announcer.Observe(p, found); speak {
			out.speech = text
		}
	}

	if sess.route != nil {
		sess.onRoute = geo.CountOnRoute(sess.route.Points, s.visible)
		out.routeSent = withRoute
	}
	out.state.Route = sess.route
	out.state.OnRoute = sess.onRoute
	return out
}

func (s *NavigationService) deliver(userID uuid.UUID, out evaluation) {
	if s.sender == nil {
		return
	}
	if out.hasLocation {
		s.sender.SendProximity(userID, out.state.Nearest)
	}
	if out.speech != "" {
		s.sender.Speak(userID, out.speech)
	}
	if out.routeSent {
		s.sender.SendRoute(userID, out.state.Route, out.state.OnRoute)
	}
}
