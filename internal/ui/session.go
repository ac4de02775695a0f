package ui

import "github.com/ngmaloney/aac-checker/internal/models"

// Default coordinates proposed in coordinate mode: the centre of France
const (
	DefaultLat = 46.603354
	DefaultLon = 1.888334
)

// Session is the input state remembered between queries. It is owned by
// the caller and passed into the model, never kept in package state.
type Session struct {
	LastAddress  string
	LastLat      float64
	LastLon      float64
	ResetPressed bool // Next input rebuild starts from the defaults
}

// NewSession returns a session holding the defaults
func NewSession() *Session {
	return &Session{LastLat: DefaultLat, LastLon: DefaultLon}
}

// Reset clears the remembered inputs and flags the next rebuild
func (s *Session) Reset() {
	s.ResetPressed = true
	s.LastAddress = ""
	s.LastLat = DefaultLat
	s.LastLon = DefaultLon
}

// InitialAddress returns the value the address field starts with. A pending
// reset is consumed.
func (s *Session) InitialAddress() string {
	if s.ResetPressed {
		s.ResetPressed = false
		return ""
	}
	return s.LastAddress
}

// InitialPoint returns the values the coordinate fields start with. A
// pending reset is consumed.
func (s *Session) InitialPoint() models.QueryPoint {
	if s.ResetPressed {
		s.ResetPressed = false
		return models.QueryPoint{Lat: DefaultLat, Lon: DefaultLon}
	}
	return models.QueryPoint{Lat: s.LastLat, Lon: s.LastLon}
}

// RememberAddress records the last submitted address
func (s *Session) RememberAddress(address string) {
	s.LastAddress = address
}

// RememberPoint records the last submitted coordinates
func (s *Session) RememberPoint(p models.QueryPoint) {
	s.LastLat = p.Lat
	s.LastLon = p.Lon
}
