// Package controller holds per-session state and the top-level decision of
// which surface to present.
package controller

import (
	"sakhi/internal/chat"
	"sakhi/internal/gateway"
	"sakhi/internal/questionnaire"
)

// View identifies the surface the presentation layer should render.
type View string

const (
	ViewAuth           View = "auth"
	ViewQuestionnaire  View = "questionnaire"
	ViewRecommendation View = "recommendation"
	ViewChat           View = "chat"
)

// SessionState is the explicit state object for one user session. It is
// passed through the controller and flows; there are no ambient globals.
type SessionState struct {
	Authenticated     bool
	UserID            string
	Email             string
	QuestionnaireDone bool

	Flow *questionnaire.Flow
	Chat *chat.Session

	PendingRecommendation string
	RecommendationSeen    bool
}

// CurrentView selects the surface for the state, re-evaluated on every
// interaction: auth until logged in, then the questionnaire until
// completed, then the recommendation (if one is pending and unseen),
// then the chat.
func CurrentView(s *SessionState) View {
	switch {
	case !s.Authenticated:
		return ViewAuth
	case !s.QuestionnaireDone:
		return ViewQuestionnaire
	case s.PendingRecommendation != "" && !s.RecommendationSeen:
		return ViewRecommendation
	default:
		return ViewChat
	}
}

// BeginSession populates the state after a successful login.
func (s *SessionState) BeginSession(login gateway.LoginResult, flow *questionnaire.Flow, chatSession *chat.Session) {
	s.Authenticated = true
	s.UserID = login.UserID
	s.Email = login.Email
	s.QuestionnaireDone = login.QuestionnaireDone
	s.Flow = flow
	s.Chat = chatSession
}

// CompleteQuestionnaire flips the completion flag and stages the
// personalized recommendation, if any, for the user to see before chat.
func (s *SessionState) CompleteQuestionnaire(recommendation string) {
	s.QuestionnaireDone = true
	s.PendingRecommendation = recommendation
	s.RecommendationSeen = false
}

// AcknowledgeRecommendation unlocks the chat after the analysis is shown.
func (s *SessionState) AcknowledgeRecommendation() {
	s.RecommendationSeen = true
}

// Logout clears all session state unconditionally.
func (s *SessionState) Logout() {
	*s = SessionState{}
}
