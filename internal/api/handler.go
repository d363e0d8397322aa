// Package api exposes the recommendation and conversation engines over HTTP
// and MCP.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/tresses/internal/advisor"
	"github.com/kalambet/tresses/internal/composer"
	"github.com/kalambet/tresses/internal/conversation"
	"github.com/kalambet/tresses/internal/knowledge"
	"github.com/kalambet/tresses/internal/pipeline"
	"github.com/kalambet/tresses/internal/profile"
	"github.com/kalambet/tresses/internal/recommend"
)

type Deps struct {
	Profiles      *profile.Manager
	Personalizer  *pipeline.Personalizer
	Conversations *conversation.Engine
	Knowledge     *knowledge.Store
	Advisor       *advisor.Advisor
	Token         string
	RateLimit     int // requests per minute per IP
}

// NewHandler builds the HTTP API. /health and /metrics are public; every
// other route requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(instrument)
	r.Use(RateLimit(deps.RateLimit))

	r.Get("/health", handleHealth(deps))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Route("/profiles/{id}", func(r chi.Router) {
			r.Post("/", handleCreateProfile(deps))
			r.Get("/", handleGetProfile(deps))
			r.Patch("/", handlePatchProfile(deps))
			r.Delete("/", handleDeleteProfile(deps))
			r.Post("/analysis", handleAnalyzeHair(deps))
			r.Get("/needs", handleNeeds(deps))
		})

		r.Post("/recommendations", handleRecommendations(deps))
		r.Post("/feedback", handleFeedback(deps))

		r.Post("/conversations/{id}/messages", handleMessage(deps))
		r.Get("/conversations/{id}", handleGetConversation(deps))
		r.Put("/conversations/{id}/preferences", handlePreferences(deps))

		r.Get("/practices", handleListPractices(deps))
		r.Get("/practices/{id}", handleGetPractice(deps))
		r.Get("/practices/{id}/attribution", handleAttribution(deps))
		r.Post("/sensitivity", handleSensitivity(deps))
		r.Post("/guidance", handleGuidance(deps))
		r.Get("/education", handleEducation(deps))
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":            "ok",
			"knowledge_version": deps.Knowledge.Version(),
		})
	}
}

// --- Profiles ---

// patchRequest is a profile.Patch with its enumerations checked.
type patchRequest struct {
	profile.Patch
}

func (p patchRequest) check() error {
	if h := p.Hair; h != nil {
		if err := validate.Var(string(h.Type), "omitempty,oneof=straight wavy curly coily unknown"); err != nil {
			return errors.New("hair.type must be straight, wavy, curly, coily or unknown")
		}
		if err := validate.Var(string(h.Porosity), "omitempty,oneof=low normal high unknown"); err != nil {
			return errors.New("hair.porosity must be low, normal, high or unknown")
		}
	}
	if c := p.Cultural; c != nil {
		if err := validate.Var(string(c.RespectLevel), "omitempty,oneof=high medium low"); err != nil {
			return errors.New("cultural.respect_level must be high, medium or low")
		}
		if c.Background != "" && !c.Background.Valid() {
			return errors.New("cultural.background is not a known background")
		}
	}
	return nil
}

func decodePatch(w http.ResponseWriter, r *http.Request) (profile.Patch, bool) {
	var req patchRequest
	if !decode(w, r, &req) {
		return profile.Patch{}, false
	}
	if err := req.check(); err != nil {
		httpError(w, http.StatusBadRequest, "validation_error", "%v", err)
		return profile.Patch{}, false
	}
	return req.Patch, true
}

func handleCreateProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		patch, ok := decodePatch(w, r)
		if !ok {
			return
		}

		if _, exists, err := deps.Profiles.Get(r.Context(), id); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load profile: %v", err)
			return
		} else if exists {
			httpError(w, http.StatusConflict, "conflict_error", "profile %s already exists", id)
			return
		}

		p, err := deps.Profiles.Create(r.Context(), id, patch)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create profile: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		p, ok, err := deps.Profiles.Get(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "profile %s not found", id)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handlePatchProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		patch, ok := decodePatch(w, r)
		if !ok {
			return
		}
		p, found, err := deps.Profiles.Update(r.Context(), id, patch)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update profile: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found_error", "profile %s not found", id)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleDeleteProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Profiles.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete profile: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAnalyzeHair(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var raw profile.RawSignals
		if !decode(w, r, &raw) {
			return
		}
		hair, ok, err := deps.Profiles.AnalyzeHairCharacteristics(r.Context(), id, raw)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to analyze hair: %v", err)
			return
		}
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "profile %s not found", id)
			return
		}
		writeJSON(w, http.StatusOK, hair)
	}
}

func handleNeeds(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		needs, ok, err := deps.Personalizer.Needs(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to analyze needs: %v", err)
			return
		}
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "profile %s not found", id)
			return
		}
		writeJSON(w, http.StatusOK, needs)
	}
}

// --- Recommendations ---

type recommendationsRequest struct {
	UserID  string             `json:"user_id" validate:"required,max=128"`
	Season  string             `json:"season" validate:"omitempty,oneof=spring summer autumn fall winter harmattan dry rainy"`
	Weather *recommend.Weather `json:"weather"`
}

func handleRecommendations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recommendationsRequest
		if !decode(w, r, &req) {
			return
		}
		season, _ := recommend.ParseSeason(req.Season)
		recs, meta, err := deps.Personalizer.Recommend(r.Context(), pipeline.Request{
			UserID:  req.UserID,
			Season:  season,
			Weather: req.Weather,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to generate recommendations: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"recommendations": recs,
			"metadata":        meta,
		})
	}
}

type feedbackRequest struct {
	UserID             string `json:"user_id" validate:"required,max=128"`
	RecommendationID   string `json:"recommendation_id" validate:"required,max=128"`
	RecommendationType string `json:"recommendation_type" validate:"required,oneof=product routine remedy education lifestyle"`
	Category           string `json:"category" validate:"max=64"`
	Rating             int    `json:"rating" validate:"required,min=1,max=5"`
	Comment            string `json:"comment" validate:"max=2000"`
}

func handleFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feedbackRequest
		if !decode(w, r, &req) {
			return
		}
		f := recommend.Feedback{
			ID:                 uuid.NewString(),
			UserID:             req.UserID,
			RecommendationID:   req.RecommendationID,
			RecommendationType: recommend.Type(req.RecommendationType),
			Category:           req.Category,
			Rating:             req.Rating,
			Comment:            req.Comment,
		}
		err := deps.Personalizer.Feedback(r.Context(), f)
		switch {
		case errors.Is(err, pipeline.ErrUnknownUser):
			httpError(w, http.StatusNotFound, "not_found_error", "profile %s not found", req.UserID)
		case errors.Is(err, pipeline.ErrInvalidFeedback):
			httpError(w, http.StatusBadRequest, "validation_error", "%v", err)
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record feedback: %v", err)
		default:
			writeJSON(w, http.StatusCreated, map[string]string{"id": f.ID, "status": "recorded"})
		}
	}
}

// --- Conversations ---

type messageRequest struct {
	UserID  string             `json:"user_id" validate:"required,max=128"`
	Message string             `json:"message" validate:"required,max=4000"`
	Season  string             `json:"season" validate:"omitempty,oneof=spring summer autumn fall winter harmattan dry rainy"`
	Weather *recommend.Weather `json:"weather"`
}

func handleMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if !decode(w, r, &req) {
			return
		}
		season, _ := recommend.ParseSeason(req.Season)
		resp, err := deps.Conversations.HandleMessage(r.Context(), conversation.Request{
			ConversationID: chi.URLParam(r, "id"),
			UserID:         req.UserID,
			Message:        req.Message,
			Season:         season,
			Weather:        req.Weather,
		})
		switch {
		case errors.Is(err, conversation.ErrWrongUser):
			httpError(w, http.StatusForbidden, "permission_error", "%v", err)
		case errors.Is(err, conversation.ErrInvalidRequest):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		default:
			writeJSON(w, http.StatusOK, resp)
		}
	}
}

func handleGetConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		mem, ok, err := deps.Conversations.Memory(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load conversation: %v", err)
			return
		}
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "conversation %s not found", id)
			return
		}
		journey, err := deps.Conversations.Journey(r.Context(), mem.UserID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load journey: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"memory":    mem,
			"long_term": journey,
		})
	}
}

type preferencesRequest struct {
	Style         composer.Style `json:"style" validate:"omitempty,oneof=concise detailed"`
	CulturalLevel advisor.Level  `json:"cultural_level" validate:"omitempty,oneof=beginner intermediate advanced"`
}

func handlePreferences(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req preferencesRequest
		if !decode(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "id")
		err := deps.Conversations.SetPreferences(r.Context(), id, conversation.Preferences{
			Style:         req.Style,
			CulturalLevel: req.CulturalLevel,
		})
		if errors.Is(err, conversation.ErrUnknownConversation) {
			httpError(w, http.StatusNotFound, "not_found_error", "conversation %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save preferences: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- Cultural knowledge ---

func handleListPractices(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		practices := deps.Knowledge.Practices()
		if q != "" {
			practices = deps.Knowledge.Search(q)
		}
		if practices == nil {
			practices = []knowledge.Practice{}
		}
		writeJSON(w, http.StatusOK, practices)
	}
}

func handleGetPractice(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		p, ok := deps.Knowledge.Practice(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "practice %s not found", id)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleAttribution(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		text, err := deps.Knowledge.GenerateProperAttribution(id)
		if errors.Is(err, knowledge.ErrPracticeNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "practice %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"practice_id": id, "attribution": text})
	}
}

type sensitivityRequest struct {
	Text string `json:"text" validate:"required,max=20000"`
}

func handleSensitivity(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sensitivityRequest
		if !decode(w, r, &req) {
			return
		}
		writeJSON(w, http.StatusOK, deps.Knowledge.ValidateCulturalSensitivity(req.Text))
	}
}

type guidanceRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	Topic  string `json:"topic" validate:"max=64"`
	Season string `json:"season" validate:"omitempty,oneof=spring summer autumn fall winter harmattan dry rainy"`
}

func handleGuidance(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req guidanceRequest
		if !decode(w, r, &req) {
			return
		}
		season, _ := recommend.ParseSeason(req.Season)
		g, ok, err := deps.Personalizer.Guidance(r.Context(), req.UserID, advisor.Context{Topic: req.Topic, Season: string(season)})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to build guidance: %v", err)
			return
		}
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "profile %s not found", req.UserID)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func handleEducation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		topic := q.Get("topic")
		if topic == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "topic is required")
			return
		}
		writeJSON(w, http.StatusOK, deps.Advisor.GetCulturalEducation(topic, advisor.ParseLevel(q.Get("level"))))
	}
}
