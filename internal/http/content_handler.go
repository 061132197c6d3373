package http

import (
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/fjod/cybershop/internal/domain"
	"go.uber.org/zap"
)

type ContentHandler struct {
	content Content
	logger  *zap.Logger
}

func NewContentHandler(content Content, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{content: content, logger: logger}
}

type SlideRequestDTO struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	ImageURL string `json:"image_url"`
	LinkURL  string `json:"link_url"`
	Position int    `json:"position"`
	Active   *bool  `json:"active"`
}

type BannerRequestDTO struct {
	Message string `json:"message"`
	Active  bool   `json:"active"`
}

type ContactRequestDTO struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

const maxContactBody = 5000

func (h *ContentHandler) ListActiveSlides(w http.ResponseWriter, r *http.Request) {
	h.listSlides(w, r, true)
}

func (h *ContentHandler) ListAllSlides(w http.ResponseWriter, r *http.Request) {
	h.listSlides(w, r, false)
}

func (h *ContentHandler) listSlides(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	slides, err := h.content.ListSlides(r.Context(), activeOnly)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, slides)
}

func (h *ContentHandler) CreateSlide(w http.ResponseWriter, r *http.Request) {
	sl, ok := decodeSlide(w, r)
	if !ok {
		return
	}
	if err := h.content.CreateSlide(r.Context(), sl); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, sl)
}

func (h *ContentHandler) UpdateSlide(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	sl, ok := decodeSlide(w, r)
	if !ok {
		return
	}
	sl.ID = id
	if err := h.content.UpdateSlide(r.Context(), sl); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, sl)
}

func (h *ContentHandler) DeleteSlide(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.content.DeleteSlide(r.Context(), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeSlide(w http.ResponseWriter, r *http.Request) (*domain.Slide, bool) {
	var req SlideRequestDTO
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	req.Title = strings.TrimSpace(req.Title)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	if req.Title == "" || req.ImageURL == "" {
		respondError(w, http.StatusBadRequest, "invalid_slide", "title and image_url are required")
		return nil, false
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &domain.Slide{
		Title:    req.Title,
		Subtitle: req.Subtitle,
		ImageURL: req.ImageURL,
		LinkURL:  req.LinkURL,
		Position: req.Position,
		Active:   active,
	}, true
}

func (h *ContentHandler) GetBanner(w http.ResponseWriter, r *http.Request) {
	b, err := h.content.GetBanner(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (h *ContentHandler) SetBanner(w http.ResponseWriter, r *http.Request) {
	var req BannerRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" && req.Active {
		respondError(w, http.StatusBadRequest, "invalid_banner", "an active banner needs a message")
		return
	}
	b := &domain.Banner{Message: req.Message, Active: req.Active}
	if err := h.content.SetBanner(r.Context(), b); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (h *ContentHandler) CreateContactMessage(w http.ResponseWriter, r *http.Request) {
	var req ContactRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Body = strings.TrimSpace(req.Body)
	switch {
	case req.Name == "":
		respondError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return
	case req.Body == "":
		respondError(w, http.StatusBadRequest, "invalid_body", "body is required")
		return
	case len(req.Body) > maxContactBody:
		respondError(w, http.StatusBadRequest, "invalid_body", "body is too long")
		return
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_email", "email is not a valid address")
		return
	}

	m := &domain.ContactMessage{
		Name:    req.Name,
		Email:   addr.Address,
		Subject: strings.TrimSpace(req.Subject),
		Body:    req.Body,
	}
	if err := h.content.CreateContactMessage(r.Context(), m); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (h *ContentHandler) ListContactMessages(w http.ResponseWriter, r *http.Request) {
	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_unread", "unread must be a boolean")
			return
		}
		unreadOnly = v
	}
	msgs, err := h.content.ListContactMessages(r.Context(), unreadOnly)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (h *ContentHandler) MarkContactMessageRead(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.content.MarkContactMessageRead(r.Context(), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContentHandler) DeleteContactMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.content.DeleteContactMessage(r.Context(), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
