package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/fjod/cybershop/internal/access"
	"github.com/fjod/cybershop/internal/domain"
	"github.com/fjod/cybershop/internal/repository"
	"go.uber.org/zap"
)

type UsersHandler struct {
	users  Users
	logger *zap.Logger
}

func NewUsersHandler(users Users, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{users: users, logger: logger}
}

type UserRequestDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

var errSuperAdminRequired = errors.New("only a super admin may grant or change super admin accounts")

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	u, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := decodeUser(w, r)
	if !ok {
		return
	}
	if !mayAssign(r, u.Role) {
		respondError(w, http.StatusForbidden, "permission_denied", errSuperAdminRequired.Error())
		return
	}
	if h.emailTaken(w, r, u.Email, 0) {
		return
	}
	if err := h.users.CreateUser(r.Context(), u); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

// emailTaken writes a 409 naming the account that already uses email, unless
// that account is self. The unique index still catches concurrent inserts.
func (h *UsersHandler) emailTaken(w http.ResponseWriter, r *http.Request, email string, self int64) bool {
	owner, err := h.users.GetUserByEmail(r.Context(), email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return false
	case err != nil:
		handleError(w, r, h.logger, err)
		return true
	case owner.ID == self:
		return false
	}
	respondError(w, http.StatusConflict, "email_taken",
		fmt.Sprintf("email %s is already used by user %d", owner.Email, owner.ID))
	return true
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	u, ok := decodeUser(w, r)
	if !ok {
		return
	}
	u.ID = id

	existing, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if !mayAssign(r, u.Role) || !mayAssign(r, existing.Role) {
		respondError(w, http.StatusForbidden, "permission_denied", errSuperAdminRequired.Error())
		return
	}
	if h.emailTaken(w, r, u.Email, id) {
		return
	}

	if err := h.users.UpdateUser(r.Context(), u); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	u.CreatedAt = existing.CreatedAt
	respondJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	existing, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if !mayAssign(r, existing.Role) {
		respondError(w, http.StatusForbidden, "permission_denied", errSuperAdminRequired.Error())
		return
	}
	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mayAssign reports whether the caller may hand out role. Super admin
// accounts are managed by super admins only.
func mayAssign(r *http.Request, role access.Role) bool {
	if role != access.SuperAdmin {
		return true
	}
	return access.HasAccess(identityFrom(r.Context()).Role, access.SuperAdmin)
}

func decodeUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	var req UserRequestDTO
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return nil, false
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil || addr.Address != strings.TrimSpace(req.Email) {
		respondError(w, http.StatusBadRequest, "invalid_email", "email must be a plain address")
		return nil, false
	}
	role := access.Customer
	if req.Role != "" {
		role, err = access.ParseRole(req.Role)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_role", err.Error())
			return nil, false
		}
	}
	return &domain.User{Name: req.Name, Email: addr.Address, Role: role}, true
}
