package http

import (
	"net/http"
	"testing"

	"github.com/fjod/cybershop/internal/access"
	"github.com/fjod/cybershop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin      = asUser(20, access.Admin)
	superAdmin = asUser(30, access.SuperAdmin)
)

func TestUsers_RequireAdmin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/admin/users", nil, manager)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/users", nil, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUsersCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/admin/users", UserRequestDTO{Name: "Ada", Email: "Ada@Example.com"}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[domain.User](t, rec)
	assert.Equal(t, access.Customer, created.Role)
	assert.Equal(t, "ada@example.com", created.Email)
	path := "/api/v1/admin/users/" + itoa(created.ID)

	rec = env.do(t, http.MethodPost, "/api/v1/admin/users", UserRequestDTO{Name: "Ada 2", Email: "ADA@example.com"}, admin)
	require.Equal(t, http.StatusConflict, rec.Code)
	errBody := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "email_taken", errBody.Code)
	assert.Contains(t, errBody.Error, "user "+itoa(created.ID))

	rec = env.do(t, http.MethodPut, path, UserRequestDTO{Name: "Ada L", Email: "ada@example.com", Role: "manager"}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, access.Manager, decodeBody[domain.User](t, rec).Role)

	rec = env.do(t, http.MethodGet, path, nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada L", decodeBody[domain.User](t, rec).Name)

	rec = env.do(t, http.MethodDelete, path, nil, admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, path, nil, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsers_UpdateToTakenEmail(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/admin/users", UserRequestDTO{Name: "Ada", Email: "ada@example.com"}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ada := decodeBody[domain.User](t, rec)

	rec = env.do(t, http.MethodPost, "/api/v1/admin/users", UserRequestDTO{Name: "Grace", Email: "grace@example.com"}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	grace := decodeBody[domain.User](t, rec)

	rec = env.do(t, http.MethodPut, "/api/v1/admin/users/"+itoa(grace.ID), UserRequestDTO{Name: "Grace", Email: "ada@example.com"}, admin)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email_taken", decodeBody[ErrorResponse](t, rec).Code)

	// keeping one's own email is not a conflict
	rec = env.do(t, http.MethodPut, "/api/v1/admin/users/"+itoa(ada.ID), UserRequestDTO{Name: "Ada L", Email: "ada@example.com"}, admin)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestUsers_SuperAdminGrants(t *testing.T) {
	env := newTestEnv(t)
	req := UserRequestDTO{Name: "Root", Email: "root@example.com", Role: "SUPER_ADMIN"}

	rec := env.do(t, http.MethodPost, "/api/v1/admin/users", req, admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/admin/users", req, superAdmin)
	require.Equal(t, http.StatusCreated, rec.Code)
	root := decodeBody[domain.User](t, rec)
	path := "/api/v1/admin/users/" + itoa(root.ID)

	// an admin can neither demote nor delete a super admin
	rec = env.do(t, http.MethodPut, path, UserRequestDTO{Name: "Root", Email: "root@example.com", Role: "CUSTOMER"}, admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodDelete, path, nil, admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, path, nil, superAdmin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUsers_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  UserRequestDTO
		code string
	}{
		{"no name", UserRequestDTO{Email: "a@b.c"}, "invalid_name"},
		{"bad email", UserRequestDTO{Name: "A", Email: "nope"}, "invalid_email"},
		{"display name email", UserRequestDTO{Name: "A", Email: "A <a@b.c>"}, "invalid_email"},
		{"bad role", UserRequestDTO{Name: "A", Email: "a@b.c", Role: "OWNER"}, "invalid_role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/admin/users", tt.req, admin)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeBody[ErrorResponse](t, rec).Code)
		})
	}
}
