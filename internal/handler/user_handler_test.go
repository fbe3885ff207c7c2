package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/eventhub/internal/model"
	"github.com/hitoshi/eventhub/internal/user"
)

func TestUserHandler_List(t *testing.T) {
	svc := &mockUserService{
		listFn: func(ctx context.Context, p *model.Principal) ([]*model.User, error) {
			if p != testAdmin {
				return nil, model.NewForbiddenError()
			}
			return []*model.User{
				{ID: "u-1", Email: "a@x.com", Role: model.RoleAdmin, PasswordHash: "h"},
				{ID: "u-2", Email: "b@x.com", Role: model.RoleUser, PasswordHash: "h"},
			}, nil
		},
	}
	h := NewUserHandler(svc, testErrors())

	t.Run("admin", func(t *testing.T) {
		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/users", nil), testAdmin)
		w := httptest.NewRecorder()

		h.List(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var resp []userResponse
		decodeBody(t, w, &resp)
		if len(resp) != 2 {
			t.Errorf("len = %d, want 2", len(resp))
		}
	})

	t.Run("member", func(t *testing.T) {
		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/users", nil), testMember)
		w := httptest.NewRecorder()

		h.List(w, req)

		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

func TestUserHandler_Create(t *testing.T) {
	svc := &mockUserService{
		createFn: func(ctx context.Context, p *model.Principal, in user.CreateInput) (*model.User, error) {
			if in.Email != "c@x.com" || in.Role != "admin" {
				t.Errorf("unexpected input: %+v", in)
			}
			return &model.User{ID: "u-3", Email: in.Email, Role: model.Role(in.Role)}, nil
		},
	}
	h := NewUserHandler(svc, testErrors())

	body := `{"email":"c@x.com","password":"secret3","role":"admin"}`
	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)), testAdmin)
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var resp userResponse
	decodeBody(t, w, &resp)
	if resp.Role != "admin" {
		t.Errorf("role = %q, want admin", resp.Role)
	}
}

func TestUserHandler_UpdateRole(t *testing.T) {
	svc := &mockUserService{
		updateRoleFn: func(ctx context.Context, p *model.Principal, id, role string) (*model.User, error) {
			if id == "missing" {
				return nil, model.NewUserNotFoundError()
			}
			if role != "admin" && role != "user" {
				return nil, model.NewValidationError("role must be one of: user admin")
			}
			return &model.User{ID: id, Email: "b@x.com", Role: model.Role(role)}, nil
		},
	}
	h := NewUserHandler(svc, testErrors())

	tests := []struct {
		name       string
		id         string
		body       string
		wantStatus int
	}{
		{"promote", "u-2", `{"role":"admin"}`, http.StatusOK},
		{"invalid role", "u-2", `{"role":"root"}`, http.StatusBadRequest},
		{"unknown user", "missing", `{"role":"user"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/users/"+tt.id+"/role", strings.NewReader(tt.body))
			req = withChiURLParam(withPrincipal(req, testAdmin), "id", tt.id)
			w := httptest.NewRecorder()

			h.UpdateRole(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestUserHandler_Profile(t *testing.T) {
	bd := time.Date(1990, 4, 1, 0, 0, 0, 0, time.UTC)
	svc := &mockUserService{
		getProfileFn: func(ctx context.Context, p *model.Principal) (*model.User, error) {
			return &model.User{ID: p.ID, Email: "m@x.com", BirthDate: &bd, Role: p.Role}, nil
		},
		updateProfileFn: func(ctx context.Context, p *model.Principal, in user.ProfileUpdate) (*model.User, error) {
			if !in.LastName.Set || in.LastName.Value != "Smith" {
				t.Errorf("lastName = %+v", in.LastName)
			}
			if in.FirstName.Set {
				t.Error("absent firstName should not be Set")
			}
			return &model.User{ID: p.ID, Email: "m@x.com", LastName: "Smith", Role: p.Role}, nil
		},
	}
	h := NewUserHandler(svc, testErrors())

	t.Run("get", func(t *testing.T) {
		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/users/profile", nil), testMember)
		w := httptest.NewRecorder()

		h.GetProfile(w, req)

		var resp userResponse
		decodeBody(t, w, &resp)
		if resp.BirthDate == nil || *resp.BirthDate != "1990-04-01" {
			t.Errorf("birthDate = %v, want 1990-04-01", resp.BirthDate)
		}
	})

	t.Run("update", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/users/profile", strings.NewReader(`{"lastName":"Smith"}`))
		req = withPrincipal(req, testMember)
		w := httptest.NewRecorder()

		h.UpdateProfile(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var resp userResponse
		decodeBody(t, w, &resp)
		if resp.LastName != "Smith" {
			t.Errorf("lastName = %q, want Smith", resp.LastName)
		}
	})
}
