package api

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestRegisterLoginAndProtectedRoutes(t *testing.T) {
	app, _ := newTestApp(t)

	response, _ := doJSON(t, app, http.MethodGet, "/api/logs", "", "")
	if response.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("anonymous /api/logs status = %d, want 401", response.StatusCode)
	}

	registerTestUser(t, app, "owner@example.com")

	response, body := doJSON(t, app, http.MethodPost, "/api/auth/register", "", `{"email":"OWNER@example.com","password":"StrongPass1"}`)
	if response.StatusCode != fiber.StatusConflict {
		t.Fatalf("duplicate register status = %d, body %v", response.StatusCode, body)
	}

	response, body = doJSON(t, app, http.MethodPost, "/api/auth/login", "", `{"email":"owner@example.com","password":"StrongPass1"}`)
	if response.StatusCode != fiber.StatusOK {
		t.Fatalf("login status = %d, body %v", response.StatusCode, body)
	}
	token, _ := body["token"].(string)

	response, _ = doJSON(t, app, http.MethodGet, "/api/logs", token, "")
	if response.StatusCode != fiber.StatusOK {
		t.Fatalf("authorized /api/logs status = %d, want 200", response.StatusCode)
	}

	response, _ = doJSON(t, app, http.MethodGet, "/api/logs", "not-a-jwt", "")
	if response.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", response.StatusCode)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	app, _ := newTestApp(t)

	response, body := doJSON(t, app, http.MethodPost, "/api/auth/register", "", `{"email":"owner@example.com","password":"weak"}`)
	if response.StatusCode != fiber.StatusBadRequest || body["error"] != "weak password" {
		t.Fatalf("weak password response = %d %v", response.StatusCode, body)
	}
}

func TestLoginIsThrottledAfterRepeatedFailures(t *testing.T) {
	app, _ := newTestApp(t)
	registerTestUser(t, app, "owner@example.com")

	for attempt := 0; attempt < loginFailureLimit; attempt++ {
		response, _ := doJSON(t, app, http.MethodPost, "/api/auth/login", "", `{"email":"owner@example.com","password":"WrongPass1"}`)
		if response.StatusCode != fiber.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", attempt, response.StatusCode)
		}
	}

	response, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", `{"email":"owner@example.com","password":"StrongPass1"}`)
	if response.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("throttled login status = %d, body %v", response.StatusCode, body)
	}
}

func TestLoginAfterResetRequiresPasswordChange(t *testing.T) {
	app, handler := newTestApp(t)
	registerTestUser(t, app, "owner@example.com")

	temporary, err := handler.authService.ResetPassword("owner@example.com")
	if err != nil {
		t.Fatalf("ResetPassword() unexpected error: %v", err)
	}

	response, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", `{"email":"owner@example.com","password":"`+temporary+`"}`)
	if response.StatusCode != fiber.StatusForbidden || body["error"] != "password change required" {
		t.Fatalf("login with temporary password = %d %v", response.StatusCode, body)
	}

	response, body = doJSON(t, app, http.MethodPost, "/api/auth/change-password", "",
		`{"email":"owner@example.com","current_password":"`+temporary+`","new_password":"Changed2Pass"}`)
	if response.StatusCode != fiber.StatusOK || body["token"] == nil {
		t.Fatalf("change password = %d %v", response.StatusCode, body)
	}

	response, _ = doJSON(t, app, http.MethodPost, "/api/auth/login", "", `{"email":"owner@example.com","password":"Changed2Pass"}`)
	if response.StatusCode != fiber.StatusOK {
		t.Fatalf("login with new password status = %d", response.StatusCode)
	}
}
