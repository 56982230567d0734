package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantErr   error
	}{
		{"missing header", "", "", ErrMissingAuthHeader},
		{"basic scheme", "Basic dXNlcjpwYXNz", "", ErrInvalidAuthScheme},
		{"api key scheme", "ApiKey sk-1234567890", "", ErrInvalidAuthScheme},
		{"scheme without token", "Bearer", "", ErrInvalidAuthScheme},
		{"bearer with empty token", "Bearer ", "", ErrEmptyToken},
		{"bearer with whitespace token", "Bearer    ", "", ErrEmptyToken},
		{"valid token", "Bearer eyJhbGciOiJIUzI1NiJ9.e30.sig", "eyJhbGciOiJIUzI1NiJ9.e30.sig", nil},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			token, err := ExtractBearerToken(req)
			if err != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
			if token != tt.wantToken {
				t.Errorf("expected token %q, got %q", tt.wantToken, token)
			}
		})
	}
}

func TestWriteJSONError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteJSONError(rec, http.StatusConflict, "project key already exists", TypeConflict)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got %q", ct)
	}

	var resp APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
	if resp.Error.Message != "project key already exists" {
		t.Errorf("unexpected message %q", resp.Error.Message)
	}
	if resp.Error.Type != TypeConflict {
		t.Errorf("unexpected type %q", resp.Error.Type)
	}
}

func TestWriteUnauthorized(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteUnauthorized(rec)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != "Bearer" {
		t.Errorf("expected WWW-Authenticate: Bearer, got %q", got)
	}

	var resp APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
	if resp.Error.Type != TypeAuthentication {
		t.Errorf("expected type %q, got %q", TypeAuthentication, resp.Error.Type)
	}
}

func TestWriteForbidden(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteForbidden(rec, "only Admins can delete the project")

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rec.Code)
	}

	var resp APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
	if resp.Error.Message != "only Admins can delete the project" {
		t.Errorf("unexpected message %q", resp.Error.Message)
	}
	if resp.Error.Type != TypePermission {
		t.Errorf("expected type %q, got %q", TypePermission, resp.Error.Type)
	}
}

func TestWriteInternalError_IsGeneric(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteInternalError(rec)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}

	var resp APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
	if resp.Error.Message != "internal server error" {
		t.Errorf("unexpected message %q", resp.Error.Message)
	}
}
