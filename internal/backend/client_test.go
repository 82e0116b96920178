package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dermassist/client/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/", Timeout: 5 * time.Second}, zerolog.Nop())
}

func TestLoginIsFormEncoded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content type = %q", ct)
		}
		if r.Header.Get(requestIDHeader) == "" {
			t.Error("missing request id")
		}
		r.ParseForm()
		if r.PostForm.Get("username") != "ada" || r.PostForm.Get("password") != "p@ss word" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	})

	token, err := c.Login(context.Background(), "ada", "p@ss word")
	if err != nil || token != "tok" {
		t.Fatalf("Login = %q, %v", token, err)
	}
}

func TestRegisterSendsNullOptionals(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if v, ok := body["phone_number"]; !ok || v != nil {
			t.Errorf("phone_number = %v (present %v)", v, ok)
		}
		if body["username"] != "ada" {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`{"access_token":"tok"}`))
	})

	if _, err := c.Register(context.Background(), models.RegisterInput{FullName: "Ada", Username: "ada", Email: "a@b.c", Password: "Password1"}); err != nil {
		t.Fatal(err)
	}
}

func TestMissingTokenIsAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	if _, err := c.Login(context.Background(), "ada", "x"); !errors.Is(err, ErrMissingToken) {
		t.Errorf("err = %v", err)
	}
}

func TestMeSendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Could not validate credentials"}`))
			return
		}
		w.Write([]byte(`{"full_name":"Ada Lovelace","username":"ada","email":"ada@example.com","role":"user"}`))
	})

	profile, err := c.Me(context.Background(), "tok")
	if err != nil || profile.Username != "ada" {
		t.Fatalf("Me = %+v, %v", profile, err)
	}

	_, err = c.Me(context.Background(), "bad")
	if !IsUnauthorized(err) || Detail(err) != "Could not validate credentials" {
		t.Errorf("err = %v", err)
	}
}

func TestPredictMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("anonymous predict sent a token")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(file)
		if header.Filename != "mole.jpg" || header.Header.Get("Content-Type") != "image/jpeg" || string(data) != "jpegdata" {
			t.Errorf("part = %q %q %q", header.Filename, header.Header.Get("Content-Type"), data)
		}
		w.Write([]byte(`{"diagnosis":"bcc","confidence":0.6,"risk_level":"High Risk","all_scores":{"bcc":0.6,"nv":0.4}}`))
	})

	got, err := c.Predict(context.Background(), "", &models.CapturedImage{Filename: "mole.jpg", ContentType: "image/jpeg", Data: []byte("jpegdata")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Diagnosis != "bcc" || got.AllScores["nv"] != 0.4 {
		t.Errorf("prediction = %+v", got)
	}
}

func TestScansEmptyListIsNotNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	})
	scans, err := c.Scans(context.Background(), "tok")
	if err != nil || scans == nil || len(scans) != 0 {
		t.Errorf("Scans = %v, %v", scans, err)
	}
}

func TestParseDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string", `{"detail":"Username already registered"}`, "Username already registered"},
		{"validation list", `{"detail":[{"msg":"field required"},{"msg":"value is not a valid email address"}]}`, "field required; value is not a valid email address"},
		{"no detail", `{"error":"x"}`, ""},
		{"not json", `<html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseDetail([]byte(tt.body)); got != tt.want {
				t.Errorf("parseDetail = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	if got := (&APIError{Status: 502}).Error(); got != "backend returned status 502" {
		t.Errorf("Error() = %q", got)
	}
}

func TestOversizedResponseIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"full_name":"` + strings.Repeat("a", 256) + `"}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, MaxResponseBytes: 64}, zerolog.Nop())
	if _, err := c.Me(context.Background(), "tok"); !errors.Is(err, ErrResponseTooLarge) {
		t.Errorf("err = %v", err)
	}
}
