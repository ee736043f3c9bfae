package identity

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Noel-Mtf/yesshare/internal/failure"
	"github.com/stretchr/testify/require"
)

func fakeIDToken(claims map[string]interface{}) string {
	b, _ := json.Marshal(claims)
	return "hdr." + base64.RawURLEncoding.EncodeToString(b) + ".sig"
}

type fakeKeycloak struct {
	created   map[string]interface{}
	loggedOut string
}

func (f *fakeKeycloak) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/r/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.Form.Get("grant_type") {
		case "client_credentials":
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "admin-token"})
		case "password":
			if r.Form.Get("password") != "secret1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid user credentials"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{
				"access_token":  "at",
				"refresh_token": "kc-refresh",
				"id_token":      fakeIDToken(map[string]interface{}{"sub": "uid-42", "email": r.Form.Get("username"), "preferred_username": "alice"}),
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/realms/r/protocol/openid-connect/logout", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.loggedOut = r.Form.Get("refresh_token")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/admin/realms/r/users", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["username"] == "taken" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"errorMessage":"User exists with same username"}`))
			return
		}
		f.created = body
		w.Header().Set("Location", "http://"+r.Host+"/admin/realms/r/users/uid-42")
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func newTestKeycloak(t *testing.T) (*Keycloak, *fakeKeycloak) {
	t.Helper()
	fk := &fakeKeycloak{}
	srv := httptest.NewServer(fk.handler(t))
	t.Cleanup(srv.Close)
	return NewKeycloak(KeycloakConfig{URL: srv.URL + "/", Realm: "r", ClientID: "cid", ClientSecret: "cs", AllowInsecure: true}), fk
}

func TestRegister(t *testing.T) {
	kc, fk := newTestKeycloak(t)
	uid, err := kc.Register(t.Context(), "alice", "a@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "uid-42", uid)
	require.Equal(t, "alice", fk.created["username"])
	require.Equal(t, true, fk.created["enabled"])
}

func TestRegisterSurfacesProviderMessage(t *testing.T) {
	kc, _ := newTestKeycloak(t)
	_, err := kc.Register(t.Context(), "taken", "a@example.com", "secret1")
	require.True(t, failure.Is(err, failure.KindIdentity))
	require.Equal(t, "User exists with same username", failure.Message(err))
}

func TestRegisterValidation(t *testing.T) {
	kc, fk := newTestKeycloak(t)
	for _, in := range [][3]string{
		{"", "a@example.com", "secret1"},
		{"alice", "not-an-email", "secret1"},
		{"alice", "a@example.com", "12345"},
	} {
		_, err := kc.Register(t.Context(), in[0], in[1], in[2])
		require.True(t, failure.Is(err, failure.KindValidation), "%v", in)
	}
	require.Nil(t, fk.created)
}

func TestLogin(t *testing.T) {
	kc, _ := newTestKeycloak(t)
	id, err := kc.Login(t.Context(), "a@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "uid-42", id.UID)
	require.Equal(t, "alice", id.Username)
	require.Equal(t, "a@example.com", id.Email)
	require.Equal(t, "kc-refresh", id.RefreshToken)

	_, err = kc.Login(t.Context(), "a@example.com", "wrong")
	require.True(t, failure.Is(err, failure.KindIdentity))
	require.Equal(t, "Invalid user credentials", failure.Message(err))
}

func TestLoginRejectsUnverifiedTokensByDefault(t *testing.T) {
	fk := &fakeKeycloak{}
	srv := httptest.NewServer(fk.handler(t))
	defer srv.Close()
	kc := NewKeycloak(KeycloakConfig{URL: srv.URL, Realm: "r", ClientID: "cid", ClientSecret: "cs"})
	_, err := kc.Login(t.Context(), "a@example.com", "secret1")
	require.True(t, failure.Is(err, failure.KindIdentity))
}

func TestLogout(t *testing.T) {
	kc, fk := newTestKeycloak(t)
	require.NoError(t, kc.Logout(t.Context(), ""))
	require.Empty(t, fk.loggedOut)
	require.NoError(t, kc.Logout(t.Context(), "kc-refresh"))
	require.Equal(t, "kc-refresh", fk.loggedOut)
}
