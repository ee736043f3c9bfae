package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/Noel-Mtf/yesshare/internal/failure"
	"github.com/Noel-Mtf/yesshare/internal/oidc"
	"github.com/Noel-Mtf/yesshare/pkg/logger"
	"github.com/Noel-Mtf/yesshare/pkg/middleware"
)

// KeycloakConfig locates the realm and the confidential client used both for
// password logins and, through its service account, for the admin API.
type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
	// AllowInsecure accepts unverified id tokens when discovery fails. Tests only.
	AllowInsecure bool
}

// Keycloak implements Provider against a Keycloak realm.
type Keycloak struct {
	cfg  KeycloakConfig
	http *http.Client
}

func NewKeycloak(cfg KeycloakConfig) *Keycloak {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Keycloak{cfg: cfg, http: &http.Client{Timeout: 15 * time.Second}}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
}

func (k *Keycloak) realmURL() string {
	return k.cfg.URL + "/realms/" + k.cfg.Realm
}

func (k *Keycloak) tokenURL() string {
	return k.realmURL() + "/protocol/openid-connect/token"
}

// Register creates the account through the admin API and returns its id,
// taken from the Location of the created user.
func (k *Keycloak) Register(ctx context.Context, username, email, password string) (string, error) {
	const op = "identity.Register"
	if err := ValidateRegistration(username, email, password); err != nil {
		return "", err
	}
	admin, err := k.form(ctx, k.tokenURL(), url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {k.cfg.ClientID},
		"client_secret": {k.cfg.ClientSecret},
	})
	if err != nil {
		return "", failure.E(failure.KindIdentity, op, err)
	}

	body, err := json.Marshal(map[string]interface{}{
		"username": strings.TrimSpace(username),
		"email":    strings.TrimSpace(email),
		"enabled":  true,
		"credentials": []map[string]interface{}{
			{"type": "password", "value": password, "temporary": false},
		},
	})
	if err != nil {
		return "", failure.E(failure.KindOther, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		k.cfg.URL+"/admin/realms/"+k.cfg.Realm+"/users", strings.NewReader(string(body)))
	if err != nil {
		return "", failure.E(failure.KindOther, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+admin.AccessToken)
	resp, err := k.http.Do(req)
	if err != nil {
		return "", failure.E(failure.KindIdentity, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", failure.E(failure.KindIdentity, op, providerError(resp))
	}
	loc := resp.Header.Get("Location")
	uid := path.Base(loc)
	if loc == "" || uid == "." || uid == "/" {
		return "", failure.Newf(failure.KindIdentity, op, "provider did not return the new user id")
	}
	logger.Infof("identity: registered %s as %s", username, uid)
	return uid, nil
}

// Login runs the password grant and verifies the returned id token.
func (k *Keycloak) Login(ctx context.Context, email, password string) (*Identity, error) {
	const op = "identity.Login"
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, failure.Newf(failure.KindValidation, op, "email and password are required")
	}
	tr, err := k.form(ctx, k.tokenURL(), url.Values{
		"grant_type":    {"password"},
		"client_id":     {k.cfg.ClientID},
		"client_secret": {k.cfg.ClientSecret},
		"username":      {strings.TrimSpace(email)},
		"password":      {password},
		"scope":         {"openid email profile"},
	})
	if err != nil {
		return nil, failure.E(failure.KindIdentity, op, err)
	}
	claims, err := k.verifyIDToken(ctx, tr.IDToken)
	if err != nil {
		return nil, failure.E(failure.KindIdentity, op, err)
	}
	id := FromClaims(claims)
	if id.UID == "" {
		return nil, failure.Newf(failure.KindIdentity, op, "id token has no subject")
	}
	id.RefreshToken = tr.RefreshToken
	return id, nil
}

// Logout ends the provider session. An empty token is a no-op.
func (k *Keycloak) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	v := url.Values{
		"client_id":     {k.cfg.ClientID},
		"client_secret": {k.cfg.ClientSecret},
		"refresh_token": {refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.realmURL()+"/protocol/openid-connect/logout", strings.NewReader(v.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := k.http.Do(req)
	if err != nil {
		return failure.E(failure.KindIdentity, "identity.Logout", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return failure.E(failure.KindIdentity, "identity.Logout", providerError(resp))
	}
	return nil
}

func (k *Keycloak) form(ctx context.Context, endpoint string, v url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(v.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := k.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, providerError(resp)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

func (k *Keycloak) verifyIDToken(ctx context.Context, raw string) (map[string]interface{}, error) {
	var ver middleware.Verifier
	v, err := oidc.NewVerifier(ctx, k.realmURL(), k.cfg.ClientID)
	if err != nil {
		if !k.cfg.AllowInsecure {
			return nil, err
		}
		logger.Warnf("identity: OIDC discovery failed, accepting unverified id token: %v", err)
		ver = oidc.NewInsecureVerifier()
	} else {
		ver = v
	}
	tok, err := ver.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// providerError turns an error response into an error carrying the provider's
// own message, so it can be shown to the user as is.
func providerError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorMessage     string `json:"errorMessage"`
	}
	if json.Unmarshal(b, &body) == nil {
		switch {
		case body.ErrorDescription != "":
			return errors.New(body.ErrorDescription)
		case body.ErrorMessage != "":
			return errors.New(body.ErrorMessage)
		case body.Error != "":
			return errors.New(body.Error)
		}
	}
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("provider returned %d: %s", resp.StatusCode, msg)
}
