package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	goauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/mgmu/greenhouse/internal/plants"
)

const stateCookie = "greenhouse_oauth_state"

// Profile is what Google tells about the user signing in.
type Profile struct {
	GoogleId  string
	Email     string
	Name      string
	AvatarUrl string
}

// Google drives the OAuth2 authorization code flow. The calendar scope is
// requested at sign in so that calendar sync can be turned on later without
// a second consent.
type Google struct {
	cfg *oauth2.Config
}

func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			"openid",
			goauth.UserinfoEmailScope,
			goauth.UserinfoProfileScope,
			calendar.CalendarScope,
		},
	}}
}

// Config exposes the OAuth2 configuration, needed to refresh stored tokens.
func (g *Google) Config() *oauth2.Config {
	return g.cfg
}

// LoginURL returns the consent page URL. Offline access is asked so that
// Google hands out a refresh token.
func (g *Google) LoginURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades the authorization code for a token and fetches the profile
// of the user.
func (g *Google) Exchange(ctx context.Context, code string) (Profile, *oauth2.Token, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return Profile{}, nil, fmt.Errorf("exchange code: %w", err)
	}
	svc, err := goauth.NewService(ctx, option.WithTokenSource(g.cfg.TokenSource(ctx, tok)))
	if err != nil {
		return Profile{}, nil, fmt.Errorf("userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Profile{}, nil, fmt.Errorf("userinfo: %w", err)
	}
	if info.Email == "" {
		return Profile{}, nil, fmt.Errorf("userinfo: no email granted")
	}
	return Profile{
		GoogleId:  info.Id,
		Email:     info.Email,
		Name:      info.Name,
		AvatarUrl: info.Picture,
	}, tok, nil
}

// NewState returns a random state value and remembers it in a short lived
// cookie, to be checked on callback.
func NewState(w http.ResponseWriter, secure bool) string {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return state
}

// CheckState reports whether the state returned by Google matches the cookie.
func CheckState(r *http.Request) bool {
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" {
		return false
	}
	return c.Value == r.URL.Query().Get("state")
}

// ToGoogleToken converts an OAuth2 token into its stored form.
func ToGoogleToken(tok *oauth2.Token) plants.GoogleToken {
	return plants.GoogleToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}

// FromGoogleToken converts a stored token back into an OAuth2 token.
func FromGoogleToken(tok plants.GoogleToken) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		TokenType:    "Bearer",
	}
}
