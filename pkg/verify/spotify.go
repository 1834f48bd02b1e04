package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/spotify"
)

var spotifyScopes = []string{
	"user-read-private",
	"user-read-email",
	"user-read-recently-played",
}

// TokenStore loads and persists a user's provider token.
// Token returns ErrNotConnected when the user has not linked an account.
type TokenStore interface {
	Token(ctx context.Context, userID uint) (*oauth2.Token, error)
	SaveToken(ctx context.Context, userID uint, tok *oauth2.Token) error
}

type SpotifyOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	APIBaseURL   string
	// AuthURL and TokenURL override the public endpoint (tests).
	AuthURL  string
	TokenURL string
	Timeout  time.Duration
}

type SpotifyProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Product     string `json:"product"`
}

func (p *SpotifyProfile) IsPremium() bool { return p.Product == "premium" }

// Spotify checks listening tasks against the Spotify Web API.
//
// Targets:
//
//	premium        the account has a premium subscription
//	track:<id>     the track appears in recently played
//	<id>           same as track:<id>
type Spotify struct {
	conf    *oauth2.Config
	apiBase string
	store   TokenStore
	client  *http.Client
}

func NewSpotify(opts SpotifyOptions, store TokenStore) *Spotify {
	endpoint := spotify.Endpoint
	if opts.AuthURL != "" {
		endpoint.AuthURL = opts.AuthURL
	}
	if opts.TokenURL != "" {
		endpoint.TokenURL = opts.TokenURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(opts.APIBaseURL, "/")
	if base == "" {
		base = "https://api.spotify.com"
	}
	return &Spotify{
		conf: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       spotifyScopes,
			Endpoint:     endpoint,
		},
		apiBase: base,
		store:   store,
		client:  &http.Client{Timeout: timeout},
	}
}

// AuthCodeURL is the consent page the user is sent to when connecting an account.
func (s *Spotify) AuthCodeURL(state string) string {
	return s.conf.AuthCodeURL(state)
}

func (s *Spotify) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return s.conf.Exchange(s.withClient(ctx), code)
}

// Profile reads /v1/me. The returned token differs from tok when it was refreshed.
func (s *Spotify) Profile(ctx context.Context, tok *oauth2.Token) (*SpotifyProfile, *oauth2.Token, error) {
	ts := s.conf.TokenSource(s.withClient(ctx), tok)
	var p SpotifyProfile
	if err := s.get(ctx, ts, "/v1/me", &p); err != nil {
		return nil, nil, err
	}
	current, err := ts.Token()
	if err != nil {
		return nil, nil, err
	}
	return &p, current, nil
}

func (s *Spotify) Verify(ctx context.Context, req Request) (*Result, error) {
	tok, err := s.store.Token(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	ts := s.conf.TokenSource(s.withClient(ctx), tok)
	defer s.persist(ctx, req.UserID, tok, ts)

	target := strings.TrimSpace(req.Target)
	switch {
	case target == "premium":
		var p SpotifyProfile
		if err := s.get(ctx, ts, "/v1/me", &p); err != nil {
			return nil, err
		}
		if p.IsPremium() {
			return &Result{Approved: true, Details: "premium subscription active"}, nil
		}
		return &Result{Approved: false, Details: "account is " + p.Product}, nil
	case target != "":
		trackID := strings.TrimPrefix(target, "track:")
		played, err := s.recentlyPlayed(ctx, ts, trackID)
		if err != nil {
			return nil, err
		}
		if played {
			return &Result{Approved: true, Details: "track found in recently played"}, nil
		}
		return &Result{Approved: false, Details: "track not found in recently played"}, nil
	default:
		return nil, fmt.Errorf("spotify: task has no verification target")
	}
}

type recentlyPlayedResponse struct {
	Items []struct {
		Track struct {
			ID string `json:"id"`
		} `json:"track"`
		PlayedAt time.Time `json:"played_at"`
	} `json:"items"`
}

func (s *Spotify) recentlyPlayed(ctx context.Context, ts oauth2.TokenSource, trackID string) (bool, error) {
	var resp recentlyPlayedResponse
	if err := s.get(ctx, ts, "/v1/me/player/recently-played?limit=50", &resp); err != nil {
		return false, err
	}
	for _, item := range resp.Items {
		if item.Track.ID == trackID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Spotify) get(ctx context.Context, ts oauth2.TokenSource, path string, out interface{}) error {
	client := oauth2.NewClient(s.withClient(ctx), ts)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+path, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("spotify %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// persist writes back a token the source refreshed during the call.
func (s *Spotify) persist(ctx context.Context, userID uint, old *oauth2.Token, ts oauth2.TokenSource) {
	current, err := ts.Token()
	if err != nil || current.AccessToken == old.AccessToken {
		return
	}
	_ = s.store.SaveToken(ctx, userID, current)
}

func (s *Spotify) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.client)
}
