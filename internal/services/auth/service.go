// Package auth fronts Supabase GoTrue for signup, signin, and session
// handling. Credentials pass through to the identity provider; the
// application never stores passwords in its own tables.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	activitydom "github.com/gasamara891-boop/river/internal/domain/activity"
	"github.com/gasamara891-boop/river/internal/domain/profile"
	"github.com/gasamara891-boop/river/internal/services/activity"
	"github.com/gasamara891-boop/river/internal/storage"
	"github.com/gasamara891-boop/river/pkg/logger"
	"github.com/gasamara891-boop/river/supabase/client"
)

const minPasswordLength = 6

// Result is the outcome of a signup or signin.
type Result struct {
	Profile      profile.Profile
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	// ConfirmationPending is set when signup succeeded but the email still
	// needs confirming, so no session exists yet.
	ConfirmationPending bool
}

// Service is the authentication gateway.
type Service struct {
	sb       *client.Client
	profiles storage.ProfileStore
	activity *activity.Service
	log      *logger.Logger
}

// New constructs the auth service. The activity service is optional.
func New(sb *client.Client, profiles storage.ProfileStore, act *activity.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Service{sb: sb, profiles: profiles, activity: act, log: log}
}

// SignUp registers a new user with the identity provider and creates the
// matching profile row. The password must be confirmed by repeating it.
func (s *Service) SignUp(ctx context.Context, name, email, password, confirm string) (Result, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return Result{}, newError(KindName, "please enter your name", nil)
	}
	if email == "" || !strings.Contains(email, "@") {
		return Result{}, newError(KindEmail, "enter a valid email address", nil)
	}
	if len(password) < minPasswordLength {
		return Result{}, newError(KindPassword, fmt.Sprintf("password must be at least %d characters", minPasswordLength), nil)
	}
	if password != confirm {
		return Result{}, newError(KindPassword, "passwords do not match", nil)
	}

	metadata := map[string]any{"name": name}
	resp, err := s.sb.Auth().SignUp(ctx, email, password, metadata)
	if err != nil {
		return Result{}, classify(err)
	}
	if resp.User == nil {
		return Result{}, newError(KindGeneral, "signup did not return a user", nil)
	}

	p, err := s.profiles.UpsertProfile(ctx, profile.Profile{
		ID:    resp.User.ID,
		Name:  name,
		Email: email,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create profile: %w", err)
	}

	result := Result{
		Profile:             p,
		AccessToken:         resp.AccessToken,
		RefreshToken:        resp.RefreshToken,
		ExpiresIn:           resp.ExpiresIn,
		ConfirmationPending: !resp.Session(),
	}
	if resp.Session() {
		s.record(ctx, p.ID, activitydom.EventSignup, "account created")
	}
	s.log.WithField("user_id", p.ID).Info("user signed up")
	return result, nil
}

// SignIn authenticates against the identity provider and loads the profile.
// A missing profile row is recreated from the identity, which heals accounts
// registered before the profiles table existed.
func (s *Service) SignIn(ctx context.Context, email, password string) (Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Result{}, newError(KindEmail, "enter a valid email address", nil)
	}
	if password == "" {
		return Result{}, newError(KindPassword, "password is required", nil)
	}

	resp, err := s.sb.Auth().SignIn(ctx, email, password)
	if err != nil {
		return Result{}, classify(err)
	}
	if !resp.Session() || resp.User == nil {
		return Result{}, newError(KindGeneral, "signin did not return a session", nil)
	}

	p, err := s.ensureProfile(ctx, resp.User)
	if err != nil {
		return Result{}, err
	}

	s.record(ctx, p.ID, activitydom.EventLogin, "signed in")
	s.log.WithField("user_id", p.ID).Info("user signed in")
	return Result{
		Profile:      p,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

// Session resolves an access token into the current profile.
func (s *Service) Session(ctx context.Context, accessToken string) (profile.Profile, error) {
	if strings.TrimSpace(accessToken) == "" {
		return profile.Profile{}, newError(KindGeneral, "missing access token", nil)
	}
	user, err := s.sb.Auth().GetUser(ctx, accessToken)
	if err != nil {
		return profile.Profile{}, classify(err)
	}
	return s.ensureProfile(ctx, user)
}

// SignOut revokes the session and records the logout.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	user, err := s.sb.Auth().GetUser(ctx, accessToken)
	if err != nil {
		// The token may already be expired; revoke is still attempted.
		s.log.WithError(err).Debug("resolve user before signout failed")
	}
	if err := s.sb.Auth().SignOut(ctx, accessToken); err != nil {
		return classify(err)
	}
	if user != nil {
		s.record(ctx, user.ID, activitydom.EventLogout, "signed out")
	}
	return nil
}

// ResendConfirmation triggers another signup confirmation email.
func (s *Service) ResendConfirmation(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return newError(KindEmail, "enter a valid email address", nil)
	}
	if err := s.sb.Auth().ResendConfirmation(ctx, email); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Service) ensureProfile(ctx context.Context, user *client.User) (profile.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, user.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return profile.Profile{}, fmt.Errorf("load profile: %w", err)
	}

	name, _ := user.UserMetadata["name"].(string)
	p, err = s.profiles.UpsertProfile(ctx, profile.Profile{
		ID:    user.ID,
		Name:  name,
		Email: user.Email,
	})
	if err != nil {
		return profile.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

func (s *Service) record(ctx context.Context, userID, event, description string) {
	if s.activity == nil {
		return
	}
	if _, err := s.activity.Record(ctx, userID, event, description); err != nil {
		s.log.WithError(err).WithField("event", event).Warn("record auth activity failed")
	}
}
