package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/infra/observability"
	"github.com/boddenberg/travel-crm-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

const (
	profileCacheName     = "profiles"
	pendingApprovalDedup = 24 * time.Hour
)

// AuthService validates access tokens, resolves profiles and runs the
// account approval workflow.
type AuthService struct {
	profiles  port.ProfileStore
	notifs    port.NotificationStore
	notifier  *Notifier
	cache     port.Cache[*domain.Profile]
	jwtSecret []byte
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(profiles port.ProfileStore, notifs port.NotificationStore, notifier *Notifier, cache port.Cache[*domain.Profile], jwtSecret string, metrics *observability.Metrics, logger *zap.Logger) *AuthService {
	return &AuthService{
		profiles:  profiles,
		notifs:    notifs,
		notifier:  notifier,
		cache:     cache,
		jwtSecret: []byte(jwtSecret),
		metrics:   metrics,
		logger:    logger,
	}
}

// ============================================================
// Token validation (used by middleware)
// ============================================================

// JWTClaims are the claims of a Supabase access token.
type JWTClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// ValidateAccessToken checks the HS256 signature and expiry and returns the claims.
func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	return claims, nil
}

// SignAccessToken issues a token for profileID. Used by local tooling and tests;
// production tokens come from Supabase Auth.
func (s *AuthService) SignAccessToken(profileID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profileID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// Authenticate resolves the token to its profile. Suspended and inactive
// accounts fail with ErrAccountSuspended; pending accounts are returned so
// the caller can decide (see RequireApproved).
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*domain.Profile, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Authenticate")
	defer span.End()

	claims, err := s.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("profile.id", claims.Subject))

	profile, err := s.Profile(ctx, claims.Subject)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, &domain.ErrUnauthorized{Message: "profile not found"}
		}
		return nil, err
	}

	if profile.Status == domain.ProfileSuspended || (profile.Status == domain.ProfileApproved && !profile.IsActive) {
		return nil, &domain.ErrAccountSuspended{ProfileID: profile.ID}
	}
	return profile, nil
}

// RequireApproved fails with ErrPendingApproval until an admin approves the profile.
func RequireApproved(profile *domain.Profile) error {
	if profile.Status == domain.ProfilePending {
		return &domain.ErrPendingApproval{ProfileID: profile.ID}
	}
	if !profile.CanAccess() {
		return &domain.ErrAccountSuspended{ProfileID: profile.ID}
	}
	return nil
}

// Profile returns a profile, served from the cache when possible.
func (s *AuthService) Profile(ctx context.Context, id string) (*domain.Profile, error) {
	if p, ok := s.cache.Get(id); ok {
		s.metrics.IncrCacheHit(profileCacheName)
		return p, nil
	}
	s.metrics.IncrCacheMiss(profileCacheName)

	p, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(id, p)
	return p, nil
}

func (s *AuthService) Me(profile *domain.Profile) *domain.MeResponse {
	return &domain.MeResponse{
		Profile:   profile,
		CanAccess: profile.CanAccess(),
		Pending:   profile.Status == domain.ProfilePending,
	}
}

// ============================================================
// Access request / approval workflow
// ============================================================

// RequestAccess notifies every approved admin that profile is waiting for
// approval. Each admin gets at most one such notification per 24h.
func (s *AuthService) RequestAccess(ctx context.Context, profile *domain.Profile) (*domain.AccessRequestResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.RequestAccess")
	defer span.End()

	if profile.Status != domain.ProfilePending {
		return nil, &domain.ErrConflict{Message: "access already decided for this account"}
	}

	profiles, err := s.profiles.ListProfiles(ctx, domain.ProfileFilter{Status: domain.ProfileApproved})
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}

	name := profile.FullName
	if name == "" {
		name = profile.Email
	}
	since := time.Now().Add(-pendingApprovalDedup)
	notified := 0
	for _, admin := range profiles {
		if !admin.IsActive || !admin.Role.AtLeast(domain.RoleAdmin) {
			continue
		}
		exists, err := s.notifs.HasRecentNotification(ctx, admin.ID, domain.NotifPendingApproval, domain.DataUserID, profile.ID, since)
		if err != nil {
			s.logger.Warn("pending approval check failed, notifying anyway",
				zap.String("admin_id", admin.ID), zap.Error(err))
		} else if exists {
			continue
		}
		_, err = s.notifier.Notify(ctx, &domain.Notification{
			UserID: admin.ID,
			Type:   domain.NotifPendingApproval,
			Title:  "משתמש חדש ממתין לאישור",
			Body:   fmt.Sprintf("%s ביקש/ה גישה למערכת.", name),
			Data:   map[string]any{domain.DataUserID: profile.ID},
		})
		if err != nil {
			s.logger.Error("pending approval notification failed", zap.String("admin_id", admin.ID), zap.Error(err))
			continue
		}
		notified++
	}

	s.logger.Info("access requested", zap.String("profile_id", profile.ID), zap.Int("notified_admins", notified))
	return &domain.AccessRequestResponse{Status: profile.Status, NotifiedAdmins: notified}, nil
}

func (s *AuthService) ListProfiles(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.ListProfiles")
	defer span.End()

	if filter.Status != "" && filter.Status != domain.ProfilePending && filter.Status != domain.ProfileApproved && filter.Status != domain.ProfileSuspended {
		return nil, &domain.ErrValidation{Field: "status", Message: "unknown status"}
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, &domain.ErrValidation{Field: "role", Message: "unknown role"}
	}
	return s.profiles.ListProfiles(ctx, filter)
}

// Approve activates the account, clears the admins' pending notifications
// and tells the user.
func (s *AuthService) Approve(ctx context.Context, actor *domain.Profile, id string) (*domain.Profile, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Approve")
	defer span.End()

	target, err := s.decide(ctx, actor, id, map[string]any{"status": string(domain.ProfileApproved), "is_active": true})
	if err != nil {
		return nil, err
	}
	s.notifyDecision(ctx, target.ID, domain.NotifUserApproved, "החשבון שלך אושר", "ניתן להתחבר ולהתחיל לעבוד.")
	s.logger.Info("profile approved", zap.String("profile_id", id), zap.String("actor_id", actor.ID))
	return target, nil
}

// Reject suspends the account and clears the admins' pending notifications.
func (s *AuthService) Reject(ctx context.Context, actor *domain.Profile, id string) (*domain.Profile, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Reject")
	defer span.End()

	target, err := s.decide(ctx, actor, id, map[string]any{"status": string(domain.ProfileSuspended), "is_active": false})
	if err != nil {
		return nil, err
	}
	s.notifyDecision(ctx, target.ID, domain.NotifUserRejected, "בקשת הגישה נדחתה", "לפרטים נוספים פנה/י למנהל המערכת.")
	s.logger.Info("profile rejected", zap.String("profile_id", id), zap.String("actor_id", actor.ID))
	return target, nil
}

// Suspend blocks an account. Actors cannot suspend themselves or anyone ranked above them.
func (s *AuthService) Suspend(ctx context.Context, actor *domain.Profile, id string) (*domain.Profile, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Suspend")
	defer span.End()

	if actor.ID == id {
		return nil, &domain.ErrForbidden{Action: "suspend own account"}
	}
	target, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.Role.Level() > actor.Role.Level() {
		return nil, &domain.ErrForbidden{Action: "suspend a higher role"}
	}
	if err := s.applyProfilePatch(ctx, id, map[string]any{"status": string(domain.ProfileSuspended), "is_active": false}); err != nil {
		return nil, err
	}
	s.logger.Info("profile suspended", zap.String("profile_id", id), zap.String("actor_id", actor.ID))
	return s.profiles.GetProfile(ctx, id)
}

// ChangeRole sets a new role, never above the actor's own.
func (s *AuthService) ChangeRole(ctx context.Context, actor *domain.Profile, id string, role domain.Role) (*domain.Profile, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.ChangeRole")
	defer span.End()

	if !role.Valid() {
		return nil, &domain.ErrValidation{Field: "role", Message: "unknown role"}
	}
	if actor.ID == id {
		return nil, &domain.ErrForbidden{Action: "change own role"}
	}
	if role.Level() > actor.Role.Level() {
		return nil, &domain.ErrForbidden{Action: "grant a role above your own"}
	}
	target, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.Role.Level() > actor.Role.Level() {
		return nil, &domain.ErrForbidden{Action: "change the role of a higher role"}
	}
	if err := s.applyProfilePatch(ctx, id, map[string]any{"role": string(role)}); err != nil {
		return nil, err
	}
	s.logger.Info("profile role changed",
		zap.String("profile_id", id),
		zap.String("from", string(target.Role)),
		zap.String("to", string(role)),
		zap.String("actor_id", actor.ID),
	)
	return s.profiles.GetProfile(ctx, id)
}

func (s *AuthService) decide(ctx context.Context, actor *domain.Profile, id string, patch map[string]any) (*domain.Profile, error) {
	if actor.ID == id {
		return nil, &domain.ErrForbidden{Action: "decide on own account"}
	}
	if _, err := s.profiles.GetProfile(ctx, id); err != nil {
		return nil, err
	}
	if err := s.applyProfilePatch(ctx, id, patch); err != nil {
		return nil, err
	}
	if err := s.notifs.DeleteNotificationsByData(ctx, domain.NotifPendingApproval, domain.DataUserID, id); err != nil {
		s.logger.Warn("clearing pending approval notifications failed", zap.String("profile_id", id), zap.Error(err))
	}
	return s.profiles.GetProfile(ctx, id)
}

func (s *AuthService) applyProfilePatch(ctx context.Context, id string, patch map[string]any) error {
	if err := s.profiles.UpdateProfile(ctx, id, patch); err != nil {
		return persistenceError("update profile "+id, err)
	}
	s.cache.Delete(id)
	return nil
}

func (s *AuthService) notifyDecision(ctx context.Context, userID, notifType, title, body string) {
	_, err := s.notifier.Notify(ctx, &domain.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   map[string]any{domain.DataUserID: userID},
	})
	if err != nil {
		s.logger.Error("decision notification failed", zap.String("profile_id", userID), zap.String("type", notifType), zap.Error(err))
	}
}
