package services

import (
	"context"

	"github.com/musician-app/apiserver/types"
	"go.uber.org/zap"
)

// DiagnosticsService reports the caller's resolved state. Strictly
// best-effort: every lookup failure degrades to an empty field rather than
// an error, since the endpoint exists to debug the very lookups it uses.
type DiagnosticsService struct {
	users    UserRepository
	resolver TierResolver
	logger   *zap.Logger
}

func NewDiagnosticsService(users UserRepository, resolver TierResolver, logger *zap.Logger) *DiagnosticsService {
	return &DiagnosticsService{users: users, resolver: resolver, logger: logger}
}

// Diagnostics is the caller's resolved identity and entitlement snapshot.
type Diagnostics struct {
	PlatformUserID string     `json:"platformUserId,omitempty"`
	UserID         string     `json:"userId,omitempty"`
	Tier           types.Tier `json:"tier,omitempty"`
	Paid           bool       `json:"paid"`
	Credits        int64      `json:"credits,omitempty"`
}

// Describe resolves whatever it can about the caller and never fails.
func (s *DiagnosticsService) Describe(ctx context.Context, ident Identity) Diagnostics {
	diag := Diagnostics{
		PlatformUserID: ident.PlatformUserID,
		UserID:         ident.UserID,
	}

	var user types.User
	var err error
	switch {
	case ident.UserID != "":
		user, err = s.users.GetByID(ctx, ident.UserID)
	case ident.PlatformUserID != "":
		user, err = s.users.GetByPlatformID(ctx, ident.PlatformUserID)
	default:
		return diag
	}
	if err != nil {
		s.logger.Debug("diagnostics user lookup failed", zap.Error(err))
		return diag
	}

	diag.UserID = user.ID
	diag.PlatformUserID = user.PlatformUserID
	diag.Tier = user.Tier
	diag.Credits = user.Credits

	if tier, paid := s.resolver.Resolve(ctx, user.PlatformUserID); paid {
		diag.Tier = tier
		diag.Paid = true
	}
	return diag
}
