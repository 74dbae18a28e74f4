package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/clinicore-health/clinicore-backend/internal/users"
	pkgAuth "github.com/clinicore-health/clinicore-backend/pkg/auth"
	"github.com/clinicore-health/clinicore-backend/pkg/auth/session"
	"github.com/clinicore-health/clinicore-backend/pkg/config"
	pkgerrors "github.com/clinicore-health/clinicore-backend/pkg/errors"
	"github.com/clinicore-health/clinicore-backend/pkg/logger"
	"github.com/clinicore-health/clinicore-backend/pkg/mailer"
	"github.com/clinicore-health/clinicore-backend/pkg/security"
	"github.com/google/uuid"
)

const minPasswordLength = 8

// Login states returned to clients once the code step resolves.
const (
	StateAuthenticated          = "authenticated"
	StatePasswordChangeRequired = "password_change_required"
	StatePasswordChanged        = "password_changed"
)

type sessionManager interface {
	Establish(ctx context.Context, accessID, userID string) (string, error)
	Revoke(ctx context.Context, accessID, userID string) error
}

// Service drives the two-step login flow and the password lifecycle.
type Service interface {
	Login(ctx context.Context, params LoginParams) (*LoginResult, error)
	VerifyOTP(ctx context.Context, params VerifyOTPParams) (*SessionResult, error)
	ResendOTP(ctx context.Context, challengeID string) error
	CompletePasswordChange(ctx context.Context, params CompletePasswordChangeParams) (*SessionResult, error)
	Logout(ctx context.Context, accessID, userID string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, params ResetPasswordParams) error
}

// Params bundles the auth service dependencies.
type Params struct {
	Users      users.Service
	Challenges *ChallengeStore
	Sessions   sessionManager
	Mailer     mailer.Mailer
	JWT        config.JWTConfig
	OTP        config.OTPConfig
	Logger     *logger.Logger
}

type service struct {
	users      users.Service
	challenges *ChallengeStore
	sessions   sessionManager
	mail       mailer.Mailer
	jwtCfg     config.JWTConfig
	otpCfg     config.OTPConfig
	logg       *logger.Logger
}

// NewService wires auth dependencies.
func NewService(params Params) (Service, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users service required")
	}
	if params.Challenges == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "challenge store required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "session manager required")
	}
	if params.Mailer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mailer required")
	}
	return &service{
		users:      params.Users,
		challenges: params.Challenges,
		sessions:   params.Sessions,
		mail:       params.Mailer,
		jwtCfg:     params.JWT,
		otpCfg:     params.OTP,
		logg:       params.Logger,
	}, nil
}

// LoginParams carries the password step credentials.
type LoginParams struct {
	Email    string
	Password string
}

// LoginResult points the client at the pending code step.
type LoginResult struct {
	ChallengeID string `json:"challengeId"`
	Message     string `json:"message"`
}

// VerifyOTPParams carries the code step input.
type VerifyOTPParams struct {
	ChallengeID string
	Code        string
}

// SessionResult is the terminal state of a login step. Token is set only for
// StateAuthenticated, ChangeToken only for StatePasswordChangeRequired;
// StatePasswordChanged carries neither.
type SessionResult struct {
	State       string         `json:"state"`
	Token       string         `json:"token,omitempty"`
	ChangeToken string         `json:"changeToken,omitempty"`
	Profile     *users.Profile `json:"profile,omitempty"`
}

// CompletePasswordChangeParams redeems a change token for a new password.
type CompletePasswordChangeParams struct {
	Token       string
	NewPassword string
}

// ResetPasswordParams redeems an emailed reset code.
type ResetPasswordParams struct {
	Email       string
	Code        string
	NewPassword string
}

// Login verifies the password and parks an OTP challenge. Unknown accounts,
// wrong passwords, and deactivated accounts all return the same error so the
// endpoint cannot be used to probe for registered emails.
func (s *service) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" || params.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil, invalidCredentials()
		}
		return nil, err
	}

	ok, err := security.VerifyPassword(params.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, invalidCredentials()
	}
	if !user.IsActive {
		s.warn(ctx, "auth.login.inactive", map[string]any{"user_id": user.ID.String()})
		return nil, invalidCredentials()
	}

	challengeID := uuid.NewString()
	code, err := security.GenerateOTP()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate code")
	}

	challenge := Challenge{
		UserID:             user.ID,
		Email:              user.Email,
		CodeHash:           security.HashOTP(challengeID, code),
		MustChangePassword: user.MustChangePassword,
	}
	if err := s.challenges.Create(ctx, challengeID, challenge); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store challenge")
	}

	if err := s.mail.SendOTP(ctx, user.Email, code); err != nil {
		// The challenge is unusable without the code; drop it.
		_ = s.challenges.Delete(ctx, challengeID)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send verification code")
	}

	return &LoginResult{
		ChallengeID: challengeID,
		Message:     "verification code sent",
	}, nil
}

// VerifyOTP resolves the code step. A correct code either opens a session or,
// when the account still carries a provisional password, hands back a
// single-use change token instead.
func (s *service) VerifyOTP(ctx context.Context, params VerifyOTPParams) (*SessionResult, error) {
	challengeID := strings.TrimSpace(params.ChallengeID)
	code := strings.TrimSpace(params.Code)
	if challengeID == "" || code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "challenge id and code required")
	}

	challenge, err := s.challenges.Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "verification expired, log in again")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load challenge")
	}

	if s.otpCfg.MaxAttempts > 0 && challenge.Attempts >= s.otpCfg.MaxAttempts {
		_ = s.challenges.Delete(ctx, challengeID)
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, log in again")
	}

	if !security.VerifyOTP(challengeID, code, challenge.CodeHash) {
		challenge.Attempts++
		if err := s.challenges.Update(ctx, challengeID, *challenge); err != nil && !errors.Is(err, ErrChallengeNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record attempt")
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid verification code")
	}

	if err := s.challenges.Delete(ctx, challengeID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear challenge")
	}

	if challenge.MustChangePassword {
		token, err := s.challenges.IssuePasswordChangeToken(ctx, challenge.UserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue change token")
		}
		return &SessionResult{
			State:       StatePasswordChangeRequired,
			ChangeToken: token,
		}, nil
	}

	return s.openSession(ctx, challenge.UserID)
}

// ResendOTP regenerates the code for a pending challenge. The cooldown is
// enforced server-side: whoever holds the challenge ID still waits the full
// window between sends.
func (s *service) ResendOTP(ctx context.Context, challengeID string) error {
	challengeID = strings.TrimSpace(challengeID)
	if challengeID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "challenge id required")
	}

	challenge, err := s.challenges.Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "verification expired, log in again")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load challenge")
	}

	allowed, err := s.challenges.MarkResend(ctx, challengeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check resend cooldown")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "code was sent recently, wait before retrying")
	}

	code, err := security.GenerateOTP()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate code")
	}
	challenge.CodeHash = security.HashOTP(challengeID, code)
	if err := s.challenges.Update(ctx, challengeID, *challenge); err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "verification expired, log in again")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store challenge")
	}

	if err := s.mail.SendOTP(ctx, challenge.Email, code); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send verification code")
	}
	return nil
}

// CompletePasswordChange redeems the change token and stores the new
// password. No session is opened here: the user logs in again with the new
// password.
func (s *service) CompletePasswordChange(ctx context.Context, params CompletePasswordChangeParams) (*SessionResult, error) {
	token := strings.TrimSpace(params.Token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "change token required")
	}
	if err := validatePassword(params.NewPassword); err != nil {
		return nil, err
	}

	userID, err := s.challenges.ConsumePasswordChangeToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "change token expired, log in again")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem change token")
	}

	if err := s.users.SetPassword(ctx, userID, params.NewPassword, false); err != nil {
		return nil, err
	}

	return &SessionResult{State: StatePasswordChanged}, nil
}

// Logout revokes the server-side session. Logout is best effort: revocation
// failures are logged, never surfaced, so the client always ends up logged
// out.
func (s *service) Logout(ctx context.Context, accessID, userID string) error {
	if err := s.sessions.Revoke(ctx, accessID, userID); err != nil {
		s.warn(ctx, "auth.logout.revoke_failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	return nil
}

// ForgotPassword emails a reset code. Unknown emails are acknowledged
// silently.
func (s *service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			s.warn(ctx, "auth.forgot.unknown_email", nil)
			return nil
		}
		return err
	}
	if !user.IsActive {
		s.warn(ctx, "auth.forgot.inactive", map[string]any{"user_id": user.ID.String()})
		return nil
	}

	code, err := security.GenerateOTP()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate code")
	}
	if err := s.challenges.SaveResetCode(ctx, email, security.HashOTP(email, code)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store reset code")
	}
	if err := s.mail.SendPasswordReset(ctx, user.Email, code); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send reset code")
	}
	return nil
}

// ResetPassword redeems a reset code. The stored digest is consumed on first
// read, so a wrong code costs the whole reset and the user must request a
// fresh one.
func (s *service) ResetPassword(ctx context.Context, params ResetPasswordParams) error {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	code := strings.TrimSpace(params.Code)
	if email == "" || code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email and code required")
	}
	if err := validatePassword(params.NewPassword); err != nil {
		return err
	}

	digest, err := s.challenges.ConsumeResetCode(ctx, email)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired reset code")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem reset code")
	}
	if !security.VerifyOTP(email, code, digest) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired reset code")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.users.SetPassword(ctx, user.ID, params.NewPassword, false)
}

func (s *service) openSession(ctx context.Context, userID uuid.UUID) (*SessionResult, error) {
	profile, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !profile.IsActive {
		return nil, invalidCredentials()
	}

	accessID := session.NewAccessID()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID:      profile.ID,
		Role:        profile.Role,
		Permissions: profile.Permissions,
		JTI:         accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token")
	}

	if _, err := s.sessions.Establish(ctx, accessID, profile.ID.String()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "establish session")
	}

	if err := s.users.RecordLogin(ctx, profile.ID); err != nil {
		s.warn(ctx, "auth.record_login_failed", map[string]any{"user_id": profile.ID.String()})
	}

	return &SessionResult{
		State:   StateAuthenticated,
		Token:   token,
		Profile: profile,
	}, nil
}

func (s *service) warn(ctx context.Context, msg string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	if fields != nil {
		ctx = s.logg.WithFields(ctx, fields)
	}
	s.logg.Warn(ctx, msg)
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	return nil
}

func invalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}
