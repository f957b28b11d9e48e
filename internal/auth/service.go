package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/meililab/backend/internal/models"
	"github.com/meililab/backend/internal/repository"
)

var (
	// ErrDuplicateUsername is returned when registering a username that already exists.
	ErrDuplicateUsername  = errors.New("username already registered")
	ErrMissingFields      = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// A ref shorter than this is a short referral code; anything else must be a user id.
const shortCodeMaxLen = 32

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type CredentialStore interface {
	GetCredentials(ctx context.Context, username string) (*models.User, error)
}

type DeviceStore interface {
	Claim(ctx context.Context, d *models.Device) (bool, error)
	InsertReferralReward(ctx context.Context, rw *models.ReferralReward) (bool, error)
}

type Ledger interface {
	AddCredits(ctx context.Context, userID uuid.UUID, delta int) (int, error)
	AddPoints(ctx context.Context, userID uuid.UUID, delta int) (int, error)
}

type ReferralResolver interface {
	Resolve(ctx context.Context, code string) (uuid.UUID, bool, error)
}

type Toggles interface {
	Enabled(ctx context.Context, key string) bool
}

// Deps groups the collaborators registration touches.
type Deps struct {
	Users       UserStore
	Credentials CredentialStore
	Devices     DeviceStore
	Ledger      Ledger
	Referrals   ReferralResolver
	Toggles     Toggles
}

type RegisterInput struct {
	Username  string
	Password  string
	Nickname  string
	DeviceID  string
	Ref       string
	UserAgent string
}

type RegisterResult struct {
	User          *models.User
	FirstOnDevice bool
	BonusCredits  int
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	Login(ctx context.Context, username, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, bool, error)
}

type service struct {
	deps   Deps
	secret []byte
	ttl    time.Duration
	log    *slog.Logger
}

func NewService(deps Deps, secret string, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	return &service{deps: deps, secret: []byte(secret), ttl: 24 * time.Hour, log: log}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Admin bool `json:"adm"`
}

// Register creates the account and applies the device-scoped rewards. Only
// user creation can fail the call; referral and reward problems are logged.
func (s *service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	username := strings.TrimSpace(in.Username)
	password := strings.TrimSpace(in.Password)
	if username == "" || password == "" {
		return nil, ErrMissingFields
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	nickname := strings.TrimSpace(in.Nickname)
	if nickname == "" {
		nickname = username
	}
	deviceID := strings.TrimSpace(in.DeviceID)
	env := DetectEnv(in.UserAgent)

	u := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Nickname:     nickname,
		DeviceID:     deviceID,
		RegisterEnv:  env,
		ReferrerID:   s.resolveReferrer(ctx, strings.TrimSpace(in.Ref)),
	}
	if err := s.deps.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	log := s.log.With("user_id", u.ID, "device_id", deviceID, "register_env", env)

	res := &RegisterResult{User: u}
	if deviceID != "" {
		first, err := s.deps.Devices.Claim(ctx, &models.Device{DeviceID: deviceID, FirstUserID: u.ID})
		if err != nil {
			log.Error("device claim failed", "error", err)
		}
		res.FirstOnDevice = first
	}

	if res.FirstOnDevice && env == models.EnvBrowser {
		if balance, err := s.deps.Ledger.AddCredits(ctx, u.ID, models.SignupBonusCredits); err != nil {
			log.Error("signup bonus failed", "error", err)
		} else {
			res.BonusCredits = models.SignupBonusCredits
			u.Credits = balance
		}
	}

	if res.FirstOnDevice && u.ReferrerID != nil {
		s.rewardReferrer(ctx, log, *u.ReferrerID, u.ID, deviceID)
	}

	log.Info("user registered", "first_on_device", res.FirstOnDevice, "referred", u.ReferrerID != nil)
	return res, nil
}

// resolveReferrer maps a ref to an existing user id. Anything that does not
// resolve means no referrer.
func (s *service) resolveReferrer(ctx context.Context, ref string) *uuid.UUID {
	if ref == "" {
		return nil
	}
	var id uuid.UUID
	if len(ref) < shortCodeMaxLen {
		resolved, ok, err := s.deps.Referrals.Resolve(ctx, ref)
		if err != nil {
			s.log.Warn("referral code resolution failed", "ref", ref, "error", err)
			return nil
		}
		if !ok {
			return nil
		}
		id = resolved
	} else {
		parsed, err := uuid.Parse(ref)
		if err != nil {
			return nil
		}
		if _, err := s.deps.Users.GetByID(ctx, parsed); err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				s.log.Warn("referrer lookup failed", "ref", ref, "error", err)
			}
			return nil
		}
		id = parsed
	}
	return &id
}

// rewardReferrer grants the one-per-device referral reward. The reward row is
// written first; its unique device key decides who gets paid.
func (s *service) rewardReferrer(ctx context.Context, log *slog.Logger, referrerID, newUserID uuid.UUID, deviceID string) {
	inserted, err := s.deps.Devices.InsertReferralReward(ctx, &models.ReferralReward{
		ReferrerID: referrerID,
		NewUserID:  newUserID,
		DeviceID:   deviceID,
	})
	if err != nil {
		log.Error("referral reward insert failed", "referrer_id", referrerID, "error", err)
		return
	}
	if !inserted {
		log.Info("device already rewarded a referrer", "referrer_id", referrerID)
		return
	}
	if _, err := s.deps.Ledger.AddCredits(ctx, referrerID, models.ReferralRewardCredits); err != nil {
		log.Error("referral credit reward failed", "referrer_id", referrerID, "error", err)
	}
	if s.deps.Toggles.Enabled(ctx, models.ConfigReferralPointsEnabled) {
		if _, err := s.deps.Ledger.AddPoints(ctx, referrerID, models.ReferralRewardPoints); err != nil {
			log.Error("referral point reward failed", "referrer_id", referrerID, "error", err)
		}
	}
}

func (s *service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.deps.Credentials.GetCredentials(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(strings.TrimSpace(password))); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(u.ID, u.IsAdmin)
}

func (s *service) issueToken(userID uuid.UUID, admin bool) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Admin: admin,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (uuid.UUID, bool, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, false, err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, false, errors.New("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, c.Admin, nil
}
