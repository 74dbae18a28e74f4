package users

import (
	"context"
	"testing"
	"time"

	"github.com/clinicore-health/clinicore-backend/pkg/config"
	"github.com/clinicore-health/clinicore-backend/pkg/db/models"
	dbtypes "github.com/clinicore-health/clinicore-backend/pkg/db/types"
	pkgerrors "github.com/clinicore-health/clinicore-backend/pkg/errors"
	"github.com/clinicore-health/clinicore-backend/pkg/pagination"
	"github.com/clinicore-health/clinicore-backend/pkg/rbac"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeRepo struct {
	users     map[uuid.UUID]*models.User
	saves     int
	creates   int
	lastLogin *time.Time
}

func newFakeRepo(seed ...*models.User) *fakeRepo {
	repo := &fakeRepo{users: map[uuid.UUID]*models.User{}}
	for _, user := range seed {
		repo.users[user.ID] = user
	}
	return repo
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now().UTC()
	f.users[user.ID] = user
	f.creates++
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *user
	return &clone, nil
}

func (f *fakeRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) List(ctx context.Context, params listUsersParams) ([]models.User, *pagination.Cursor, error) {
	out := make([]models.User, 0, len(f.users))
	for _, user := range f.users {
		out = append(out, *user)
	}
	return out, nil, nil
}

func (f *fakeRepo) Save(ctx context.Context, user *models.User) error {
	f.users[user.ID] = user
	f.saves++
	return nil
}

func (f *fakeRepo) SetPassword(ctx context.Context, id uuid.UUID, hash string, mustChange bool) error {
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.PasswordHash = hash
	user.MustChangePassword = mustChange
	return nil
}

func (f *fakeRepo) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.lastLogin = &at
	return nil
}

func (f *fakeRepo) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	user, ok := f.users[id]
	if !ok || !user.IsActive {
		return false, nil
	}
	user.IsActive = false
	return true, nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
	}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedUser() *models.User {
	phone := "+37360000000"
	return &models.User{
		ID:          uuid.New(),
		Email:       "patient@clinic.example",
		FirstName:   "Ana",
		LastName:    "Popescu",
		Phone:       &phone,
		IsActive:    true,
		Role:        rbac.RolePatient,
		Permissions: dbtypes.StringList{"*"},
		CreatedAt:   time.Now().UTC(),
	}
}

func TestUpdateProfileIdempotent(t *testing.T) {
	user := seedUser()
	repo := newFakeRepo(user)
	svc := newTestService(t, repo)
	ctx := context.Background()

	// identical resubmission: no write, no change
	profile, changed, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileParams{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if changed {
		t.Fatal("identical payload must not count as a change")
	}
	if repo.saves != 0 {
		t.Fatalf("identical payload must not write, saves=%d", repo.saves)
	}
	if profile.FirstName != user.FirstName {
		t.Fatalf("unexpected profile %+v", profile)
	}

	// a real edit writes exactly once
	profile, changed, err = svc.UpdateProfile(ctx, user.ID, UpdateProfileParams{
		FirstName: "Ana-Maria",
		LastName:  user.LastName,
		Phone:     user.Phone,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !changed {
		t.Fatal("edited payload must count as a change")
	}
	if repo.saves != 1 {
		t.Fatalf("expected one save, got %d", repo.saves)
	}
	if profile.FirstName != "Ana-Maria" {
		t.Fatalf("unexpected first name %q", profile.FirstName)
	}
}

func TestUpdateProfileValidation(t *testing.T) {
	user := seedUser()
	svc := newTestService(t, newFakeRepo(user))
	ctx := context.Background()

	_, _, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileParams{FirstName: " ", LastName: "Popescu"})
	assertCode(t, err, pkgerrors.CodeValidation)

	bad := "martian"
	_, _, err = svc.UpdateProfile(ctx, user.ID, UpdateProfileParams{
		FirstName: "Ana", LastName: "Popescu", Gender: &bad,
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, _, err = svc.UpdateProfile(ctx, uuid.New(), UpdateProfileParams{FirstName: "Ana", LastName: "Popescu"})
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestCreateDerivesRoleAndDefaults(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	result, err := svc.Create(context.Background(), CreateParams{
		Email:       " Doctor@Clinic.Example ",
		FirstName:   "Ion",
		LastName:    "Rusu",
		RolePayload: map[string]any{"userType": "physician"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if result.Profile.Email != "doctor@clinic.example" {
		t.Fatalf("email not normalized: %q", result.Profile.Email)
	}
	if result.Profile.Role != rbac.RoleDoctor {
		t.Fatalf("expected derived doctor role, got %s", result.Profile.Role)
	}
	if len(result.Profile.Permissions) != 1 || result.Profile.Permissions[0] != rbac.PermissionAll {
		t.Fatalf("expected wildcard default permissions, got %v", result.Profile.Permissions)
	}
	if !result.Profile.MustChangePassword {
		t.Fatal("new accounts must carry the provisional password flag")
	}
	if len(result.TempPassword) != tempPasswordLength {
		t.Fatalf("expected %d character temp password, got %q", tempPasswordLength, result.TempPassword)
	}

	stored := repo.users[result.Profile.ID]
	if stored == nil {
		t.Fatal("user not persisted")
	}
	if stored.PasswordHash == "" || stored.PasswordHash == result.TempPassword {
		t.Fatal("password must be stored hashed")
	}
	if len(stored.RolePayload) == 0 {
		t.Fatal("raw role payload must be retained")
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t, newFakeRepo())

	_, err := svc.Create(context.Background(), CreateParams{FirstName: "Ion", LastName: "Rusu"})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(context.Background(), CreateParams{Email: "x@y.z", FirstName: " "})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestAdminUpdateRecomputesRoleFromPayload(t *testing.T) {
	user := seedUser()
	repo := newFakeRepo(user)
	svc := newTestService(t, repo)

	profile, err := svc.AdminUpdate(context.Background(), user.ID, AdminUpdateParams{
		RolePayload: map[string]any{"role": "admin"},
	})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if profile.Role != rbac.RoleAdmin {
		t.Fatalf("expected recomputed admin role, got %s", profile.Role)
	}
	if repo.users[user.ID].Role != rbac.RoleAdmin {
		t.Fatal("recomputed role not persisted")
	}
}

func TestRecalculateRolePersistsDrift(t *testing.T) {
	user := seedUser()
	user.Role = rbac.RolePatient
	user.RolePayload = []byte(`{"userType":2}`)
	repo := newFakeRepo(user)
	svc := newTestService(t, repo)

	role, err := svc.RecalculateRole(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if role != rbac.RoleDoctor {
		t.Fatalf("expected doctor from payload, got %s", role)
	}
	if repo.saves != 1 {
		t.Fatalf("drifted role must be persisted, saves=%d", repo.saves)
	}

	// a second pass finds no drift and writes nothing
	role, err = svc.RecalculateRole(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if role != rbac.RoleDoctor {
		t.Fatalf("expected stable doctor role, got %s", role)
	}
	if repo.saves != 1 {
		t.Fatalf("no-drift pass must not write, saves=%d", repo.saves)
	}
}

func TestDeactivate(t *testing.T) {
	user := seedUser()
	repo := newFakeRepo(user)
	svc := newTestService(t, repo)
	ctx := context.Background()

	if err := svc.Deactivate(ctx, user.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if repo.users[user.ID].IsActive {
		t.Fatal("user still active")
	}

	// repeated deactivation reports not found
	err := svc.Deactivate(ctx, user.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestSetPasswordStoresHash(t *testing.T) {
	user := seedUser()
	repo := newFakeRepo(user)
	svc := newTestService(t, repo)

	if err := svc.SetPassword(context.Background(), user.ID, "fresh-password", false); err != nil {
		t.Fatalf("set password: %v", err)
	}
	stored := repo.users[user.ID]
	if stored.PasswordHash == "" || stored.PasswordHash == "fresh-password" {
		t.Fatal("password must be stored hashed")
	}
	if stored.MustChangePassword {
		t.Fatal("must-change flag should be cleared")
	}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}
