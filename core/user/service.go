package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound      = errors.New("user not found")
	ErrEmailExists   = errors.New("a user with this email already exists")
	ErrRegCodeExists = errors.New("a student with this registration code already exists")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (User, error)
		GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		GetProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (Profile, error)
		UpsertProfile(ctx context.Context, prof Profile, exec ...core.DBExecutor) (Profile, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, ids ...string) error
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		GetProfile(ctx context.Context, userID string) (Profile, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
	}

	service struct {
		db      core.Transactor
		repo    Repository
		mailSvc core.EmailService
		tokens  *TokenGenerator
		conf    *core.Config
		log     core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(db core.Transactor, repo Repository, mailSvc core.EmailService, log core.Logger, conf *core.Config) Service {
	return &service{
		db:      db,
		repo:    repo,
		mailSvc: mailSvc,
		tokens:  NewTokenGenerator(conf),
		conf:    conf,
		log:     log,
	}
}

// CheckUniqueness reports ErrEmailExists when the email is already taken;
// the request boundary maps it to a conflict.
func (svc *service) CheckUniqueness(ctx context.Context, email string, excludedUsers ...User) error {
	return svc.repo.CheckEmailUniqueness(ctx, email, excludedUsers)
}

// Create persists a new User and their Profile as one unit and sends them
// a welcome email.
func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if usr, err = svc.repo.CreateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "creating user")
		}
		prof := Profile{
			UserID:           usr.ID,
			RegistrationCode: null.NewString(nu.RegistrationCode, nu.RegistrationCode != ""),
			GradeLevel:       null.NewString(nu.GradeLevel, nu.GradeLevel != ""),
		}
		if _, err = svc.repo.UpsertProfile(ctx, prof, exec); err != nil {
			return errors.Wrap(err, "creating profile")
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}

	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if uu.Name != "" {
		usr.Name = uu.Name
	}
	if uu.Email != "" {
		usr.Email = uu.Email
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}

// Authenticate checks the credentials against the stored hash and refreshes
// LastLogin on success.
func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrNotFound
	}
	if !usr.IsActive {
		return User{}, ErrNotFound
	}
	return svc.SetLastLogin(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) GetProfile(ctx context.Context, userID string) (Profile, error) {
	return svc.repo.GetProfile(ctx, userID)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := DecodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "uid", Error: "invalid uid"})
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.tokens.VerifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

func (svc *service) sendWelcomeMail(usr User) {
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Welcome aboard!",
		BodyStr: fmt.Sprintf(
			"Hi %s,\n\nYour %s account is ready. Sign in at %s with this email address.",
			usr.Name, svc.conf.AppName, svc.conf.FrontendBaseURL,
		),
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := svc.tokens.MakeToken(usr)
	if err != nil {
		svc.log.Error("generating password reset token", err, usr)
		return
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Password reset",
		BodyStr: fmt.Sprintf(
			"Hi %s,\n\nFollow this link to reset your password:\n%s/password-reset?uid=%s&token=%s",
			usr.Name, svc.conf.FrontendBaseURL, EncodeUID(usr), token,
		),
	}
	svc.mailSvc.SendMessages(msg)
}
