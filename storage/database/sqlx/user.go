package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// pqUniqueViolation is the Postgres error code for unique_violation.
const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == pqUniqueViolation
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) exec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return repo.db
}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	LastLogin    sql.NullTime   `db:"last_login"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		IsActive:     usr.IsActive,
		Roles:        pq.StringArray(usr.Roles),
		PasswordHash: usr.PasswordHash,
		LastLogin:    sql.NullTime{Time: usr.LastLogin, Valid: !usr.LastLogin.IsZero()},
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
	}
}

func (row userRow) toUser() user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		IsActive:     row.IsActive,
		Roles:        []string(row.Roles),
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time
	}
	return usr
}

const userColumns = `id, name, email, is_active, roles, password_hash, last_login, created_at, updated_at`

// columns clients may order query results by
var sortableUserColumns = map[string]bool{
	"name":       true,
	"email":      true,
	"is_active":  true,
	"last_login": true,
	"created_at": true,
	"updated_at": true,
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	excludedIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excludedIDs = append(excludedIDs, usr.ID)
	}

	var exists bool
	err := sqlx.GetContext(ctx, repo.exec(exec), &exists,
		`SELECT EXISTS (SELECT 1 FROM app_user WHERE LOWER(email) = LOWER($1) AND id::text != ALL($2))`,
		email, pq.StringArray(excludedIDs),
	)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := newUserRow(usr)
	_, err := repo.exec(exec).ExecContext(ctx,
		`INSERT INTO app_user (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		row.ID, row.Name, row.Email, row.IsActive, row.Roles, row.PasswordHash, row.LastLogin, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, repo.exec(exec), &row,
		`SELECT `+userColumns+` FROM app_user WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user by id")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, repo.exec(exec), &row,
		`SELECT `+userColumns+` FROM app_user WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user by email")
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	q := `SELECT ` + userColumns + ` FROM app_user`
	var args []interface{}
	var conds []string

	if filter != nil && !filter.IsEmpty() {
		if filter.Search != "" {
			args = append(args, "%"+filter.Search+"%")
			p := placeholder(len(args))
			conds = append(conds, `(name ILIKE `+p+` OR email ILIKE `+p+`)`)
		}
		if filter.Roles != nil {
			args = append(args, pq.StringArray(filter.Roles))
			conds = append(conds, `roles && `+placeholder(len(args)))
		}
		if filter.IsActive != nil {
			args = append(args, *filter.IsActive)
			conds = append(conds, `is_active = `+placeholder(len(args)))
		}
		if !filter.CreatedFrom.IsZero() {
			args = append(args, filter.CreatedFrom)
			conds = append(conds, `created_at >= `+placeholder(len(args)))
		}
		if !filter.CreatedTo.IsZero() {
			args = append(args, filter.CreatedTo)
			conds = append(conds, `created_at <= `+placeholder(len(args)))
		}
	}
	q += whereClause(conds) + orderClause(ordering, sortableUserColumns, "created_at DESC")

	var rows []userRow
	if err := sqlx.SelectContext(ctx, repo.exec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, len(rows))
	for i, row := range rows {
		users[i] = row.toUser()
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := newUserRow(usr)
	res, err := repo.exec(exec).ExecContext(ctx,
		`UPDATE app_user
		 SET name = $2, email = $3, is_active = $4, roles = $5, password_hash = $6, last_login = $7, updated_at = $8
		 WHERE id = $1`,
		row.ID, row.Name, row.Email, row.IsActive, row.Roles, row.PasswordHash, row.LastLogin, row.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := repo.exec(exec).ExecContext(ctx,
		`DELETE FROM app_user WHERE id::text = ANY($1)`, pq.StringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting users")
}

type profileRow struct {
	UserID           string      `db:"user_id"`
	RegistrationCode null.String `db:"registration_code"`
	GradeLevel       null.String `db:"grade_level"`
}

func (repo *userRepository) GetProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (user.Profile, error) {
	var row profileRow
	err := sqlx.GetContext(ctx, repo.exec(exec), &row,
		`SELECT user_id, registration_code, grade_level FROM student_profile WHERE user_id = $1`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.Profile{}, user.ErrNotFound
		}
		return user.Profile{}, errors.Wrap(err, "getting profile")
	}
	return user.Profile(row), nil
}

func (repo *userRepository) UpsertProfile(ctx context.Context, prof user.Profile, exec ...core.DBExecutor) (user.Profile, error) {
	_, err := repo.exec(exec).ExecContext(ctx,
		`INSERT INTO student_profile (user_id, registration_code, grade_level)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET registration_code = EXCLUDED.registration_code, grade_level = EXCLUDED.grade_level`,
		prof.UserID, prof.RegistrationCode, prof.GradeLevel,
	)
	if err != nil {
		// user_id conflicts are resolved by the upsert; a unique violation
		// here is the registration code
		if isUniqueViolation(err) {
			return user.Profile{}, user.ErrRegCodeExists
		}
		return user.Profile{}, errors.Wrap(err, "upserting profile")
	}
	return prof, nil
}
