package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

const (
	usernameMinLength = 3
	usernameMaxLength = 24
)

// Username is a validated account name: lowercase ascii letters and
// digits, 3 to 24 characters.
type Username string

// ParseUsername validates s as a username.
func ParseUsername(s string) (Username, error) {
	if len(s) < usernameMinLength || len(s) > usernameMaxLength {
		return "", shared.Invalidf("username must be %d to %d characters", usernameMinLength, usernameMaxLength)
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", shared.Invalidf("username contains invalid character %q", r)
		}
	}
	return Username(s), nil
}

func (u Username) String() string { return string(u) }

// User is an account. The password hash never leaves this package.
type User struct {
	ID        UserID
	Username  Username
	Admin     bool
	Avatar    ImageID
	CreatedAt time.Time
}

// UserCreate carries the fields of a new user. Password is hashed with a
// random salt before storage.
type UserCreate struct {
	Username Username
	Password string
	Admin    bool
	Avatar   ImageID
}

// UserUpdate applies three-valued field updates. Username is immutable.
type UserUpdate struct {
	Password ValueUpdate[string]
	Admin    ValueUpdate[bool]
	Avatar   ValueUpdate[ImageID]
}

const userColumns = "id, username, admin, avatar, created_at"

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var (
		user     User
		id       int64
		username string
		avatar   sql.NullInt64
		created  int64
	)
	err := row.Scan(&id, &username, &user.Admin, &avatar, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, shared.NotFoundf("user")
	}
	if err != nil {
		return User{}, shared.Internalf("failed to scan user: %v", err)
	}
	user.ID = UserIDFromDB(id)
	user.Username = Username(username)
	if avatar.Valid {
		user.Avatar = ImageIDFromDB(avatar.Int64)
	}
	user.CreatedAt = time.Unix(created, 0)
	return user, nil
}

func getUserTx(ctx context.Context, q querier, id UserID) (User, error) {
	row := q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM user WHERE id = ?", id.DB())
	return scanUser(row)
}

// ListUsers returns users ordered by id.
func (c *Catalog) ListUsers(ctx context.Context, params ListParams) ([]User, error) {
	offset, limit := params.offsetLimit()
	rows, err := c.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM user ORDER BY id ASC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, shared.Internalf("failed to list users: %v", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// GetUser returns the user with the given id.
func (c *Catalog) GetUser(ctx context.Context, id UserID) (User, error) {
	return getUserTx(ctx, c.db, id)
}

// GetUserByUsername returns the user with the given username.
func (c *Catalog) GetUserByUsername(ctx context.Context, username Username) (User, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM user WHERE username = ?", username.String())
	return scanUser(row)
}

// CreateUser hashes the password and inserts the account.
func (c *Catalog) CreateUser(ctx context.Context, create UserCreate) (User, error) {
	if _, err := ParseUsername(create.Username.String()); err != nil {
		return User{}, err
	}
	if create.Password == "" {
		return User{}, shared.Invalidf("password is empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(create.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, shared.Internalf("failed to hash password: %v", err)
	}

	res, err := c.db.ExecContext(ctx,
		"INSERT INTO user (username, password_hash, admin, avatar) VALUES (?, ?, ?, ?)",
		create.Username.String(), string(hash), create.Admin,
		nullID(create.Avatar.DB(), !create.Avatar.IsZero()))
	if err != nil {
		return User{}, shared.Invalidf("failed to create user %q: %v", create.Username, err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return User{}, shared.Internalf("failed to read user id: %v", err)
	}
	return c.GetUser(ctx, UserIDFromDB(rowID))
}

// UpdateUser applies the update and returns the post-update user.
func (c *Catalog) UpdateUser(ctx context.Context, id UserID, update UserUpdate) (User, error) {
	var user User
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUserTx(ctx, tx, id); err != nil {
			return err
		}
		if password, ok := update.Password.Get(); ok {
			if password == "" {
				return shared.Invalidf("password is empty")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return shared.Internalf("failed to hash password: %v", err)
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE user SET password_hash = ? WHERE id = ?", string(hash), id.DB()); err != nil {
				return shared.Internalf("failed to update password: %v", err)
			}
		} else if update.Password.IsUnset() {
			return shared.Invalidf("cannot unset password on user update")
		}
		if err := valueUpdateBool(ctx, tx, "user", "admin", id.DB(), update.Admin); err != nil {
			return err
		}
		if err := valueUpdateIDNullable(ctx, tx, "user", "avatar", id.DB(), mapIDUpdate(update.Avatar)); err != nil {
			return err
		}
		var err error
		user, err = getUserTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// DeleteUser removes the account, cascading playlists, scrobbles,
// favorites, pins, user-scoped properties and subscriptions. Any live
// sessions for the account are revoked.
func (c *Catalog) DeleteUser(ctx context.Context, id UserID) error {
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUserTx(ctx, tx, id); err != nil {
			return err
		}
		playlistIDs, err := collectIDs(ctx, tx, "SELECT id FROM playlist WHERE owner = ?", id.DB())
		if err != nil {
			return err
		}
		removed := make([]ID, 0, len(playlistIDs)+1)
		for _, row := range playlistIDs {
			removed = append(removed, PlaylistIDFromDB(row).ID())
		}
		removed = append(removed, id.ID())

		if _, err := tx.ExecContext(ctx, "DELETE FROM user WHERE id = ?", id.DB()); err != nil {
			return shared.Internalf("failed to delete user: %v", err)
		}
		return clearScopedRows(ctx, tx, removed)
	})
	if err != nil {
		return err
	}

	c.sessionsMu.Lock()
	for token, user := range c.sessions {
		if user == id {
			delete(c.sessions, token)
		}
	}
	c.sessionsMu.Unlock()
	return nil
}

// Authenticate checks a username/password pair and returns the matching
// user id. Any failure is reported as unauthorized.
func (c *Catalog) Authenticate(ctx context.Context, username Username, password string) (UserID, error) {
	var (
		rowID int64
		hash  string
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT id, password_hash FROM user WHERE username = ?", username.String()).Scan(&rowID, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, shared.Unauthorizedf("invalid credentials")
	}
	if err != nil {
		return 0, shared.Internalf("failed to query user: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return 0, shared.Unauthorizedf("invalid credentials")
	}
	return UserIDFromDB(rowID), nil
}

// Login authenticates and allocates an opaque session token. Tokens live
// in process memory and do not survive restart.
func (c *Catalog) Login(ctx context.Context, username Username, password string) (string, UserID, error) {
	id, err := c.Authenticate(ctx, username, password)
	if err != nil {
		return "", 0, err
	}

	token := shared.GenerateToken()
	c.sessionsMu.Lock()
	c.sessions[token] = id
	c.sessionsMu.Unlock()
	return token, id, nil
}

// Logout revokes a session token. Unknown tokens are ignored.
func (c *Catalog) Logout(token string) {
	c.sessionsMu.Lock()
	delete(c.sessions, token)
	c.sessionsMu.Unlock()
}

// ValidateToken resolves a session token to its user id.
func (c *Catalog) ValidateToken(token string) (UserID, error) {
	c.sessionsMu.Lock()
	id, ok := c.sessions[token]
	c.sessionsMu.Unlock()
	if !ok {
		return 0, shared.Unauthorizedf("invalid token")
	}
	return id, nil
}
