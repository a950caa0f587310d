package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type User struct {
	Id           int64
	Name         string
	Username     string
	PasswordHash string
	// DiscordId is empty when no Discord account is linked.
	DiscordId string
	IsAdmin   bool
	HasViewed bool
	// AssignedUserId is zero until the first draw.
	AssignedUserId int64
}

func (u User) HasAssignment() bool { return u.AssignedUserId != 0 }

type NewUser struct {
	Name         string
	Username     string
	PasswordHash string
	DiscordId    string
	IsAdmin      bool
}

type Filter struct {
	// ParticipantsOnly excludes admins.
	ParticipantsOnly bool
}

// Assignment pairs a giver with the participant they were drawn for.
type Assignment struct {
	Giver    string
	Receiver string
}

const userColumns = `id, name, username, password_hash, discord_id, is_admin, has_viewed, assigned_user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	var discordId sql.NullString
	var assigned sql.NullInt64
	err := row.Scan(&u.Id, &u.Name, &u.Username, &u.PasswordHash, &discordId, &u.IsAdmin, &u.HasViewed, &assigned)
	if err != nil {
		return User{}, err
	}
	u.DiscordId = discordId.String
	u.AssignedUserId = assigned.Int64
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) CreateUser(ctx context.Context, nu NewUser) (User, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (name, username, password_hash, discord_id, is_admin) VALUES (?, ?, ?, ?, ?)`,
		nu.Name, nu.Username, nu.PasswordHash, nullString(nu.DiscordId), nu.IsAdmin)
	if err != nil {
		if isUniqueViolation(err) {
			// username and discord_id are the only unique columns
			if _, lookupErr := s.GetUserByUsername(ctx, nu.Username); errors.Is(lookupErr, ErrNotFound) {
				return User{}, fmt.Errorf("%w: %s", ErrDiscordIdTaken, nu.DiscordId)
			}
			return User{}, fmt.Errorf("%w: %s", ErrUsernameTaken, nu.Username)
		}
		return User{}, fmt.Errorf("create user %s: %w", nu.Username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return User{
		Id:           id,
		Name:         nu.Name,
		Username:     nu.Username,
		PasswordHash: nu.PasswordHash,
		DiscordId:    nu.DiscordId,
		IsAdmin:      nu.IsAdmin,
	}, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	return getUser(ctx, s.db, `WHERE id = ?`, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return getUser(ctx, s.db, `WHERE username = ?`, username)
}

func (s *Store) GetUserByDiscordId(ctx context.Context, discordId string) (User, error) {
	if discordId == "" {
		return User{}, ErrNotFound
	}
	return getUser(ctx, s.db, `WHERE discord_id = ?`, discordId)
}

func getUser(ctx context.Context, q queryer, where string, arg any) (User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// ListUsers returns users ordered by id.
func (s *Store) ListUsers(ctx context.Context, f Filter) ([]User, error) {
	return listUsers(ctx, s.db, f)
}

func listUsers(ctx context.Context, q queryer, f Filter) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	if f.ParticipantsOnly {
		query += ` WHERE is_admin = 0`
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	return countAdmins(ctx, s.db)
}

func countAdmins(ctx context.Context, q queryer) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_admin = 1`).Scan(&n)
	return n, err
}

// DeleteUser removes a user. Anyone who was drawn to give to them loses
// their assignment through the foreign key.
func (s *Store) DeleteUser(ctx context.Context, id int64) (User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	u, err := getUser(ctx, tx, `WHERE id = ?`, id)
	if err != nil {
		return User{}, err
	}
	if u.IsAdmin {
		admins, err := countAdmins(ctx, tx)
		if err != nil {
			return User{}, err
		}
		if admins <= 1 {
			return User{}, ErrLastAdmin
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return User{}, fmt.Errorf("delete user %d: %w", id, err)
	}
	return u, tx.Commit()
}

func (s *Store) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	return s.updateOne(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
}

func (s *Store) LinkDiscord(ctx context.Context, id int64, discordId string) error {
	err := s.updateOne(ctx, `UPDATE users SET discord_id = ? WHERE id = ?`, nullString(discordId), id)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDiscordIdTaken, discordId)
	}
	return err
}

// MarkViewed records that the user has seen their assignment. Calling it
// again is a no-op.
func (s *Store) MarkViewed(ctx context.Context, id int64) error {
	return s.updateOne(ctx, `UPDATE users SET has_viewed = 1 WHERE id = ?`, id)
}

func (s *Store) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Assignments lists every participant that has a target, by giver id.
func (s *Store) Assignments(ctx context.Context) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT g.name, r.name
FROM users g
         JOIN users r ON r.id = g.assigned_user_id
WHERE g.is_admin = 0
ORDER BY g.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	a := make([]Assignment, 0)
	for rows.Next() {
		var v Assignment
		if err := rows.Scan(&v.Giver, &v.Receiver); err != nil {
			return nil, err
		}
		a = append(a, v)
	}
	return a, rows.Err()
}
