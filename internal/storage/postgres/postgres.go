package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aqualedger/internal/domain/models"
	"aqualedger/internal/storage"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type Storage struct {
	db *sql.DB
}

func New(dbUrl string) (*Storage, error) {
	db, err := sql.Open("postgres", dbUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection error %s", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect database error %s", err)
	}

	return &Storage{db: db}, nil
}

func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Stop() error {
	return s.db.Close()
}

func (s *Storage) SaveUser(ctx context.Context, name, email string, passHash []byte) (int, error) {
	const op = "storage.postgres.SaveUser"

	stmt, err := s.db.Prepare("INSERT INTO users (name, email, password_hash) VALUES($1, $2, $3) RETURNING id")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var id int
	err = stmt.QueryRowContext(ctx, name, email, passHash).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrEmailTaken)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.GetUserByEmail"

	stmt, err := s.db.Prepare("SELECT id, name, email, password_hash, COALESCE(payment_ref, ''), created_at FROM users WHERE email = $1")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var user models.User
	err = stmt.QueryRowContext(ctx, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.PaymentRef,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (s *Storage) SaveCatch(ctx context.Context, c models.Catch) (*models.Catch, error) {
	const op = "storage.postgres.SaveCatch"

	stmt, err := s.db.Prepare("INSERT INTO catches (user_id, species, quantity, price, buyer, date, payment_ref) VALUES($1, $2, $3, $4, $5, $6, NULLIF($7, '')) RETURNING id")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	err = stmt.QueryRowContext(ctx, c.UserID, c.Species, c.Quantity, c.Price, c.Buyer, c.Date, c.PaymentRef).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &c, nil
}

// CatchesByUser returns all catches owned by userID, most recent first.
func (s *Storage) CatchesByUser(ctx context.Context, userID int) ([]models.Catch, error) {
	const op = "storage.postgres.CatchesByUser"

	stmt, err := s.db.Prepare("SELECT id, user_id, species, quantity, price, buyer, date, COALESCE(payment_ref, '') FROM catches WHERE user_id = $1 ORDER BY date DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var catches []models.Catch
	for rows.Next() {
		var c models.Catch
		if err := rows.Scan(&c.ID, &c.UserID, &c.Species, &c.Quantity, &c.Price, &c.Buyer, &c.Date, &c.PaymentRef); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		catches = append(catches, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return catches, nil
}

// UpdateCatch applies the non-nil fields of params to the catch owned by
// userID. The lookup is scoped by owner, so a catch belonging to another user
// reports ErrCatchNotFound, same as an absent one.
func (s *Storage) UpdateCatch(ctx context.Context, userID, catchID int, params storage.UpdateCatchParams) (*models.Catch, error) {
	const op = "storage.postgres.UpdateCatch"

	stmt, err := s.db.Prepare(`UPDATE catches
		SET species = COALESCE($1, species),
		    quantity = COALESCE($2, quantity),
		    price = COALESCE($3, price),
		    buyer = COALESCE($4, buyer)
		WHERE id = $5 AND user_id = $6
		RETURNING id, user_id, species, quantity, price, buyer, date, COALESCE(payment_ref, '')`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var c models.Catch
	err = stmt.QueryRowContext(ctx, params.Species, params.Quantity, params.Price, params.Buyer, catchID, userID).
		Scan(&c.ID, &c.UserID, &c.Species, &c.Quantity, &c.Price, &c.Buyer, &c.Date, &c.PaymentRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrCatchNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &c, nil
}

func (s *Storage) DeleteCatch(ctx context.Context, userID, catchID int) error {
	const op = "storage.postgres.DeleteCatch"

	stmt, err := s.db.Prepare("DELETE FROM catches WHERE id = $1 AND user_id = $2")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, catchID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrCatchNotFound)
	}

	return nil
}

// SummarizeCatches sums quantity and price over the day window [dayStart,
// dayEnd) and the week window starting at weekStart. Empty windows sum to
// zero.
func (s *Storage) SummarizeCatches(ctx context.Context, userID int, dayStart, dayEnd, weekStart time.Time) (*models.Summary, error) {
	const op = "storage.postgres.SummarizeCatches"

	var sum models.Summary

	dayStmt, err := s.db.Prepare("SELECT COALESCE(SUM(quantity), 0), COALESCE(SUM(price), 0) FROM catches WHERE user_id = $1 AND date >= $2 AND date < $3")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer dayStmt.Close()

	err = dayStmt.QueryRowContext(ctx, userID, dayStart, dayEnd).Scan(&sum.TodayQty, &sum.TodayEarnings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	weekStmt, err := s.db.Prepare("SELECT COALESCE(SUM(quantity), 0), COALESCE(SUM(price), 0) FROM catches WHERE user_id = $1 AND date >= $2")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer weekStmt.Close()

	err = weekStmt.QueryRowContext(ctx, userID, weekStart).Scan(&sum.WeekQty, &sum.WeekEarnings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &sum, nil
}
