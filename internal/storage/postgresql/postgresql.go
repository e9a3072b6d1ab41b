// Package postgresql — драйвер хранилища подписчиков поверх локального PostgreSQL.
// Используется для разработки без размещённого сервиса. Токен доступа игнорируется.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // драйвер pgx для database/sql

	"github.com/magabrotheeeer/subscriber-desk/internal/metrics"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
)

const service = "record_store_pg"

// Storage хранит подписчиков в таблице subscribers.
type Storage struct {
	DB *sql.DB
}

// New открывает соединение и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.postgresql.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Storage{DB: db}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

func (s *Storage) Insert(ctx context.Context, _ string, sub models.Subscriber) (err error) {
	const op = "storage.postgresql.Insert"
	start := time.Now()
	defer func() { metrics.ObserveRemote(service, op, start, err) }()

	if _, err := uuid.Parse(sub.UserID); err != nil {
		return &models.DataError{Op: op, Err: fmt.Errorf("invalid user id: %w", err)}
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO subscribers (
			user_id,
			first_name,
			last_name,
			phone,
			amount,
			start_date,
			end_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.UserID,
		sub.FirstName,
		sub.LastName,
		sub.Phone,
		sub.Amount,
		sub.StartDate.Time,
		sub.EndDate.Time,
	)
	if err != nil {
		return &models.DataError{Op: op, Err: err}
	}
	return nil
}

func (s *Storage) List(ctx context.Context, _ string) (res []models.Subscriber, err error) {
	const op = "storage.postgresql.List"
	start := time.Now()
	defer func() { metrics.ObserveRemote(service, op, start, err) }()

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_id, first_name, last_name, phone, amount, start_date, end_date, created_at
		FROM subscribers
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, &models.DataError{Op: op, Err: err}
	}
	defer func() {
		_ = rows.Close()
	}()

	res = []models.Subscriber{}
	for rows.Next() {
		var sub models.Subscriber
		if err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.FirstName,
			&sub.LastName,
			&sub.Phone,
			&sub.Amount,
			&sub.StartDate,
			&sub.EndDate,
			&sub.CreatedAt,
		); err != nil {
			return nil, &models.DataError{Op: op, Err: err}
		}
		res = append(res, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.DataError{Op: op, Err: err}
	}
	return res, nil
}

// Delete удаляет запись по ID. Отсутствующая запись ошибкой не считается.
func (s *Storage) Delete(ctx context.Context, _ string, id string) (err error) {
	const op = "storage.postgresql.Delete"
	start := time.Now()
	defer func() { metrics.ObserveRemote(service, op, start, err) }()

	if _, err := uuid.Parse(id); err != nil {
		return &models.DataError{Op: op, Err: fmt.Errorf("invalid id %q: %w", id, err)}
	}
	if _, err := s.DB.ExecContext(ctx, "DELETE FROM subscribers WHERE id = $1", id); err != nil {
		return &models.DataError{Op: op, Err: err}
	}
	return nil
}
