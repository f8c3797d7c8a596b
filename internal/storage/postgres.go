package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"planreminder/internal/model"
)

// PostgresStore backs ClientStore with a clients table. Open with the pgx
// stdlib driver: sql.Open("pgx", url).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const clientColumns = `
	id, name, phone, plan_type, value, plan_expiration,
	reminder_time_3days, reminder_time_payment,
	custom_message_3days, custom_message_payment,
	payment_status, created_at
`

func (s *PostgresStore) Clients(ctx context.Context) ([]model.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ClientByID(ctx context.Context, id string) (*model.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE id = $1
	`, id)

	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) UpdateClient(ctx context.Context, c model.Client) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET name = $2,
		    phone = $3,
		    plan_type = $4,
		    value = $5,
		    plan_expiration = $6,
		    reminder_time_3days = $7,
		    reminder_time_payment = $8,
		    custom_message_3days = $9,
		    custom_message_payment = $10,
		    payment_status = $11
		WHERE id = $1
	`,
		c.ID,
		c.Name,
		c.Phone,
		c.PlanType,
		c.Value,
		c.PlanExpiration,
		c.ReminderTime3Days,
		c.ReminderTimePayment,
		c.CustomMessage3Days,
		c.CustomMessagePayment,
		string(c.PaymentStatus),
	)
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

func (s *PostgresStore) InsertClient(ctx context.Context, c model.Client) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		c.ID,
		c.Name,
		c.Phone,
		c.PlanType,
		c.Value,
		c.PlanExpiration,
		c.ReminderTime3Days,
		c.ReminderTimePayment,
		c.CustomMessage3Days,
		c.CustomMessagePayment,
		string(c.PaymentStatus),
		c.CreatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(r rowScanner) (model.Client, error) {
	var (
		c         model.Client
		payment   string
		custom3d  sql.NullString
		customPay sql.NullString
		createdAt sql.NullTime
	)
	err := r.Scan(
		&c.ID,
		&c.Name,
		&c.Phone,
		&c.PlanType,
		&c.Value,
		&c.PlanExpiration,
		&c.ReminderTime3Days,
		&c.ReminderTimePayment,
		&custom3d,
		&customPay,
		&payment,
		&createdAt,
	)
	if err != nil {
		return model.Client{}, err
	}

	c.PaymentStatus = model.PaymentStatus(payment)
	if custom3d.Valid {
		c.CustomMessage3Days = custom3d.String
	}
	if customPay.Valid {
		c.CustomMessagePayment = customPay.String
	}
	if createdAt.Valid {
		c.CreatedAt = createdAt.Time
	} else {
		c.CreatedAt = time.Time{}
	}
	return c, nil
}
