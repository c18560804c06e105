package gateway

import (
	"database/sql"
	"time"

	"reminders/internal/domain"
)

type clientRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Phone     sql.NullString `db:"phone"`
	Email     sql.NullString `db:"email"`
	Password  sql.NullString `db:"password"`
	Address   sql.NullString `db:"address"`
	BirthDate sql.NullString `db:"birth_date"`
	CreatedAt sql.NullTime   `db:"created_at"`
	UpdatedAt sql.NullTime   `db:"updated_at"`
}

func (r clientRow) toDomain(loc *time.Location) (domain.Client, error) {
	client := domain.Client{
		ID:        r.ID,
		Name:      r.Name,
		Phone:     r.Phone.String,
		Email:     r.Email.String,
		Password:  r.Password.String,
		Address:   r.Address.String,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
	if r.BirthDate.Valid && r.BirthDate.String != "" {
		birth, err := parseDay(r.BirthDate.String, loc)
		if err != nil {
			return domain.Client{}, err
		}
		client.BirthDate = &birth
	}
	return client, nil
}

type quoteRow struct {
	ID           string         `db:"id"`
	Number       sql.NullString `db:"number"`
	ClientID     sql.NullString `db:"client_id"`
	Plate        sql.NullString `db:"plate"`
	VehicleModel sql.NullString `db:"vehicle_model"`
	Status       string         `db:"status"`
	CreatedAt    sql.NullTime   `db:"created_at"`
	UpdatedAt    sql.NullTime   `db:"updated_at"`
}

func (r quoteRow) toDomain() domain.Quote {
	return domain.Quote{
		ID:           r.ID,
		Number:       r.Number.String,
		ClientID:     r.ClientID.String,
		Plate:        r.Plate.String,
		VehicleModel: r.VehicleModel.String,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
	}
}

type appointmentRow struct {
	ID           string         `db:"id"`
	ClientID     sql.NullString `db:"client_id"`
	QuoteID      sql.NullString `db:"quote_id"`
	Plate        sql.NullString `db:"plate"`
	VehicleModel sql.NullString `db:"vehicle_model"`
	Date         string         `db:"date"`
	Time         sql.NullString `db:"time"`
	Status       string         `db:"status"`
}

func (r appointmentRow) toDomain(loc *time.Location) (domain.Appointment, error) {
	day, err := parseDay(r.Date, loc)
	if err != nil {
		return domain.Appointment{}, err
	}
	slot := r.Time.String
	if len(slot) > 5 {
		slot = slot[:5]
	}
	return domain.Appointment{
		ID:           r.ID,
		ClientID:     r.ClientID.String,
		QuoteID:      r.QuoteID.String,
		Plate:        r.Plate.String,
		VehicleModel: r.VehicleModel.String,
		Date:         day,
		Time:         slot,
		Status:       r.Status,
	}, nil
}

type templateRow struct {
	ID          string        `db:"id"`
	Title       string        `db:"title"`
	Category    string        `db:"category"`
	Content     string        `db:"content"`
	OrderingKey sql.NullInt64 `db:"ordering_key"`
}

func (r templateRow) toDomain() domain.MessageTemplate {
	return domain.MessageTemplate{
		ID:          r.ID,
		Title:       r.Title,
		Category:    r.Category,
		Content:     r.Content,
		OrderingKey: int(r.OrderingKey.Int64),
	}
}
