package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordermgmt/ordercore/internal/domain"
	"github.com/ordermgmt/ordercore/internal/port"
)

type customerRepository struct {
	db querier
}

func NewCustomer(pool *pgxpool.Pool) port.CustomerRepository {
	return &customerRepository{db: pool}
}

func NewCustomerWithTx(tx pgx.Tx) port.CustomerRepository {
	return &customerRepository{db: tx}
}

func (r *customerRepository) GetCustomer(ctx context.Context, customerID uuid.UUID) (domain.Customer, error) {
	var c domain.Customer

	var addr [7]*string
	err := r.db.QueryRow(ctx,
		`SELECT id, name, email, street, number, complement, neighborhood, city, state, zip_code
		 FROM customers WHERE id = $1`, customerID).
		Scan(&c.ID, &c.Name, &c.Email,
			&addr[0], &addr[1], &addr[2], &addr[3], &addr[4], &addr[5], &addr[6])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, fmt.Errorf("select customer: %w", domain.ErrCustomerNotFound)
		}
		return c, fmt.Errorf("select customer: %w", err)
	}

	c.Address = mapAddress(addr)
	return c, nil
}

func (r *customerRepository) InsertCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	var c domain.Customer

	addr := addressFields(customer.Address)

	err := r.db.QueryRow(ctx,
		`INSERT INTO customers (name, email, street, number, complement, neighborhood, city, state, zip_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		customer.Name, customer.Email,
		addr[0], addr[1], addr[2], addr[3], addr[4], addr[5], addr[6]).
		Scan(&customer.ID)
	if err != nil {
		if isUniqueViolation(err, "customers_email_key") {
			return c, fmt.Errorf("insert customer: duplicate email %q", customer.Email)
		}
		return c, fmt.Errorf("insert customer: %w", err)
	}

	return customer, nil
}
