package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/automart/settlement/internal/money"
	"github.com/automart/settlement/internal/storage"
	"github.com/automart/settlement/internal/types/discount"
	"github.com/automart/settlement/internal/types/order"
	"github.com/automart/settlement/internal/types/payment"
	"github.com/automart/settlement/internal/types/refund"
	"github.com/automart/settlement/internal/types/wallet"
)

const uniqueViolation = "23505"

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &PostgresStorage{db: db}

	if err := s.db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStorage) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
            id UUID PRIMARY KEY,
            number TEXT UNIQUE NOT NULL,
            buyer_id UUID NOT NULL,
            seller_id UUID NOT NULL,
            item_kind TEXT NOT NULL,
            item_id UUID NOT NULL,
            item_name TEXT NOT NULL,
            item_description TEXT NOT NULL,
            unit_price NUMERIC(12,2) NOT NULL,
            quantity BIGINT NOT NULL,
            subtotal NUMERIC(12,2) NOT NULL,
            tax NUMERIC(12,2) NOT NULL,
            shipping NUMERIC(12,2) NOT NULL,
            discount NUMERIC(12,2) NOT NULL,
            total NUMERIC(12,2) NOT NULL,
            currency TEXT NOT NULL,
            shipping_line TEXT NOT NULL, shipping_city TEXT NOT NULL,
            shipping_state TEXT NOT NULL, shipping_postal_code TEXT NOT NULL,
            shipping_country TEXT NOT NULL,
            billing_line TEXT NOT NULL, billing_city TEXT NOT NULL,
            billing_state TEXT NOT NULL, billing_postal_code TEXT NOT NULL,
            billing_country TEXT NOT NULL,
            status TEXT NOT NULL,
            tracking_number TEXT NOT NULL DEFAULT '',
            tracking_url TEXT NOT NULL DEFAULT '',
            buyer_notes TEXT NOT NULL DEFAULT '',
            seller_notes TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL,
            confirmed_at TIMESTAMPTZ,
            shipped_at TIMESTAMPTZ,
            delivered_at TIMESTAMPTZ,
            cancelled_at TIMESTAMPTZ,
            refunded_at TIMESTAMPTZ,
            version BIGINT NOT NULL DEFAULT 1
        )`,
		`CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders(buyer_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_seller ON orders(seller_id, status)`,
		`CREATE TABLE IF NOT EXISTS payments (
            id UUID PRIMARY KEY,
            order_id UUID UNIQUE NOT NULL REFERENCES orders(id),
            method TEXT NOT NULL,
            amount NUMERIC(12,2) NOT NULL,
            currency TEXT NOT NULL,
            status TEXT NOT NULL,
            transaction_id TEXT UNIQUE NOT NULL,
            gateway_txn_id TEXT NOT NULL DEFAULT '',
            session_id TEXT NOT NULL DEFAULT '',
            gateway_response JSONB,
            error_message TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL,
            processed_at TIMESTAMPTZ,
            version BIGINT NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS refunds (
            id UUID PRIMARY KEY,
            order_id UUID NOT NULL REFERENCES orders(id),
            payment_id UUID NOT NULL REFERENCES payments(id),
            reason TEXT NOT NULL,
            amount NUMERIC(12,2) NOT NULL,
            currency TEXT NOT NULL,
            percentage INT NOT NULL,
            description TEXT NOT NULL,
            admin_notes TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL,
            requested_at TIMESTAMPTZ NOT NULL,
            approved_at TIMESTAMPTZ,
            completed_at TIMESTAMPTZ,
            version BIGINT NOT NULL DEFAULT 1
        )`,
		`CREATE INDEX IF NOT EXISTS idx_refunds_order ON refunds(order_id, status)`,
		`CREATE TABLE IF NOT EXISTS wallets (
            id UUID PRIMARY KEY,
            user_id UUID UNIQUE NOT NULL,
            balance NUMERIC(12,2) NOT NULL,
            total_earned NUMERIC(12,2) NOT NULL,
            total_spent NUMERIC(12,2) NOT NULL,
            currency TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            version BIGINT NOT NULL DEFAULT 1,
            CHECK (balance >= 0)
        )`,
		`CREATE TABLE IF NOT EXISTS wallet_transactions (
            id UUID PRIMARY KEY,
            wallet_id UUID NOT NULL REFERENCES wallets(id),
            type TEXT NOT NULL,
            amount NUMERIC(12,2) NOT NULL,
            currency TEXT NOT NULL,
            description TEXT NOT NULL,
            order_id UUID,
            payment_id UUID,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_wallet_txns ON wallet_transactions(wallet_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS discounts (
            id UUID PRIMARY KEY,
            code TEXT UNIQUE NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            type TEXT NOT NULL,
            value NUMERIC(10,2) NOT NULL,
            max_discount_amount NUMERIC(12,2),
            min_order_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
            currency TEXT NOT NULL,
            max_uses BIGINT NOT NULL DEFAULT 0,
            max_uses_per_user BIGINT NOT NULL DEFAULT 1,
            status TEXT NOT NULL,
            valid_from TIMESTAMPTZ NOT NULL,
            valid_until TIMESTAMPTZ NOT NULL,
            times_used BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS discount_usages (
            id UUID PRIMARY KEY,
            discount_id UUID NOT NULL REFERENCES discounts(id),
            user_id UUID NOT NULL,
            used_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_discount_usages ON discount_usages(discount_id, user_id)`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Orders

const orderColumns = `id, number, buyer_id, seller_id, item_kind, item_id, item_name,
    item_description, unit_price, quantity, subtotal, tax, shipping, discount, total,
    currency, shipping_line, shipping_city, shipping_state, shipping_postal_code,
    shipping_country, billing_line, billing_city, billing_state, billing_postal_code,
    billing_country, status, tracking_number, tracking_url, buyer_notes, seller_notes,
    created_at, confirmed_at, shipped_at, delivered_at, cancelled_at, refunded_at, version`

func (s *PostgresStorage) CreateOrder(ctx context.Context, o *order.Order) error {
	q := `INSERT INTO orders (` + orderColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
                $21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36,$37,$38)`
	_, err := s.db.ExecContext(ctx, q,
		o.ID, o.Number, o.BuyerID, o.SellerID, o.ItemKind, o.ItemID, o.ItemName,
		o.ItemDescription, o.UnitPrice.Amount, o.Quantity, o.Subtotal.Amount, o.Tax.Amount,
		o.Shipping.Amount, o.Discount.Amount, o.Total.Amount, o.Total.Currency,
		o.ShippingAddress.Line, o.ShippingAddress.City, o.ShippingAddress.State,
		o.ShippingAddress.PostalCode, o.ShippingAddress.Country,
		o.BillingAddress.Line, o.BillingAddress.City, o.BillingAddress.State,
		o.BillingAddress.PostalCode, o.BillingAddress.Country,
		o.Status, o.TrackingNumber, o.TrackingURL, o.BuyerNotes, o.SellerNotes,
		o.CreatedAt, o.ConfirmedAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt,
		o.RefundedAt, o.Version,
	)
	if isUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	var currency string
	err := row.Scan(
		&o.ID, &o.Number, &o.BuyerID, &o.SellerID, &o.ItemKind, &o.ItemID, &o.ItemName,
		&o.ItemDescription, &o.UnitPrice.Amount, &o.Quantity, &o.Subtotal.Amount,
		&o.Tax.Amount, &o.Shipping.Amount, &o.Discount.Amount, &o.Total.Amount, &currency,
		&o.ShippingAddress.Line, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.PostalCode, &o.ShippingAddress.Country,
		&o.BillingAddress.Line, &o.BillingAddress.City, &o.BillingAddress.State,
		&o.BillingAddress.PostalCode, &o.BillingAddress.Country,
		&o.Status, &o.TrackingNumber, &o.TrackingURL, &o.BuyerNotes, &o.SellerNotes,
		&o.CreatedAt, &o.ConfirmedAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
		&o.RefundedAt, &o.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	o.UnitPrice.Currency = currency
	o.Subtotal.Currency = currency
	o.Tax.Currency = currency
	o.Shipping.Currency = currency
	o.Discount.Currency = currency
	o.Total.Currency = currency
	return &o, nil
}

func (s *PostgresStorage) FindOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	return scanOrder(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStorage) FindOrderByNumber(ctx context.Context, number string) (*order.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE number=$1`
	return scanOrder(s.db.QueryRowContext(ctx, q, number))
}

func (s *PostgresStorage) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders
        WHERE buyer_id=$1 OR seller_id=$1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) UpdateOrder(ctx context.Context, o *order.Order) error {
	return updateOrderTx(ctx, s.db, o)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateOrderTx(ctx context.Context, db execer, o *order.Order) error {
	q := `UPDATE orders
        SET status=$1, tracking_number=$2, tracking_url=$3, seller_notes=$4,
            subtotal=$5, tax=$6, shipping=$7, discount=$8, total=$9,
            confirmed_at=$10, shipped_at=$11, delivered_at=$12, cancelled_at=$13,
            refunded_at=$14, version=version+1
        WHERE id=$15 AND version=$16`
	result, err := db.ExecContext(ctx, q,
		o.Status, o.TrackingNumber, o.TrackingURL, o.SellerNotes,
		o.Subtotal.Amount, o.Tax.Amount, o.Shipping.Amount, o.Discount.Amount, o.Total.Amount,
		o.ConfirmedAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt, o.RefundedAt,
		o.ID, o.Version,
	)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return storage.ErrConflict
	}
	o.Version++
	return nil
}

// Payments

const paymentColumns = `id, order_id, method, amount, currency, status, transaction_id,
    gateway_txn_id, session_id, gateway_response, error_message, created_at, processed_at, version`

func (s *PostgresStorage) CreatePayment(ctx context.Context, p *payment.Payment) error {
	q := `INSERT INTO payments (` + paymentColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := s.db.ExecContext(ctx, q,
		p.ID, p.OrderID, p.Method, p.Amount.Amount, p.Amount.Currency, p.Status,
		p.TransactionID, p.GatewayTxnID, p.SessionID, p.GatewayResponse,
		p.ErrorMessage, p.CreatedAt, p.ProcessedAt, p.Version,
	)
	if isUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}

func scanPayment(row rowScanner) (*payment.Payment, error) {
	var p payment.Payment
	var raw []byte
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Method, &p.Amount.Amount, &p.Amount.Currency, &p.Status,
		&p.TransactionID, &p.GatewayTxnID, &p.SessionID, &raw,
		&p.ErrorMessage, &p.CreatedAt, &p.ProcessedAt, &p.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	p.GatewayResponse = raw
	return &p, nil
}

func (s *PostgresStorage) FindPaymentByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	return scanPayment(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStorage) FindPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1`
	return scanPayment(s.db.QueryRowContext(ctx, q, orderID))
}

func (s *PostgresStorage) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	return updatePaymentTx(ctx, s.db, p)
}

func updatePaymentTx(ctx context.Context, db execer, p *payment.Payment) error {
	q := `UPDATE payments
        SET status=$1, gateway_txn_id=$2, session_id=$3, gateway_response=$4,
            error_message=$5, processed_at=$6, version=version+1
        WHERE id=$7 AND version=$8`
	result, err := db.ExecContext(ctx, q,
		p.Status, p.GatewayTxnID, p.SessionID, []byte(p.GatewayResponse),
		p.ErrorMessage, p.ProcessedAt, p.ID, p.Version,
	)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return storage.ErrConflict
	}
	p.Version++
	return nil
}

// Refunds

const refundColumns = `id, order_id, payment_id, reason, amount, currency, percentage,
    description, admin_notes, status, requested_at, approved_at, completed_at, version`

func (s *PostgresStorage) CreateRefund(ctx context.Context, r *refund.Refund) error {
	q := `INSERT INTO refunds (` + refundColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := s.db.ExecContext(ctx, q,
		r.ID, r.OrderID, r.PaymentID, r.Reason, r.Amount.Amount, r.Amount.Currency,
		r.Percentage, r.Description, r.AdminNotes, r.Status,
		r.RequestedAt, r.ApprovedAt, r.CompletedAt, r.Version,
	)
	return err
}

func scanRefund(row rowScanner) (*refund.Refund, error) {
	var r refund.Refund
	err := row.Scan(
		&r.ID, &r.OrderID, &r.PaymentID, &r.Reason, &r.Amount.Amount, &r.Amount.Currency,
		&r.Percentage, &r.Description, &r.AdminNotes, &r.Status,
		&r.RequestedAt, &r.ApprovedAt, &r.CompletedAt, &r.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStorage) FindRefundByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	q := `SELECT ` + refundColumns + ` FROM refunds WHERE id=$1`
	return scanRefund(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStorage) ListRefundsByOrder(ctx context.Context, orderID uuid.UUID) ([]refund.Refund, error) {
	q := `SELECT ` + refundColumns + ` FROM refunds WHERE order_id=$1 ORDER BY requested_at DESC`
	rows, err := s.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []refund.Refund
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) UpdateRefund(ctx context.Context, r *refund.Refund) error {
	return updateRefundTx(ctx, s.db, r)
}

func updateRefundTx(ctx context.Context, db execer, r *refund.Refund) error {
	q := `UPDATE refunds
        SET status=$1, admin_notes=$2, approved_at=$3, completed_at=$4, version=version+1
        WHERE id=$5 AND version=$6`
	result, err := db.ExecContext(ctx, q,
		r.Status, r.AdminNotes, r.ApprovedAt, r.CompletedAt, r.ID, r.Version,
	)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return storage.ErrConflict
	}
	r.Version++
	return nil
}

// Wallets

func (s *PostgresStorage) CreateWallet(ctx context.Context, w *wallet.Wallet) error {
	q := `INSERT INTO wallets (id, user_id, balance, total_earned, total_spent, currency, created_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := s.db.ExecContext(ctx, q,
		w.ID, w.UserID, w.Balance.Amount, w.TotalEarned.Amount, w.TotalSpent.Amount,
		w.Balance.Currency, w.CreatedAt, w.Version,
	)
	if isUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}

func (s *PostgresStorage) FindWalletByUser(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	q := `SELECT id, user_id, balance, total_earned, total_spent, currency, created_at, version
        FROM wallets WHERE user_id=$1`
	var w wallet.Wallet
	var currency string
	err := s.db.QueryRowContext(ctx, q, userID).Scan(
		&w.ID, &w.UserID, &w.Balance.Amount, &w.TotalEarned.Amount, &w.TotalSpent.Amount,
		&currency, &w.CreatedAt, &w.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	w.Balance.Currency = currency
	w.TotalEarned.Currency = currency
	w.TotalSpent.Currency = currency
	return &w, nil
}

func (s *PostgresStorage) ApplyWalletChange(ctx context.Context, w *wallet.Wallet, t *wallet.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := applyWalletChangeTx(ctx, tx, w, t); err != nil {
		return err
	}
	return tx.Commit()
}

func applyWalletChangeTx(ctx context.Context, tx execer, w *wallet.Wallet, t *wallet.Transaction) error {
	q := `UPDATE wallets
        SET balance=$1, total_earned=$2, total_spent=$3, version=version+1
        WHERE id=$4 AND version=$5`
	result, err := tx.ExecContext(ctx, q,
		w.Balance.Amount, w.TotalEarned.Amount, w.TotalSpent.Amount, w.ID, w.Version,
	)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return storage.ErrConflict
	}
	w.Version++

	q = `INSERT INTO wallet_transactions (id, wallet_id, type, amount, currency, description, order_id, payment_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err = tx.ExecContext(ctx, q,
		t.ID, t.WalletID, t.Type, t.Amount.Amount, t.Amount.Currency,
		t.Description, t.OrderID, t.PaymentID, t.CreatedAt,
	)
	return err
}

func (s *PostgresStorage) ListWalletTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]wallet.Transaction, error) {
	q := `SELECT id, wallet_id, type, amount, currency, description, order_id, payment_id, created_at
        FROM wallet_transactions WHERE wallet_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, q, walletID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wallet.Transaction
	for rows.Next() {
		var t wallet.Transaction
		if err := rows.Scan(
			&t.ID, &t.WalletID, &t.Type, &t.Amount.Amount, &t.Amount.Currency,
			&t.Description, &t.OrderID, &t.PaymentID, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Discounts

func (s *PostgresStorage) FindDiscountByCode(ctx context.Context, code string) (*discount.Discount, error) {
	q := `SELECT id, code, description, type, value, max_discount_amount, min_order_amount,
            currency, max_uses, max_uses_per_user, status, valid_from, valid_until,
            times_used, created_at
        FROM discounts WHERE code=$1`
	var d discount.Discount
	var maxAmount sql.NullString
	var currency string
	err := s.db.QueryRowContext(ctx, q, code).Scan(
		&d.ID, &d.Code, &d.Description, &d.Type, &d.Value, &maxAmount, &d.MinOrderAmount.Amount,
		&currency, &d.MaxUses, &d.MaxUsesPerUser, &d.Status, &d.ValidFrom, &d.ValidUntil,
		&d.TimesUsed, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	d.MinOrderAmount.Currency = currency
	if maxAmount.Valid {
		m, err := money.FromString(maxAmount.String, currency)
		if err != nil {
			return nil, err
		}
		d.MaxDiscountAmount = &m
	}
	return &d, nil
}

func (s *PostgresStorage) CountDiscountUsageByUser(ctx context.Context, discountID, userID uuid.UUID) (int64, error) {
	q := `SELECT COUNT(*) FROM discount_usages WHERE discount_id=$1 AND user_id=$2`
	var n int64
	err := s.db.QueryRowContext(ctx, q, discountID, userID).Scan(&n)
	return n, err
}

func (s *PostgresStorage) ApplyDiscountUsage(ctx context.Context, discountID, userID uuid.UUID, maxUsesPerUser int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Locks the discount row, serializing concurrent applies for the code.
	q := `UPDATE discounts SET times_used=times_used+1
        WHERE id=$1 AND (max_uses=0 OR times_used < max_uses)`
	result, err := tx.ExecContext(ctx, q, discountID)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return storage.ErrConflict
	}

	q = `INSERT INTO discount_usages (id, discount_id, user_id, used_at)
        SELECT $1, $2, $3, $4
        WHERE $5 <= 0
           OR (SELECT COUNT(*) FROM discount_usages WHERE discount_id=$2 AND user_id=$3) < $5`
	result, err = tx.ExecContext(ctx, q, uuid.New(), discountID, userID, time.Now().UTC(), maxUsesPerUser)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return storage.ErrConflict
	}
	return tx.Commit()
}

// Composite settlement transactions

func (s *PostgresStorage) Settle(ctx context.Context, o *order.Order, p *payment.Payment, w *wallet.Wallet, t *wallet.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := updatePaymentTx(ctx, tx, p); err != nil {
		return err
	}
	if err := updateOrderTx(ctx, tx, o); err != nil {
		return err
	}
	if err := applyWalletChangeTx(ctx, tx, w, t); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStorage) CompleteRefund(ctx context.Context, r *refund.Refund, o *order.Order, p *payment.Payment, w *wallet.Wallet, t *wallet.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := updateRefundTx(ctx, tx, r); err != nil {
		return err
	}
	if err := updateOrderTx(ctx, tx, o); err != nil {
		return err
	}
	if err := updatePaymentTx(ctx, tx, p); err != nil {
		return err
	}
	if err := applyWalletChangeTx(ctx, tx, w, t); err != nil {
		return err
	}
	return tx.Commit()
}
