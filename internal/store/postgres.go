package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"invoice-agent/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Postgres is the PostgreSQL-backed core.Gateway. Every method issues exactly one statement.
type Postgres struct {
	q   Querier
	now func() time.Time
}

var _ core.Gateway = (*Postgres)(nil)

// NewPostgres constructs a Gateway over q.
func NewPostgres(q Querier) *Postgres {
	return &Postgres{q: q, now: time.Now}
}

// mapErr translates driver errors into domain sentinels.
func mapErr(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%s: %w", what, core.ErrDuplicateNumber)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// where accumulates positional predicates.
type where struct {
	clauses []string
	args    []any
}

// add appends clause with every "?" bound to arg.
func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(w.args))))
}

func (w *where) sql() string {
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *where) limit(n int) string {
	if n <= 0 {
		return ""
	}
	w.args = append(w.args, n)
	return " LIMIT $" + strconv.Itoa(len(w.args))
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// ── Users ────────────────────────────────────────────────────────────────────

func (s *Postgres) GetUser(ctx context.Context, userID string) (*core.User, error) {
	u := &core.User{}
	err := s.q.QueryRow(ctx, `
		SELECT id, email, plan, locale, timezone, currency
		FROM users
		WHERE id = $1`,
		userID,
	).Scan(&u.ID, &u.Email, &u.Plan, &u.Locale, &u.Timezone, &u.Currency)
	if err != nil {
		return nil, mapErr(err, "user %q", userID)
	}
	return u, nil
}

// ── Clients ──────────────────────────────────────────────────────────────────

const clientColumns = `id, user_id, name, email, phone, address, tax_number, created_at, updated_at`

func scanClient(row scanner) (*core.Client, error) {
	c := &core.Client{}
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.TaxNumber, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Postgres) FindClients(ctx context.Context, f core.ClientFilter) ([]core.Client, error) {
	w := &where{}
	w.add("user_id = ?", f.UserID)
	if f.NameEquals != "" {
		w.add("lower(name) = lower(?)", strings.TrimSpace(f.NameEquals))
	}
	if f.Query != "" {
		w.add("(lower(name) LIKE ? OR lower(email) LIKE ?)", "%"+strings.ToLower(f.Query)+"%")
	}
	sql := `SELECT ` + clientColumns + ` FROM clients` + w.sql() + ` ORDER BY created_at DESC`
	sql += w.limit(f.Limit)

	rows, err := s.q.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, fmt.Errorf("find clients: %w", err)
	}
	defer rows.Close()

	var clients []core.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

func (s *Postgres) GetClient(ctx context.Context, userID, clientID string) (*core.Client, error) {
	c, err := scanClient(s.q.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE user_id = $1 AND id = $2`,
		userID, clientID,
	))
	if err != nil {
		return nil, mapErr(err, "client %s", clientID)
	}
	return c, nil
}

func (s *Postgres) InsertClient(ctx context.Context, c *core.Client) error {
	c.ID = newID(c.ID)
	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := s.q.Exec(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.UserID, c.Name, c.Email, c.Phone, c.Address, c.TaxNumber, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return mapErr(err, "insert client %q", c.Name)
	}
	return nil
}

func (s *Postgres) UpdateClient(ctx context.Context, c *core.Client) error {
	c.UpdatedAt = s.now().UTC()
	tag, err := s.q.Exec(ctx, `
		UPDATE clients
		SET name = $3, email = $4, phone = $5, address = $6, tax_number = $7, updated_at = $8
		WHERE user_id = $1 AND id = $2`,
		c.UserID, c.ID, c.Name, c.Email, c.Phone, c.Address, c.TaxNumber, c.UpdatedAt,
	)
	if err != nil {
		return mapErr(err, "update client %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update client %s: %w", c.ID, core.ErrNotFound)
	}
	return nil
}

// ── Invoices ─────────────────────────────────────────────────────────────────

const invoiceColumns = `id, user_id, client_id, number, status, invoice_date, due_date, currency, notes,
	subtotal, discount_type, discount_value, discount_amount, tax_percentage, tax_amount, total,
	paid_amount, payment_date, payment_notes, stripe_active, paypal_active, bank_transfer_active,
	design, accent_color, created_at, updated_at`

func scanInvoice(row scanner) (*core.Invoice, error) {
	inv := &core.Invoice{}
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.ClientID, &inv.Number, &inv.Status, &inv.InvoiceDate, &inv.DueDate,
		&inv.Currency, &inv.Notes,
		&inv.Subtotal, &inv.DiscountType, &inv.DiscountValue, &inv.DiscountAmount,
		&inv.TaxPercentage, &inv.TaxAmount, &inv.Total,
		&inv.PaidAmount, &inv.PaymentDate, &inv.PaymentNotes,
		&inv.StripeActive, &inv.PayPalActive, &inv.BankTransferActive,
		&inv.Design, &inv.AccentColor, &inv.CreatedAt, &inv.UpdatedAt,
	)
	return inv, err
}

func (s *Postgres) FindInvoices(ctx context.Context, f core.InvoiceFilter) ([]core.Invoice, error) {
	w := &where{}
	w.add("user_id = ?", f.UserID)
	if f.Number != "" {
		w.add("upper(number) = upper(?)", strings.TrimSpace(f.Number))
	}
	if f.ClientID != "" {
		w.add("client_id = ?", f.ClientID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		w.add("status = ANY(?)", statuses)
	}
	if f.DueBefore != nil {
		w.add("due_date < ?", *f.DueBefore)
	}
	sql := `SELECT ` + invoiceColumns + ` FROM invoices` + w.sql() + ` ORDER BY created_at DESC`
	sql += w.limit(f.Limit)

	rows, err := s.q.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, fmt.Errorf("find invoices: %w", err)
	}
	defer rows.Close()

	var invoices []core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (s *Postgres) GetInvoice(ctx context.Context, userID, invoiceID string) (*core.Invoice, error) {
	inv, err := scanInvoice(s.q.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE user_id = $1 AND id = $2`,
		userID, invoiceID,
	))
	if err != nil {
		return nil, mapErr(err, "invoice %s", invoiceID)
	}
	return inv, nil
}

func (s *Postgres) InsertInvoice(ctx context.Context, inv *core.Invoice) error {
	inv.ID = newID(inv.ID)
	now := s.now().UTC()
	inv.CreatedAt, inv.UpdatedAt = now, now
	_, err := s.q.Exec(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`,
		inv.ID, inv.UserID, inv.ClientID, inv.Number, string(inv.Status), inv.InvoiceDate, inv.DueDate,
		inv.Currency, inv.Notes,
		inv.Subtotal, string(inv.DiscountType), inv.DiscountValue, inv.DiscountAmount,
		inv.TaxPercentage, inv.TaxAmount, inv.Total,
		inv.PaidAmount, inv.PaymentDate, inv.PaymentNotes,
		inv.StripeActive, inv.PayPalActive, inv.BankTransferActive,
		inv.Design, inv.AccentColor, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return mapErr(err, "insert invoice %s", inv.Number)
	}
	return nil
}

func (s *Postgres) UpdateInvoice(ctx context.Context, inv *core.Invoice) error {
	inv.UpdatedAt = s.now().UTC()
	tag, err := s.q.Exec(ctx, `
		UPDATE invoices
		SET client_id = $3, number = $4, status = $5, invoice_date = $6, due_date = $7, currency = $8, notes = $9,
		    subtotal = $10, discount_type = $11, discount_value = $12, discount_amount = $13,
		    tax_percentage = $14, tax_amount = $15, total = $16,
		    paid_amount = $17, payment_date = $18, payment_notes = $19,
		    stripe_active = $20, paypal_active = $21, bank_transfer_active = $22,
		    design = $23, accent_color = $24, updated_at = $25
		WHERE user_id = $1 AND id = $2`,
		inv.UserID, inv.ID, inv.ClientID, inv.Number, string(inv.Status), inv.InvoiceDate, inv.DueDate,
		inv.Currency, inv.Notes,
		inv.Subtotal, string(inv.DiscountType), inv.DiscountValue, inv.DiscountAmount,
		inv.TaxPercentage, inv.TaxAmount, inv.Total,
		inv.PaidAmount, inv.PaymentDate, inv.PaymentNotes,
		inv.StripeActive, inv.PayPalActive, inv.BankTransferActive,
		inv.Design, inv.AccentColor, inv.UpdatedAt,
	)
	if err != nil {
		return mapErr(err, "update invoice %s", inv.Number)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update invoice %s: %w", inv.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Postgres) DeleteInvoice(ctx context.Context, userID, invoiceID string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM invoices WHERE user_id = $1 AND id = $2`, userID, invoiceID)
	if err != nil {
		return fmt.Errorf("delete invoice %s: %w", invoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete invoice %s: %w", invoiceID, core.ErrNotFound)
	}
	return nil
}

func (s *Postgres) MarkOverdue(ctx context.Context, today time.Time) (int, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE invoices SET status = 'overdue', updated_at = now()
		WHERE status IN ('sent', 'partial') AND due_date IS NOT NULL AND due_date < $1`,
		today.UTC().Truncate(24*time.Hour))
	if err != nil {
		return 0, fmt.Errorf("mark overdue invoices: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ── Estimates ────────────────────────────────────────────────────────────────

const estimateColumns = `id, user_id, client_id, number, status, estimate_date, valid_until, currency, notes,
	subtotal, discount_type, discount_value, discount_amount, tax_percentage, tax_amount, total,
	converted_invoice_id, created_at, updated_at`

func scanEstimate(row scanner) (*core.Estimate, error) {
	e := &core.Estimate{}
	err := row.Scan(
		&e.ID, &e.UserID, &e.ClientID, &e.Number, &e.Status, &e.EstimateDate, &e.ValidUntil,
		&e.Currency, &e.Notes,
		&e.Subtotal, &e.DiscountType, &e.DiscountValue, &e.DiscountAmount,
		&e.TaxPercentage, &e.TaxAmount, &e.Total,
		&e.ConvertedInvoiceID, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func (s *Postgres) FindEstimates(ctx context.Context, f core.EstimateFilter) ([]core.Estimate, error) {
	w := &where{}
	w.add("user_id = ?", f.UserID)
	if f.Number != "" {
		w.add("upper(number) = upper(?)", strings.TrimSpace(f.Number))
	}
	if f.ClientID != "" {
		w.add("client_id = ?", f.ClientID)
	}
	sql := `SELECT ` + estimateColumns + ` FROM estimates` + w.sql() + ` ORDER BY created_at DESC`
	sql += w.limit(f.Limit)

	rows, err := s.q.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, fmt.Errorf("find estimates: %w", err)
	}
	defer rows.Close()

	var estimates []core.Estimate
	for rows.Next() {
		e, err := scanEstimate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan estimate: %w", err)
		}
		estimates = append(estimates, *e)
	}
	return estimates, rows.Err()
}

func (s *Postgres) GetEstimate(ctx context.Context, userID, estimateID string) (*core.Estimate, error) {
	e, err := scanEstimate(s.q.QueryRow(ctx,
		`SELECT `+estimateColumns+` FROM estimates WHERE user_id = $1 AND id = $2`,
		userID, estimateID,
	))
	if err != nil {
		return nil, mapErr(err, "estimate %s", estimateID)
	}
	return e, nil
}

func (s *Postgres) InsertEstimate(ctx context.Context, e *core.Estimate) error {
	e.ID = newID(e.ID)
	now := s.now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	_, err := s.q.Exec(ctx, `
		INSERT INTO estimates (`+estimateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		e.ID, e.UserID, e.ClientID, e.Number, string(e.Status), e.EstimateDate, e.ValidUntil,
		e.Currency, e.Notes,
		e.Subtotal, string(e.DiscountType), e.DiscountValue, e.DiscountAmount,
		e.TaxPercentage, e.TaxAmount, e.Total,
		e.ConvertedInvoiceID, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return mapErr(err, "insert estimate %s", e.Number)
	}
	return nil
}

func (s *Postgres) UpdateEstimate(ctx context.Context, e *core.Estimate) error {
	e.UpdatedAt = s.now().UTC()
	tag, err := s.q.Exec(ctx, `
		UPDATE estimates
		SET client_id = $3, number = $4, status = $5, estimate_date = $6, valid_until = $7, currency = $8, notes = $9,
		    subtotal = $10, discount_type = $11, discount_value = $12, discount_amount = $13,
		    tax_percentage = $14, tax_amount = $15, total = $16,
		    converted_invoice_id = $17, updated_at = $18
		WHERE user_id = $1 AND id = $2`,
		e.UserID, e.ID, e.ClientID, e.Number, string(e.Status), e.EstimateDate, e.ValidUntil,
		e.Currency, e.Notes,
		e.Subtotal, string(e.DiscountType), e.DiscountValue, e.DiscountAmount,
		e.TaxPercentage, e.TaxAmount, e.Total,
		e.ConvertedInvoiceID, e.UpdatedAt,
	)
	if err != nil {
		return mapErr(err, "update estimate %s", e.Number)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update estimate %s: %w", e.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Postgres) DeleteEstimate(ctx context.Context, userID, estimateID string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM estimates WHERE user_id = $1 AND id = $2`, userID, estimateID)
	if err != nil {
		return fmt.Errorf("delete estimate %s: %w", estimateID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete estimate %s: %w", estimateID, core.ErrNotFound)
	}
	return nil
}

// ── Line items ───────────────────────────────────────────────────────────────

const lineItemColumns = `id, document_kind, document_id, position, name, description,
	quantity, unit_price, discount_type, discount_value, total_price, created_at`

func (s *Postgres) ListLineItems(ctx context.Context, kind core.DocumentKind, documentID string) ([]core.LineItem, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+lineItemColumns+`
		FROM line_items
		WHERE document_kind = $1 AND document_id = $2
		ORDER BY position, created_at`,
		string(kind), documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list line items of %s %s: %w", kind, documentID, err)
	}
	defer rows.Close()

	var items []core.LineItem
	for rows.Next() {
		var it core.LineItem
		if err := rows.Scan(
			&it.ID, &it.DocumentKind, &it.DocumentID, &it.Position, &it.Name, &it.Description,
			&it.Quantity, &it.UnitPrice, &it.DiscountType, &it.DiscountValue, &it.TotalPrice, &it.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Postgres) InsertLineItem(ctx context.Context, it *core.LineItem) error {
	it.ID = newID(it.ID)
	it.CreatedAt = s.now().UTC()
	_, err := s.q.Exec(ctx, `
		INSERT INTO line_items (`+lineItemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		it.ID, string(it.DocumentKind), it.DocumentID, it.Position, it.Name, it.Description,
		it.Quantity, it.UnitPrice, string(it.DiscountType), it.DiscountValue, it.TotalPrice, it.CreatedAt,
	)
	if err != nil {
		return mapErr(err, "insert line item %q", it.Name)
	}
	return nil
}

func (s *Postgres) UpdateLineItem(ctx context.Context, it *core.LineItem) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE line_items
		SET position = $2, name = $3, description = $4, quantity = $5, unit_price = $6,
		    discount_type = $7, discount_value = $8, total_price = $9
		WHERE id = $1`,
		it.ID, it.Position, it.Name, it.Description, it.Quantity, it.UnitPrice,
		string(it.DiscountType), it.DiscountValue, it.TotalPrice,
	)
	if err != nil {
		return mapErr(err, "update line item %s", it.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update line item %s: %w", it.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Postgres) DeleteLineItem(ctx context.Context, itemID string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM line_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete line item %s: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete line item %s: %w", itemID, core.ErrNotFound)
	}
	return nil
}

func (s *Postgres) DeleteLineItems(ctx context.Context, kind core.DocumentKind, documentID string) error {
	if _, err := s.q.Exec(ctx,
		`DELETE FROM line_items WHERE document_kind = $1 AND document_id = $2`,
		string(kind), documentID,
	); err != nil {
		return fmt.Errorf("delete line items of %s %s: %w", kind, documentID, err)
	}
	return nil
}

// ── Numbering & usage ────────────────────────────────────────────────────────

func (s *Postgres) ListDocumentNumbers(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.q.Query(ctx, `
		SELECT number FROM invoices WHERE user_id = $1
		UNION ALL
		SELECT number FROM estimates WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list document numbers: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan document number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

func (s *Postgres) CountDocuments(ctx context.Context, userID string) (core.DocumentCounts, error) {
	var c core.DocumentCounts
	err := s.q.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM invoices WHERE user_id = $1),
		       (SELECT count(*) FROM estimates WHERE user_id = $1)`,
		userID,
	).Scan(&c.Invoices, &c.Estimates)
	if err != nil {
		return c, fmt.Errorf("count documents: %w", err)
	}
	return c, nil
}

// ── Settings ─────────────────────────────────────────────────────────────────

func (s *Postgres) GetPaymentOptions(ctx context.Context, userID string) (*core.PaymentOptions, error) {
	po := &core.PaymentOptions{}
	err := s.q.QueryRow(ctx, `
		SELECT user_id, stripe_enabled, stripe_account_id, paypal_enabled, paypal_email,
		       bank_transfer_enabled, bank_details
		FROM payment_options
		WHERE user_id = $1`,
		userID,
	).Scan(&po.UserID, &po.StripeEnabled, &po.StripeAccountID, &po.PayPalEnabled, &po.PayPalEmail,
		&po.BankTransferEnabled, &po.BankDetails)
	if err != nil {
		return nil, mapErr(err, "payment options of %s", userID)
	}
	return po, nil
}

func (s *Postgres) UpsertPaymentOptions(ctx context.Context, po *core.PaymentOptions) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO payment_options (user_id, stripe_enabled, stripe_account_id, paypal_enabled, paypal_email,
		                             bank_transfer_enabled, bank_details, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE
		SET stripe_enabled = EXCLUDED.stripe_enabled, stripe_account_id = EXCLUDED.stripe_account_id,
		    paypal_enabled = EXCLUDED.paypal_enabled, paypal_email = EXCLUDED.paypal_email,
		    bank_transfer_enabled = EXCLUDED.bank_transfer_enabled, bank_details = EXCLUDED.bank_details,
		    updated_at = EXCLUDED.updated_at`,
		po.UserID, po.StripeEnabled, po.StripeAccountID, po.PayPalEnabled, po.PayPalEmail,
		po.BankTransferEnabled, po.BankDetails, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert payment options of %s: %w", po.UserID, err)
	}
	return nil
}

func (s *Postgres) GetBusinessSettings(ctx context.Context, userID string) (*core.BusinessSettings, error) {
	bs := &core.BusinessSettings{}
	err := s.q.QueryRow(ctx, `
		SELECT user_id, business_name, email, phone, address, currency, default_tax_rate, tax_name,
		       invoice_prefix, estimate_prefix, number_padding
		FROM business_settings
		WHERE user_id = $1`,
		userID,
	).Scan(&bs.UserID, &bs.BusinessName, &bs.Email, &bs.Phone, &bs.Address, &bs.Currency,
		&bs.DefaultTaxRate, &bs.TaxName, &bs.InvoicePrefix, &bs.EstimatePrefix, &bs.NumberPadding)
	if err != nil {
		return nil, mapErr(err, "business settings of %s", userID)
	}
	return bs, nil
}

func (s *Postgres) UpsertBusinessSettings(ctx context.Context, bs *core.BusinessSettings) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO business_settings (user_id, business_name, email, phone, address, currency, default_tax_rate,
		                               tax_name, invoice_prefix, estimate_prefix, number_padding, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE
		SET business_name = EXCLUDED.business_name, email = EXCLUDED.email, phone = EXCLUDED.phone,
		    address = EXCLUDED.address, currency = EXCLUDED.currency, default_tax_rate = EXCLUDED.default_tax_rate,
		    tax_name = EXCLUDED.tax_name, invoice_prefix = EXCLUDED.invoice_prefix,
		    estimate_prefix = EXCLUDED.estimate_prefix, number_padding = EXCLUDED.number_padding,
		    updated_at = EXCLUDED.updated_at`,
		bs.UserID, bs.BusinessName, bs.Email, bs.Phone, bs.Address, bs.Currency, bs.DefaultTaxRate,
		bs.TaxName, bs.InvoicePrefix, bs.EstimatePrefix, bs.NumberPadding, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert business settings of %s: %w", bs.UserID, err)
	}
	return nil
}
