package billing

import (
	"context"
	"database/sql"
	"errors"

	"societyos.org/internal/ids"
)

// PGStore implements Store using PostgreSQL. The (charge_id, member_id)
// unique constraint on obligations backs the idempotent fan-out.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateCharge(ctx context.Context, c *Charge) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into charges(id, society_id, title, issue_date, due_date, amount, description, created_by)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.SocietyID, c.Title, c.IssueDate, c.DueDate, c.Amount, c.Description, c.CreatedBy,
	)
	return err
}

func (s *PGStore) FindCharge(ctx context.Context, id string) (*Charge, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, society_id, title, issue_date, due_date, amount, description, created_by, created_at
		 from charges where id=$1`, id)
	return scanCharge(row)
}

func scanCharge(row *sql.Row) (*Charge, error) {
	var c Charge
	err := row.Scan(&c.ID, &c.SocietyID, &c.Title, &c.IssueDate, &c.DueDate,
		&c.Amount, &c.Description, &c.CreatedBy, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PGStore) ChargesByCreator(ctx context.Context, creatorID string) ([]Charge, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, society_id, title, issue_date, due_date, amount, description, created_by, created_at
		 from charges where created_by=$1 order by created_at desc`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Charge
	for rows.Next() {
		var c Charge
		if err := rows.Scan(&c.ID, &c.SocietyID, &c.Title, &c.IssueDate, &c.DueDate,
			&c.Amount, &c.Description, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) EnsureObligation(ctx context.Context, o *Obligation) error {
	if o.ID == "" {
		o.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into obligations(id, charge_id, member_id, status)
		 values($1,$2,$3,$4)
		 on conflict (charge_id, member_id) do nothing`,
		o.ID, o.ChargeID, o.MemberID, o.Status,
	)
	return err
}

func (s *PGStore) FindObligation(ctx context.Context, id string) (*Obligation, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, charge_id, member_id, status, amount_paid, paid_at, external_payment_ref, created_at
		 from obligations where id=$1`, id)
	return scanObligation(row)
}

func scanObligation(row *sql.Row) (*Obligation, error) {
	var (
		o      Obligation
		paid   sql.NullInt64
		paidAt sql.NullTime
		ref    sql.NullString
	)
	err := row.Scan(&o.ID, &o.ChargeID, &o.MemberID, &o.Status, &paid, &paidAt, &ref, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.AmountPaid = paid.Int64
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	o.ExternalPaymentRef = ref.String
	return &o, nil
}

func (s *PGStore) ObligationsByMember(ctx context.Context, memberID string) ([]MemberSettlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`select o.id, c.id, c.title, c.amount, c.due_date, c.issue_date, c.description,
		        o.status, o.paid_at, o.amount_paid
		 from obligations o
		 join charges c on c.id = o.charge_id
		 where o.member_id=$1
		 order by o.created_at desc, o.id desc`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MemberSettlement
	for rows.Next() {
		var (
			m      MemberSettlement
			paidAt sql.NullTime
			paid   sql.NullInt64
		)
		if err := rows.Scan(&m.ObligationID, &m.ChargeID, &m.Title, &m.Amount,
			&m.DueDate, &m.IssueDate, &m.Description, &m.Status, &paidAt, &paid); err != nil {
			return nil, err
		}
		if paidAt.Valid {
			t := paidAt.Time
			m.PaidAt = &t
		}
		m.AmountPaid = paid.Int64
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PGStore) ObligationsByCharge(ctx context.Context, chargeID string, status ObligationStatus) ([]Obligation, error) {
	if _, err := s.FindCharge(ctx, chargeID); err != nil {
		return nil, err
	}
	query := `select id, charge_id, member_id, status, amount_paid, paid_at, external_payment_ref, created_at
	          from obligations where charge_id=$1`
	args := []any{chargeID}
	if status != "" {
		query += ` and status=$2`
		args = append(args, status)
	}
	query += ` order by id asc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Obligation
	for rows.Next() {
		var (
			o      Obligation
			paid   sql.NullInt64
			paidAt sql.NullTime
			ref    sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.ChargeID, &o.MemberID, &o.Status, &paid, &paidAt, &ref, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.AmountPaid = paid.Int64
		if paidAt.Valid {
			t := paidAt.Time
			o.PaidAt = &t
		}
		o.ExternalPaymentRef = ref.String
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PGStore) SettleObligation(ctx context.Context, id string, amountPaid int64, externalRef string) (*Obligation, error) {
	// Guarded update: the status predicate makes pending->paid atomic, a
	// concurrent settle of the same obligation affects zero rows.
	res, err := s.db.ExecContext(ctx,
		`update obligations
		 set status='paid', amount_paid=$2, paid_at=now(), external_payment_ref=$3
		 where id=$1 and status='pending'`,
		id, amountPaid, externalRef,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		existing, ferr := s.FindObligation(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		if existing.Status != StatusPending {
			return nil, ErrAlreadyPaid
		}
		return nil, ErrNotFound
	}
	return s.FindObligation(ctx, id)
}
