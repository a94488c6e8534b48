package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/V4T54L/tenancy-engine/internal/domain"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const leaseColumns = `id, housing_unit_id, status, lease_type, signature_date, start_date,
	duration_months, notice_period_months, initial_rent, initial_charges, charges_type,
	charges_description, base_index_value, base_index_month, indexation_notice_days,
	indexation_anniversary_month, details, version, created_at, updated_at`

const (
	uniqueViolation = "23505"
	openLeaseIndex  = "leases_one_open_per_unit"
)

// details holds the metadata that is only ever read back as a whole.
type details struct {
	Registration domain.Registration `json:"registration"`
	Deposit      domain.Deposit      `json:"deposit"`
	Insurance    domain.Insurance    `json:"insurance"`
}

// LeaseRepository implements domain.LeaseRepository on PostgreSQL. The lease
// row, its roster and its ledger are written in one transaction.
type LeaseRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLeaseRepository creates a new PostgreSQL lease repository.
func NewLeaseRepository(db *sql.DB, logger *slog.Logger) *LeaseRepository {
	return &LeaseRepository{db: db, logger: logger}
}

func (r *LeaseRepository) Create(ctx context.Context, l *domain.Lease) error {
	det, err := json.Marshal(details{l.Registration, l.Deposit, l.Insurance})
	if err != nil {
		return fmt.Errorf("encode lease details: %w", err)
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	_, err = txn.ExecContext(ctx, `
		INSERT INTO leases (`+leaseColumns+`, end_date, current_rent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 1, $18, $19, $20, $21)`,
		l.ID, l.HousingUnitID, l.Status, l.Type, l.SignatureDate, l.StartDate,
		l.DurationMonths, l.NoticePeriodMonths, l.InitialRent, l.InitialCharges, l.ChargesType,
		l.ChargesDescription, nullDecimal(l.BaseIndexValue), l.BaseIndexMonth, l.IndexationNoticeDays,
		l.IndexationAnniversaryMonth, string(det), l.CreatedAt, l.UpdatedAt, l.EndDate(), l.CurrentRent(),
	)
	if err != nil {
		return r.mapWriteError(l, err)
	}
	if err := insertTenants(ctx, txn, l); err != nil {
		return err
	}
	if err := insertAdjustments(ctx, txn, l); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	l.Version = 1
	return nil
}

func (r *LeaseRepository) Update(ctx context.Context, l *domain.Lease) error {
	det, err := json.Marshal(details{l.Registration, l.Deposit, l.Insurance})
	if err != nil {
		return fmt.Errorf("encode lease details: %w", err)
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	res, err := txn.ExecContext(ctx, `
		UPDATE leases SET
			housing_unit_id = $3, status = $4, lease_type = $5, signature_date = $6, start_date = $7,
			end_date = $8, duration_months = $9, notice_period_months = $10, initial_rent = $11,
			initial_charges = $12, current_rent = $13, charges_type = $14, charges_description = $15,
			base_index_value = $16, base_index_month = $17, indexation_notice_days = $18,
			indexation_anniversary_month = $19, details = $20, updated_at = $21, version = version + 1
		WHERE id = $1 AND version = $2`,
		l.ID, l.Version, l.HousingUnitID, l.Status, l.Type, l.SignatureDate, l.StartDate,
		l.EndDate(), l.DurationMonths, l.NoticePeriodMonths, l.InitialRent,
		l.InitialCharges, l.CurrentRent(), l.ChargesType, l.ChargesDescription,
		nullDecimal(l.BaseIndexValue), l.BaseIndexMonth, l.IndexationNoticeDays,
		l.IndexationAnniversaryMonth, string(det), l.UpdatedAt,
	)
	if err != nil {
		return r.mapWriteError(l, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := txn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM leases WHERE id = $1)`, l.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.NotFoundError("lease", l.ID)
		}
		return domain.VersionConflictError(l.ID, l.Version)
	}

	if _, err := txn.ExecContext(ctx, `DELETE FROM lease_tenants WHERE lease_id = $1`, l.ID); err != nil {
		return err
	}
	if err := insertTenants(ctx, txn, l); err != nil {
		return err
	}
	if err := insertAdjustments(ctx, txn, l); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	l.Version++
	return nil
}

// mapWriteError turns a hit on the one-open-lease-per-unit index into a
// domain error; everything else is passed through.
func (r *LeaseRepository) mapWriteError(l *domain.Lease, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == openLeaseIndex {
		r.logger.Warn("concurrent write rejected by the database", "lease_id", l.ID, "housing_unit_id", l.HousingUnitID)
		return &domain.Error{Kind: domain.ErrUnitOccupied, Message: fmt.Sprintf("housing unit %s already has an open lease", l.HousingUnitID)}
	}
	return err
}

func insertTenants(ctx context.Context, txn *sql.Tx, l *domain.Lease) error {
	for i, t := range l.Tenants {
		_, err := txn.ExecContext(ctx,
			`INSERT INTO lease_tenants (lease_id, person_id, role, position, added_at) VALUES ($1, $2, $3, $4, $5)`,
			l.ID, t.PersonID, t.Role, i, t.AddedAt)
		if err != nil {
			return fmt.Errorf("insert tenant %s: %w", t.PersonID, err)
		}
	}
	return nil
}

// insertAdjustments relies on the primary key to skip entries that are
// already stored; the ledger is append-only.
func insertAdjustments(ctx context.Context, txn *sql.Tx, l *domain.Lease) error {
	for _, a := range l.Ledger {
		var (
			idxValue decimal.NullDecimal
			idxMonth domain.Date
			sent     domain.Date
			notes    sql.NullString
		)
		if a.Indexation != nil {
			idxValue = decimal.NewNullDecimal(a.Indexation.NewIndexValue)
			idxMonth = a.Indexation.NewIndexMonth
			sent = a.Indexation.NotificationSentDate
			notes = sql.NullString{String: a.Indexation.Notes, Valid: true}
		}
		_, err := txn.ExecContext(ctx, `
			INSERT INTO lease_adjustments (id, lease_id, seq, field, old_value, new_value, reason,
				effective_date, created_at, new_index_value, new_index_month, notification_sent_date, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO NOTHING`,
			a.ID, l.ID, a.Seq, a.Field, a.OldValue, a.NewValue, a.Reason,
			a.EffectiveDate, a.CreatedAt, idxValue, idxMonth, sent, notes)
		if err != nil {
			return fmt.Errorf("insert adjustment %s: %w", a.ID, err)
		}
	}
	return nil
}

func (r *LeaseRepository) Get(ctx context.Context, id string) (*domain.Lease, error) {
	leases, err := r.query(ctx, `WHERE id = $1`, "", id)
	if err != nil {
		return nil, err
	}
	if len(leases) == 0 {
		return nil, domain.NotFoundError("lease", id)
	}
	return leases[0], nil
}

func (r *LeaseRepository) ListByUnit(ctx context.Context, unitID string) ([]*domain.Lease, error) {
	return r.query(ctx, `WHERE housing_unit_id = $1`, orderBy(domain.DefaultSort), unitID)
}

func (r *LeaseRepository) ListOpen(ctx context.Context) ([]*domain.Lease, error) {
	return r.query(ctx, `WHERE status = ANY($1)`, `ORDER BY id`, pq.Array([]string{string(domain.StatusDraft), string(domain.StatusActive)}))
}

func (r *LeaseRepository) ExistsForUnit(ctx context.Context, unitID string, statuses []domain.Status, excludeID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM leases WHERE housing_unit_id = $1 AND status = ANY($2) AND id <> $3)`,
		unitID, pq.Array(statusStrings(statuses)), excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check unit occupancy: %w", err)
	}
	return exists, nil
}

func (r *LeaseRepository) List(ctx context.Context, f domain.LeaseFilter, page domain.PageRequest) ([]*domain.Lease, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leases `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leases: %w", err)
	}
	if total == 0 {
		return []*domain.Lease{}, 0, nil
	}

	tail := fmt.Sprintf("%s LIMIT $%d OFFSET $%d", orderBy(page.Sort), len(args)+1, len(args)+2)
	args = append(args, page.Size, page.Offset())
	leases, err := r.query(ctx, where, tail, args...)
	if err != nil {
		return nil, 0, err
	}
	return leases, total, nil
}

func buildWhere(f domain.LeaseFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", pq.Array(statusStrings(f.Statuses)))
	}
	if f.Type != "" {
		add("lease_type = $%d", string(f.Type))
	}
	if f.HousingUnitID != "" {
		add("housing_unit_id = $%d", f.HousingUnitID)
	}
	if !f.StartFrom.IsZero() {
		add("start_date >= $%d", f.StartFrom)
	}
	if !f.StartTo.IsZero() {
		add("start_date <= $%d", f.StartTo)
	}
	if !f.EndFrom.IsZero() {
		add("end_date >= $%d", f.EndFrom)
	}
	if !f.EndTo.IsZero() {
		add("end_date <= $%d", f.EndTo)
	}
	if f.RentMin != nil {
		add("current_rent >= $%d", *f.RentMin)
	}
	if f.RentMax != nil {
		add("current_rent <= $%d", *f.RentMax)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

var sortColumns = map[domain.SortField]string{
	domain.SortStartDate:   "start_date",
	domain.SortEndDate:     "end_date",
	domain.SortMonthlyRent: "current_rent",
	domain.SortStatus:      "status",
	domain.SortLeaseType:   "lease_type",
	domain.SortCreatedAt:   "created_at",
}

// orderBy matches domain.SortLeases: unset dates sort lowest, ties by id.
func orderBy(s domain.Sort) string {
	col, ok := sortColumns[s.Field]
	if !ok {
		col = "start_date"
	}
	if s.Desc {
		return "ORDER BY " + col + " DESC NULLS LAST, id ASC"
	}
	return "ORDER BY " + col + " ASC NULLS FIRST, id ASC"
}

func (r *LeaseRepository) query(ctx context.Context, where, tail string, args ...any) ([]*domain.Lease, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+leaseColumns+` FROM leases `+where+` `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query leases: %w", err)
	}
	defer rows.Close()

	var (
		leases []*domain.Lease
		byID   = map[string]*domain.Lease{}
		ids    []string
	)
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		leases = append(leases, l)
		byID[l.ID] = l
		ids = append(ids, l.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(leases) == 0 {
		return leases, nil
	}
	if err := r.loadTenants(ctx, ids, byID); err != nil {
		return nil, err
	}
	if err := r.loadLedger(ctx, ids, byID); err != nil {
		return nil, err
	}
	return leases, nil
}

func scanLease(rows *sql.Rows) (*domain.Lease, error) {
	var (
		l         domain.Lease
		baseIndex decimal.NullDecimal
		det       []byte
	)
	err := rows.Scan(&l.ID, &l.HousingUnitID, &l.Status, &l.Type, &l.SignatureDate, &l.StartDate,
		&l.DurationMonths, &l.NoticePeriodMonths, &l.InitialRent, &l.InitialCharges, &l.ChargesType,
		&l.ChargesDescription, &baseIndex, &l.BaseIndexMonth, &l.IndexationNoticeDays,
		&l.IndexationAnniversaryMonth, &det, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan lease: %w", err)
	}
	if baseIndex.Valid {
		l.BaseIndexValue = &baseIndex.Decimal
	}
	var d details
	if len(det) > 0 {
		if err := json.Unmarshal(det, &d); err != nil {
			return nil, fmt.Errorf("decode details of lease %s: %w", l.ID, err)
		}
	}
	l.Registration, l.Deposit, l.Insurance = d.Registration, d.Deposit, d.Insurance
	l.Tenants = []domain.Tenant{}
	return &l, nil
}

func (r *LeaseRepository) loadTenants(ctx context.Context, ids []string, byID map[string]*domain.Lease) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT lease_id, person_id, role, added_at FROM lease_tenants WHERE lease_id = ANY($1) ORDER BY lease_id, position`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query tenants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			leaseID string
			t       domain.Tenant
		)
		if err := rows.Scan(&leaseID, &t.PersonID, &t.Role, &t.AddedAt); err != nil {
			return fmt.Errorf("scan tenant: %w", err)
		}
		if l, ok := byID[leaseID]; ok {
			l.Tenants = append(l.Tenants, t)
		}
	}
	return rows.Err()
}

func (r *LeaseRepository) loadLedger(ctx context.Context, ids []string, byID map[string]*domain.Lease) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT lease_id, id, seq, field, old_value, new_value, reason, effective_date, created_at,
			new_index_value, new_index_month, notification_sent_date, notes
		FROM lease_adjustments WHERE lease_id = ANY($1) ORDER BY lease_id, seq`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			leaseID  string
			a        domain.Adjustment
			idxValue decimal.NullDecimal
			idxMonth domain.Date
			sent     domain.Date
			notes    sql.NullString
		)
		err := rows.Scan(&leaseID, &a.ID, &a.Seq, &a.Field, &a.OldValue, &a.NewValue, &a.Reason,
			&a.EffectiveDate, &a.CreatedAt, &idxValue, &idxMonth, &sent, &notes)
		if err != nil {
			return fmt.Errorf("scan adjustment: %w", err)
		}
		if idxValue.Valid {
			a.Indexation = &domain.Indexation{
				NewIndexValue:        idxValue.Decimal,
				NewIndexMonth:        idxMonth,
				NotificationSentDate: sent,
				Notes:                notes.String,
			}
		}
		if l, ok := byID[leaseID]; ok {
			l.Ledger = append(l.Ledger, a)
		}
	}
	return rows.Err()
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
