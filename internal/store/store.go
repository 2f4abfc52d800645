package store

import (
    "context"
    "errors"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgconn"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/shopspring/decimal"
)

const ledgerColumns = "id, barcode, created_at, amount, servo_activated, donor_id, scanner_id"

type Store struct {
    pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
    return &Store{pool: pool}
}

func (s *Store) FindScanner(ctx context.Context, id int64) (Scanner, error) {
    var sc Scanner
    err := s.pool.QueryRow(ctx, "SELECT id FROM scanners WHERE id = $1", id).Scan(&sc.ID)
    if err != nil {
        if errors.Is(err, pgx.ErrNoRows) {
            return Scanner{}, ErrNotFound
        }
        return Scanner{}, err
    }
    return sc, nil
}

func (s *Store) FindPrice(ctx context.Context, barcode string) (Price, error) {
    var p Price
    err := s.pool.QueryRow(ctx, "SELECT barcode, amount FROM prices WHERE barcode = $1", barcode).Scan(
        &p.Barcode,
        &p.Amount,
    )
    if err != nil {
        if errors.Is(err, pgx.ErrNoRows) {
            return Price{}, ErrNotFound
        }
        return Price{}, err
    }
    return p, nil
}

func (s *Store) FindDonor(ctx context.Context, id int64) (Donor, error) {
    return s.findDonor(ctx, "WHERE id = $1", id)
}

func (s *Store) FindDonorByEmail(ctx context.Context, email string) (Donor, error) {
    return s.findDonor(ctx, "WHERE email = $1", email)
}

func (s *Store) findDonor(ctx context.Context, where string, arg any) (Donor, error) {
    var d Donor
    err := s.pool.QueryRow(ctx, `
        SELECT id, full_name, email, password_hash, created_at
        FROM donors
        `+where, arg).Scan(
        &d.ID,
        &d.FullName,
        &d.Email,
        &d.PasswordHash,
        &d.CreatedAt,
    )
    if err != nil {
        if errors.Is(err, pgx.ErrNoRows) {
            return Donor{}, ErrNotFound
        }
        return Donor{}, err
    }
    return d, nil
}

// CreateDonor inserts a donor. The id comes from the identity column so
// concurrent signups never share one.
func (s *Store) CreateDonor(ctx context.Context, input CreateDonorInput) (Donor, error) {
    var d Donor
    err := s.pool.QueryRow(ctx, `
        INSERT INTO donors (full_name, email, password_hash)
        VALUES ($1, $2, $3)
        RETURNING id, full_name, email, password_hash, created_at
    `, input.FullName, input.Email, input.PasswordHash).Scan(
        &d.ID,
        &d.FullName,
        &d.Email,
        &d.PasswordHash,
        &d.CreatedAt,
    )
    if err != nil {
        if isUniqueViolation(err) {
            return Donor{}, ErrEmailExists
        }
        return Donor{}, err
    }
    return d, nil
}

// RecordReturn writes the ledger entry and its audit entry in one
// transaction. The audit entry is linked to the new ledger id.
func (s *Store) RecordReturn(ctx context.Context, entry LedgerEntry, audit AuditEntry) (LedgerEntry, error) {
    tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
    if err != nil {
        return LedgerEntry{}, err
    }
    defer func() {
        _ = tx.Rollback(ctx)
    }()

    created, err := insertLedgerEntry(ctx, tx, entry)
    if err != nil {
        return LedgerEntry{}, err
    }

    audit.LedgerEntryID = &created.ID
    if _, err := insertAuditEntry(ctx, tx, audit); err != nil {
        return LedgerEntry{}, err
    }

    if err := tx.Commit(ctx); err != nil {
        return LedgerEntry{}, err
    }

    return created, nil
}

func (s *Store) AppendAudit(ctx context.Context, audit AuditEntry) (AuditEntry, error) {
    return insertAuditEntry(ctx, s.pool, audit)
}

func (s *Store) GetLedgerEntry(ctx context.Context, id int64) (LedgerEntry, error) {
    e, err := scanLedgerEntry(s.pool.QueryRow(ctx, "SELECT "+ledgerColumns+" FROM ledger_entries WHERE id = $1", id))
    if err != nil {
        if errors.Is(err, pgx.ErrNoRows) {
            return LedgerEntry{}, ErrNotFound
        }
        return LedgerEntry{}, err
    }
    return e, nil
}

// TotalDonated sums every committed ledger entry. It is computed on each call.
func (s *Store) TotalDonated(ctx context.Context) (decimal.Decimal, error) {
    var total decimal.Decimal
    err := s.pool.QueryRow(ctx, "SELECT COALESCE(SUM(amount), 0) FROM ledger_entries").Scan(&total)
    if err != nil {
        return decimal.Zero, err
    }
    return total, nil
}

type querier interface {
    QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertLedgerEntry(ctx context.Context, q querier, entry LedgerEntry) (LedgerEntry, error) {
    return scanLedgerEntry(q.QueryRow(ctx, `
        INSERT INTO ledger_entries (barcode, created_at, amount, servo_activated, donor_id, scanner_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+ledgerColumns,
        entry.Barcode,
        entry.CreatedAt,
        entry.Amount,
        entry.ServoActivated,
        entry.DonorID,
        entry.ScannerID,
    ))
}

func insertAuditEntry(ctx context.Context, q querier, audit AuditEntry) (AuditEntry, error) {
    var a AuditEntry
    var level string
    err := q.QueryRow(ctx, `
        INSERT INTO audit_log (created_at, level, message, exception_detail, ledger_entry_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, level, message, exception_detail, ledger_entry_id
    `,
        audit.CreatedAt,
        string(audit.Level),
        audit.Message,
        audit.ExceptionDetail,
        audit.LedgerEntryID,
    ).Scan(
        &a.ID,
        &a.CreatedAt,
        &level,
        &a.Message,
        &a.ExceptionDetail,
        &a.LedgerEntryID,
    )
    a.Level = AuditLevel(level)
    return a, err
}

func scanLedgerEntry(row pgx.Row) (LedgerEntry, error) {
    var e LedgerEntry
    err := row.Scan(
        &e.ID,
        &e.Barcode,
        &e.CreatedAt,
        &e.Amount,
        &e.ServoActivated,
        &e.DonorID,
        &e.ScannerID,
    )
    return e, err
}

func isUniqueViolation(err error) bool {
    var pgErr *pgconn.PgError
    if !errors.As(err, &pgErr) {
        return false
    }
    return pgErr.Code == "23505"
}
