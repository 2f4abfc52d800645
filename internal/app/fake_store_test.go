package app

import (
    "context"
    "errors"
    "sync"

    "github.com/shopspring/decimal"

    "bottlereturn/internal/store"
)

var errStoreDown = errors.New("connection refused")

type fakeStore struct {
    mu       sync.Mutex
    scanners map[int64]bool
    prices   map[string]decimal.Decimal
    donors   []store.Donor
    ledger   []store.LedgerEntry
    audits   []store.AuditEntry

    failScanner bool
    failPrice   bool
    failDonor   bool
    failTotal   bool
    failRecord  bool
    failAudit   bool
}

func newFakeStore() *fakeStore {
    return &fakeStore{
        scanners: map[int64]bool{},
        prices:   map[string]decimal.Decimal{},
    }
}

func (f *fakeStore) FindScanner(_ context.Context, id int64) (store.Scanner, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failScanner {
        return store.Scanner{}, errStoreDown
    }
    if !f.scanners[id] {
        return store.Scanner{}, store.ErrNotFound
    }
    return store.Scanner{ID: id}, nil
}

func (f *fakeStore) FindPrice(_ context.Context, barcode string) (store.Price, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failPrice {
        return store.Price{}, errStoreDown
    }
    amount, ok := f.prices[barcode]
    if !ok {
        return store.Price{}, store.ErrNotFound
    }
    return store.Price{Barcode: barcode, Amount: amount}, nil
}

func (f *fakeStore) FindDonor(_ context.Context, id int64) (store.Donor, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failDonor {
        return store.Donor{}, errStoreDown
    }
    for _, d := range f.donors {
        if d.ID == id {
            return d, nil
        }
    }
    return store.Donor{}, store.ErrNotFound
}

func (f *fakeStore) FindDonorByEmail(_ context.Context, email string) (store.Donor, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failDonor {
        return store.Donor{}, errStoreDown
    }
    for _, d := range f.donors {
        if d.Email == email {
            return d, nil
        }
    }
    return store.Donor{}, store.ErrNotFound
}

func (f *fakeStore) CreateDonor(_ context.Context, input store.CreateDonorInput) (store.Donor, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, d := range f.donors {
        if d.Email == input.Email {
            return store.Donor{}, store.ErrEmailExists
        }
    }
    d := store.Donor{
        ID:           int64(len(f.donors) + 1),
        FullName:     input.FullName,
        Email:        input.Email,
        PasswordHash: input.PasswordHash,
    }
    f.donors = append(f.donors, d)
    return d, nil
}

func (f *fakeStore) RecordReturn(ctx context.Context, entry store.LedgerEntry, audit store.AuditEntry) (store.LedgerEntry, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if err := ctx.Err(); err != nil {
        return store.LedgerEntry{}, err
    }
    if f.failRecord {
        return store.LedgerEntry{}, errStoreDown
    }
    entry.ID = int64(len(f.ledger) + 1)
    f.ledger = append(f.ledger, entry)
    audit.ID = int64(len(f.audits) + 1)
    audit.LedgerEntryID = &entry.ID
    f.audits = append(f.audits, audit)
    return entry, nil
}

func (f *fakeStore) AppendAudit(ctx context.Context, audit store.AuditEntry) (store.AuditEntry, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if err := ctx.Err(); err != nil {
        return store.AuditEntry{}, err
    }
    if f.failAudit {
        return store.AuditEntry{}, errStoreDown
    }
    audit.ID = int64(len(f.audits) + 1)
    f.audits = append(f.audits, audit)
    return audit, nil
}

func (f *fakeStore) GetLedgerEntry(_ context.Context, id int64) (store.LedgerEntry, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, e := range f.ledger {
        if e.ID == id {
            return e, nil
        }
    }
    return store.LedgerEntry{}, store.ErrNotFound
}

func (f *fakeStore) TotalDonated(_ context.Context) (decimal.Decimal, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failTotal {
        return decimal.Zero, errStoreDown
    }
    total := decimal.Zero
    for _, e := range f.ledger {
        total = total.Add(e.Amount)
    }
    return total, nil
}

func (f *fakeStore) ledgerCount() int {
    f.mu.Lock()
    defer f.mu.Unlock()
    return len(f.ledger)
}

func (f *fakeStore) auditEntries() []store.AuditEntry {
    f.mu.Lock()
    defer f.mu.Unlock()
    out := make([]store.AuditEntry, len(f.audits))
    copy(out, f.audits)
    return out
}

type recordingPublisher struct {
    mu     sync.Mutex
    events []ReturnRecordedEvent
    keys   []string
    err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _, routingKey string, body any) error {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.err != nil {
        return p.err
    }
    p.keys = append(p.keys, routingKey)
    p.events = append(p.events, body.(ReturnRecordedEvent))
    return nil
}
