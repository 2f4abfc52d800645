package store

import (
    "time"

    "github.com/shopspring/decimal"
)

type AuditLevel string

const (
    LevelInformation AuditLevel = "Information"
    LevelWarning     AuditLevel = "Warning"
    LevelError       AuditLevel = "Error"
)

type Scanner struct {
    ID int64
}

type Price struct {
    Barcode string
    Amount  decimal.Decimal
}

type Donor struct {
    ID           int64
    FullName     string
    Email        string
    PasswordHash string
    CreatedAt    time.Time
}

type CreateDonorInput struct {
    FullName     string
    Email        string
    PasswordHash string
}

// LedgerEntry is one credited return. Exactly one of DonorID and ScannerID
// is set. Amount is the price snapshot taken when the entry was written.
type LedgerEntry struct {
    ID             int64
    Barcode        string
    CreatedAt      time.Time
    Amount         decimal.Decimal
    ServoActivated *bool
    DonorID        *int64
    ScannerID      *int64
}

type AuditEntry struct {
    ID              int64
    CreatedAt       time.Time
    Level           AuditLevel
    Message         string
    ExceptionDetail *string
    LedgerEntryID   *int64
}
