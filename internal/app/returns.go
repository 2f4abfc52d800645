package app

import (
    "context"
    "errors"
    "fmt"
    "strconv"
    "strings"
    "time"

    "github.com/shopspring/decimal"

    "bottlereturn/internal/store"
)

const (
    ChannelScanner = "scanner"
    ChannelDonor   = "donor"
)

type ScannerReturnRequest struct {
    Barcode        string
    ServoActivated bool
    ScannerID      string
}

type ScannerReturnResult struct {
    ID      int64
    Amount  decimal.Decimal
    Barcode string
}

type DonorReturnRequest struct {
    Barcode string
    DonorID int64
}

type DonorReturnResult struct {
    ID        int64
    Amount    decimal.Decimal
    Barcode   string
    DonorName string
    Message   string
}

// ReturnRecordedEvent is published after a return has been committed.
type ReturnRecordedEvent struct {
    EntryID    int64     `json:"entry_id"`
    Channel    string    `json:"channel"`
    Barcode    string    `json:"barcode"`
    Amount     string    `json:"amount"`
    ScannerID  *int64    `json:"scanner_id,omitempty"`
    DonorID    *int64    `json:"donor_id,omitempty"`
    RecordedAt time.Time `json:"recorded_at"`
}

// ProcessScannerReturn credits a kiosk scan. The scanner is validated before
// the barcode so an unknown scanner is never reported as an unknown barcode.
func (s *Service) ProcessScannerReturn(ctx context.Context, req *ScannerReturnRequest) (ScannerReturnResult, error) {
    if req == nil {
        s.audit(ctx, store.LevelError, "Null request received", nil)
        return ScannerReturnResult{}, ErrInvalidInput
    }

    barcode := strings.TrimSpace(req.Barcode)
    scannerID, err := parseScannerID(req.ScannerID)
    if barcode == "" || err != nil {
        s.audit(ctx, store.LevelError, "Invalid return data", nil)
        return ScannerReturnResult{}, ErrInvalidInput
    }

    scanner, err := s.store.FindScanner(ctx, scannerID)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            s.audit(ctx, store.LevelWarning, fmt.Sprintf("Scanner not found: %d", scannerID), nil)
            return ScannerReturnResult{}, ErrUnknownScanner
        }
        return ScannerReturnResult{}, s.fail(ctx, "Processing failed", err)
    }

    price, err := s.lookupPrice(ctx, barcode)
    if err != nil {
        if errors.Is(err, ErrUnknownBarcode) {
            return ScannerReturnResult{}, err
        }
        return ScannerReturnResult{}, s.fail(ctx, "Processing failed", err)
    }

    now := s.now().UTC()
    servo := req.ServoActivated
    entry := store.LedgerEntry{
        Barcode:        barcode,
        CreatedAt:      now,
        Amount:         price.Amount,
        ServoActivated: &servo,
        ScannerID:      &scanner.ID,
    }

    created, err := s.store.RecordReturn(ctx, entry, store.AuditEntry{
        CreatedAt: now,
        Level:     store.LevelInformation,
        Message:   "Processed bottle return",
    })
    if err != nil {
        return ScannerReturnResult{}, s.fail(ctx, "Processing failed", err)
    }

    s.publishRecorded(ctx, ChannelScanner, created)

    return ScannerReturnResult{
        ID:      created.ID,
        Amount:  created.Amount,
        Barcode: created.Barcode,
    }, nil
}

// ProcessDonorReturn credits a return to an identified donor.
func (s *Service) ProcessDonorReturn(ctx context.Context, req *DonorReturnRequest) (DonorReturnResult, error) {
    if req == nil {
        s.audit(ctx, store.LevelError, "Null mobile request received", nil)
        return DonorReturnResult{}, ErrInvalidInput
    }

    barcode := strings.TrimSpace(req.Barcode)
    if barcode == "" || req.DonorID <= 0 {
        s.audit(ctx, store.LevelError, "Invalid mobile return data", nil)
        return DonorReturnResult{}, ErrInvalidInput
    }

    donor, err := s.store.FindDonor(ctx, req.DonorID)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            s.audit(ctx, store.LevelWarning, fmt.Sprintf("Donor not found: %d", req.DonorID), nil)
            return DonorReturnResult{}, ErrUnknownDonor
        }
        return DonorReturnResult{}, s.fail(ctx, "Mobile processing failed", err)
    }

    price, err := s.lookupPrice(ctx, barcode)
    if err != nil {
        if errors.Is(err, ErrUnknownBarcode) {
            return DonorReturnResult{}, err
        }
        return DonorReturnResult{}, s.fail(ctx, "Mobile processing failed", err)
    }

    now := s.now().UTC()
    entry := store.LedgerEntry{
        Barcode:   barcode,
        CreatedAt: now,
        Amount:    price.Amount,
        DonorID:   &donor.ID,
    }

    created, err := s.store.RecordReturn(ctx, entry, store.AuditEntry{
        CreatedAt: now,
        Level:     store.LevelInformation,
        Message:   "Processed mobile bottle return",
    })
    if err != nil {
        return DonorReturnResult{}, s.fail(ctx, "Mobile processing failed", err)
    }

    s.publishRecorded(ctx, ChannelDonor, created)

    return DonorReturnResult{
        ID:        created.ID,
        Amount:    created.Amount,
        Barcode:   created.Barcode,
        DonorName: donor.FullName,
        Message:   fmt.Sprintf("Thank you, %s for donating %s!", donor.FullName, FormatAmount(created.Amount)),
    }, nil
}

func (s *Service) GetReturn(ctx context.Context, id int64) (store.LedgerEntry, error) {
    if id <= 0 {
        return store.LedgerEntry{}, ErrInvalidInput
    }
    entry, err := s.store.GetLedgerEntry(ctx, id)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            return store.LedgerEntry{}, ErrReturnNotFound
        }
        return store.LedgerEntry{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
    }
    return entry, nil
}

// lookupPrice audits the unknown-barcode warning itself. Other errors are
// returned untouched for the caller to fail on.
func (s *Service) lookupPrice(ctx context.Context, barcode string) (store.Price, error) {
    price, err := s.store.FindPrice(ctx, barcode)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            s.audit(ctx, store.LevelWarning, fmt.Sprintf("Barcode not found: %s", barcode), nil)
            return store.Price{}, ErrUnknownBarcode
        }
        return store.Price{}, err
    }
    return price, nil
}

// fail audits an unexpected error with its detail and returns it wrapped
// in ErrStoreFailure.
func (s *Service) fail(ctx context.Context, message string, cause error) error {
    detail := cause.Error()
    s.audit(ctx, store.LevelError, message, &detail)
    return fmt.Errorf("%w: %w", ErrStoreFailure, cause)
}

// audit is best effort. A failed write is logged and never replaces the
// error the caller is about to return. The write outlives a cancelled request.
func (s *Service) audit(ctx context.Context, level store.AuditLevel, message string, detail *string) {
    _, err := s.store.AppendAudit(context.WithoutCancel(ctx), store.AuditEntry{
        CreatedAt:       s.now().UTC(),
        Level:           level,
        Message:         message,
        ExceptionDetail: detail,
    })
    if err != nil {
        s.logger.Printf("audit write failed: level=%s message=%q err=%v", level, message, err)
    }
}

func (s *Service) publishRecorded(ctx context.Context, channel string, entry store.LedgerEntry) {
    if s.publisher == nil {
        return
    }
    event := ReturnRecordedEvent{
        EntryID:    entry.ID,
        Channel:    channel,
        Barcode:    entry.Barcode,
        Amount:     entry.Amount.StringFixed(2),
        ScannerID:  entry.ScannerID,
        DonorID:    entry.DonorID,
        RecordedAt: entry.CreatedAt,
    }
    if err := s.publisher.Publish(ctx, s.exchange, RoutingKeyReturnRecorded, event); err != nil {
        s.logger.Printf("publish return event failed: entry_id=%d err=%v", entry.ID, err)
    }
}

func parseScannerID(raw string) (int64, error) {
    id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
    if err != nil {
        return 0, err
    }
    if id <= 0 {
        return 0, errors.New("scanner id must be positive")
    }
    return id, nil
}
