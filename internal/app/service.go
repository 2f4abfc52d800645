package app

import (
    "context"
    "time"

    "github.com/shopspring/decimal"
    "golang.org/x/crypto/bcrypt"

    "bottlereturn/internal/store"
)

const (
    StatusOperational = "operational"

    RoutingKeyReturnRecorded = "return.recorded"
)

type Store interface {
    FindScanner(ctx context.Context, id int64) (store.Scanner, error)
    FindPrice(ctx context.Context, barcode string) (store.Price, error)
    FindDonor(ctx context.Context, id int64) (store.Donor, error)
    FindDonorByEmail(ctx context.Context, email string) (store.Donor, error)
    CreateDonor(ctx context.Context, input store.CreateDonorInput) (store.Donor, error)
    RecordReturn(ctx context.Context, entry store.LedgerEntry, audit store.AuditEntry) (store.LedgerEntry, error)
    AppendAudit(ctx context.Context, audit store.AuditEntry) (store.AuditEntry, error)
    GetLedgerEntry(ctx context.Context, id int64) (store.LedgerEntry, error)
    TotalDonated(ctx context.Context) (decimal.Decimal, error)
}

// Publisher fans recorded returns out to other consumers. It is optional.
type Publisher interface {
    Publish(ctx context.Context, exchange, routingKey string, body any) error
}

type Logger interface {
    Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

type Options struct {
    BcryptCost    int
    EventExchange string
    Publisher     Publisher
    Logger        Logger
    Now           func() time.Time
}

type Service struct {
    store      Store
    publisher  Publisher
    exchange   string
    bcryptCost int
    dummyHash  []byte
    logger     Logger
    now        func() time.Time
}

func NewService(st Store, opts Options) *Service {
    s := &Service{
        store:      st,
        publisher:  opts.Publisher,
        exchange:   opts.EventExchange,
        bcryptCost: opts.BcryptCost,
        logger:     opts.Logger,
        now:        opts.Now,
    }
    if s.logger == nil {
        s.logger = nopLogger{}
    }
    if s.now == nil {
        s.now = time.Now
    }
    if s.bcryptCost < bcrypt.MinCost || s.bcryptCost > bcrypt.MaxCost {
        s.bcryptCost = bcrypt.DefaultCost
    }
    hash, err := bcrypt.GenerateFromPassword([]byte("bottle-return-placeholder"), s.bcryptCost)
    if err != nil {
        s.logger.Printf("dummy hash generation failed: %v", err)
    }
    s.dummyHash = hash
    return s
}

// Status is the liveness probe. It has no dependencies.
func (s *Service) Status() string {
    return StatusOperational
}
