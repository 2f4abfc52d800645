package api

import (
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/shopspring/decimal"

    "bottlereturn/internal/app"
    "bottlereturn/internal/store"
)

type signupRequest struct {
    FullName  string `json:"full_name"`
    FirstName string `json:"first_name"`
    LastName  string `json:"last_name"`
    Email     string `json:"email"`
    Password  string `json:"password"`
}

type loginRequest struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}

// scannerID accepts both "1" and 1 on the wire; kiosks send either.
type scannerID string

func (id *scannerID) UnmarshalJSON(b []byte) error {
    var s string
    if err := json.Unmarshal(b, &s); err == nil {
        *id = scannerID(s)
        return nil
    }
    var n json.Number
    if err := json.Unmarshal(b, &n); err != nil {
        return err
    }
    *id = scannerID(n.String())
    return nil
}

type scannerReturnRequest struct {
    Barcode        string    `json:"barcode"`
    ServoActivated bool      `json:"servo_activated"`
    ScannerID      scannerID `json:"scanner_id"`
}

type donorReturnRequest struct {
    Barcode string `json:"barcode"`
    DonorID int64  `json:"donor_id"`
}

type signupResponse struct {
    ID      int64  `json:"id"`
    Message string `json:"message"`
}

type loginResponse struct {
    ID int64 `json:"id"`
}

type scannerReturnResponse struct {
    Message string      `json:"message"`
    ID      int64       `json:"id"`
    Amount  json.Number `json:"amount"`
    Barcode string      `json:"barcode"`
}

type donorReturnResponse struct {
    Message   string      `json:"message"`
    ID        int64       `json:"id"`
    Amount    json.Number `json:"amount"`
    Barcode   string      `json:"barcode"`
    DonorName string      `json:"donor_name"`
}

type totalResponse struct {
    Total  string      `json:"total"`
    Amount json.Number `json:"amount"`
}

type statusResponse struct {
    Status string `json:"status"`
}

type ledgerEntryResponse struct {
    ID             int64       `json:"id"`
    Barcode        string      `json:"barcode"`
    Amount         json.Number `json:"amount"`
    ServoActivated *bool       `json:"servo_activated,omitempty"`
    DonorID        *int64      `json:"donor_id,omitempty"`
    ScannerID      *int64      `json:"scanner_id,omitempty"`
    CreatedAt      time.Time   `json:"created_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, statusResponse{Status: s.svc.Status()})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
    var req signupRequest
    if err := decodeJSON(w, r, &req); err != nil {
        s.logEvent("donor_signup_failed", map[string]any{
            "reason": "invalid_request",
        })
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }

    id, err := s.svc.RegisterDonor(r.Context(), app.SignupRequest{
        FullName:  req.FullName,
        FirstName: req.FirstName,
        LastName:  req.LastName,
        Email:     req.Email,
        Password:  req.Password,
    })
    if err != nil {
        s.logEvent("donor_signup_failed", map[string]any{
            "reason": s.writeServiceError(w, "signup", err),
        })
        return
    }

    s.logEvent("donor_registered", map[string]any{
        "donor_id": id,
    })
    writeJSON(w, http.StatusCreated, signupResponse{ID: id, Message: "registration successful"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
    var req loginRequest
    if err := decodeJSON(w, r, &req); err != nil {
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }

    id, err := s.svc.Authenticate(r.Context(), req.Email, req.Password)
    if err != nil {
        s.logEvent("login_failed", map[string]any{
            "reason": s.writeServiceError(w, "login", err),
        })
        return
    }

    s.logEvent("login_succeeded", map[string]any{
        "donor_id": id,
    })
    writeJSON(w, http.StatusOK, loginResponse{ID: id})
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
    total, err := s.svc.TotalDonated(r.Context())
    if err != nil {
        s.writeServiceError(w, "total", err)
        return
    }
    writeJSON(w, http.StatusOK, totalResponse{Total: total.Formatted, Amount: amountJSON(total.Amount)})
}

func (s *Server) handleGetReturn(w http.ResponseWriter, r *http.Request) {
    id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
    if err != nil || id <= 0 {
        writeError(w, http.StatusBadRequest, "invalid_id")
        return
    }

    entry, err := s.svc.GetReturn(r.Context(), id)
    if err != nil {
        s.writeServiceError(w, "get return", err)
        return
    }
    writeJSON(w, http.StatusOK, toLedgerEntryResponse(entry))
}

func (s *Server) handleScannerReturn(w http.ResponseWriter, r *http.Request) {
    var body *scannerReturnRequest
    var req *app.ScannerReturnRequest
    // A malformed body reaches the processor as an absent request so that
    // the rejection is audited like any other.
    if err := decodeJSON(w, r, &body); err == nil && body != nil {
        req = &app.ScannerReturnRequest{
            Barcode:        body.Barcode,
            ServoActivated: body.ServoActivated,
            ScannerID:      string(body.ScannerID),
        }
    }

    result, err := s.svc.ProcessScannerReturn(r.Context(), req)
    if err != nil {
        fields := map[string]any{
            "channel": app.ChannelScanner,
            "reason":  s.writeServiceError(w, "scanner return", err),
        }
        if req != nil {
            fields["barcode"] = req.Barcode
            fields["scanner_id"] = req.ScannerID
        }
        s.logEvent("return_rejected", fields)
        return
    }

    s.logEvent("return_recorded", map[string]any{
        "channel":  app.ChannelScanner,
        "entry_id": result.ID,
        "barcode":  result.Barcode,
        "amount":   result.Amount.StringFixed(2),
    })
    writeJSON(w, http.StatusCreated, scannerReturnResponse{
        Message: "Bottle return processed successfully",
        ID:      result.ID,
        Amount:  amountJSON(result.Amount),
        Barcode: result.Barcode,
    })
}

func (s *Server) handleDonorReturn(w http.ResponseWriter, r *http.Request) {
    var body *donorReturnRequest
    var req *app.DonorReturnRequest
    if err := decodeJSON(w, r, &body); err == nil && body != nil {
        req = &app.DonorReturnRequest{
            Barcode: body.Barcode,
            DonorID: body.DonorID,
        }
    }

    result, err := s.svc.ProcessDonorReturn(r.Context(), req)
    if err != nil {
        fields := map[string]any{
            "channel": app.ChannelDonor,
            "reason":  s.writeServiceError(w, "donor return", err),
        }
        if req != nil {
            fields["barcode"] = req.Barcode
            fields["donor_id"] = req.DonorID
        }
        s.logEvent("return_rejected", fields)
        return
    }

    s.logEvent("return_recorded", map[string]any{
        "channel":  app.ChannelDonor,
        "entry_id": result.ID,
        "barcode":  result.Barcode,
        "amount":   result.Amount.StringFixed(2),
    })
    writeJSON(w, http.StatusCreated, donorReturnResponse{
        Message:   result.Message,
        ID:        result.ID,
        Amount:    amountJSON(result.Amount),
        Barcode:   result.Barcode,
        DonorName: result.DonorName,
    })
}

// writeServiceError maps a service error to a response and returns the
// reason code it wrote.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) string {
    status, reason := http.StatusInternalServerError, "internal_error"
    switch {
    case errors.Is(err, app.ErrInvalidInput):
        status, reason = http.StatusBadRequest, "invalid_request"
    case errors.Is(err, app.ErrUnknownScanner):
        status, reason = http.StatusNotFound, "unknown_scanner"
    case errors.Is(err, app.ErrUnknownBarcode):
        status, reason = http.StatusNotFound, "unknown_barcode"
    case errors.Is(err, app.ErrUnknownDonor):
        status, reason = http.StatusNotFound, "unknown_donor"
    case errors.Is(err, app.ErrReturnNotFound):
        status, reason = http.StatusNotFound, "not_found"
    case errors.Is(err, app.ErrUnauthenticated):
        status, reason = http.StatusUnauthorized, "invalid_credentials"
    case errors.Is(err, app.ErrEmailTaken):
        status, reason = http.StatusConflict, "email_taken"
    default:
        s.logger.Printf("%s error: %v", op, err)
    }
    writeError(w, status, reason)
    return reason
}

func toLedgerEntryResponse(e store.LedgerEntry) ledgerEntryResponse {
    return ledgerEntryResponse{
        ID:             e.ID,
        Barcode:        e.Barcode,
        Amount:         amountJSON(e.Amount),
        ServoActivated: e.ServoActivated,
        DonorID:        e.DonorID,
        ScannerID:      e.ScannerID,
        CreatedAt:      e.CreatedAt,
    }
}

// amountJSON renders a money amount as a JSON number with two decimals.
func amountJSON(d decimal.Decimal) json.Number {
    return json.Number(d.StringFixed(2))
}
