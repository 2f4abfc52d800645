package app

import (
    "context"
    "errors"
    "fmt"
    "strings"

    "golang.org/x/crypto/bcrypt"

    "bottlereturn/internal/store"
)

// bcrypt ignores input past 72 bytes, so longer passwords are rejected.
const maxPasswordBytes = 72

type SignupRequest struct {
    FullName  string
    FirstName string
    LastName  string
    Email     string
    Password  string
}

// RegisterDonor creates a donor and returns its id. The name is taken from
// FullName, or from FirstName and LastName when FullName is empty.
func (s *Service) RegisterDonor(ctx context.Context, req SignupRequest) (int64, error) {
    email := normalizeEmail(req.Email)
    if req.Password == "" || email == "" {
        return 0, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
    }
    if len(req.Password) > maxPasswordBytes {
        return 0, fmt.Errorf("%w: password too long", ErrInvalidInput)
    }

    fullName, ok := resolveFullName(req)
    if !ok {
        return 0, fmt.Errorf("%w: either full_name or both first_name and last_name are required", ErrInvalidInput)
    }

    hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
    if err != nil {
        return 0, fmt.Errorf("hash password: %w", err)
    }

    donor, err := s.store.CreateDonor(ctx, store.CreateDonorInput{
        FullName:     fullName,
        Email:        email,
        PasswordHash: string(hash),
    })
    if err != nil {
        if errors.Is(err, store.ErrEmailExists) {
            return 0, ErrEmailTaken
        }
        return 0, fmt.Errorf("%w: %w", ErrStoreFailure, err)
    }
    return donor.ID, nil
}

// Authenticate returns the donor id for a matching email and password.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (int64, error) {
    email = normalizeEmail(email)
    if email == "" || password == "" {
        return 0, ErrUnauthenticated
    }

    donor, err := s.store.FindDonorByEmail(ctx, email)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            // keep timing close to the found-donor path
            _ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
            return 0, ErrUnauthenticated
        }
        return 0, fmt.Errorf("%w: %w", ErrStoreFailure, err)
    }

    if err := bcrypt.CompareHashAndPassword([]byte(donor.PasswordHash), []byte(password)); err != nil {
        return 0, ErrUnauthenticated
    }
    return donor.ID, nil
}

func resolveFullName(req SignupRequest) (string, bool) {
    if name := strings.TrimSpace(req.FullName); name != "" {
        return name, true
    }
    first := strings.TrimSpace(req.FirstName)
    last := strings.TrimSpace(req.LastName)
    if first == "" || last == "" {
        return "", false
    }
    return first + " " + last, true
}

func normalizeEmail(email string) string {
    return strings.ToLower(strings.TrimSpace(email))
}
