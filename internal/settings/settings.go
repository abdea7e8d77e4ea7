// Package settings reads and writes the per-user settings sheet: one row per
// Slack user mapping the user to a target spreadsheet and an email address.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/keihibot/keihi/internal/keihi"
	"github.com/keihibot/keihi/internal/sheet"
)

// SheetTitle is the worksheet holding the settings rows.
const SheetTitle = "user_settings"

const (
	readRange   = "'" + SheetTitle + "'!A2:E"
	timeLayout  = time.RFC3339
	firstRowNum = 2 // row 1 is the header
)

// ErrNotFound indicates the user has no settings row yet.
var ErrNotFound = errors.New("user settings not found")

var spreadsheetIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{20,}$`)

// UserSettings is one row of the settings sheet.
type UserSettings struct {
	UserID        string
	SpreadsheetID string `validate:"required,gsheetid"`
	Email         string `validate:"required,email"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store accesses the settings sheet.
type Store struct {
	api           sheet.API
	spreadsheetID string
	validate      *validator.Validate
	now           func() time.Time
}

// NewStore builds a Store over the settings spreadsheet.
func NewStore(api sheet.API, spreadsheetID string) *Store {
	v := validator.New()
	// Spreadsheet IDs are 20+ chars of [a-zA-Z0-9_-].
	_ = v.RegisterValidation("gsheetid", func(fl validator.FieldLevel) bool {
		return spreadsheetIDRe.MatchString(fl.Field().String())
	})
	return &Store{
		api:           api,
		spreadsheetID: spreadsheetID,
		validate:      v,
		now:           time.Now,
	}
}

// Get returns the settings for a user. A missing row yields a config-kind
// error wrapping ErrNotFound, since the remediation is /keihi setup.
func (s *Store) Get(ctx context.Context, userID string) (*UserSettings, error) {
	const op = "settings.Get"
	us, _, err := s.lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &keihi.Error{
				Kind: keihi.KindConfig, UserID: userID, Op: op,
				Message: "設定が見つかりません。`/keihi setup` を実行してください。",
				Err:     err,
			}
		}
		return nil, keihi.E(keihi.KindOperation, userID, op, err)
	}
	return us, nil
}

// SpreadsheetID resolves the user's target spreadsheet. Implements
// sheet.SettingsSource.
func (s *Store) SpreadsheetID(ctx context.Context, userID string) (string, error) {
	us, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return us.SpreadsheetID, nil
}

// Email resolves the user's email address. Implements drive.EmailSource.
func (s *Store) Email(ctx context.Context, userID string) (string, error) {
	us, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return us.Email, nil
}

// Save creates the user's settings row, or updates spreadsheet ID, email and
// updated_at when a row already exists. Rows are never deleted.
func (s *Store) Save(ctx context.Context, userID, spreadsheetID, email string) (*UserSettings, error) {
	const op = "settings.Save"

	us := &UserSettings{
		UserID:        userID,
		SpreadsheetID: spreadsheetID,
		Email:         email,
	}
	if err := s.validate.Struct(us); err != nil {
		return nil, &keihi.Error{
			Kind: keihi.KindValidation, UserID: userID, Op: op,
			Message: validationMessage(err),
			Err:     err,
		}
	}

	existing, rowNum, err := s.lookup(ctx, userID)
	switch {
	case err == nil:
		us.CreatedAt = existing.CreatedAt
		us.UpdatedAt = s.now()
		rng := fmt.Sprintf("'%s'!A%d:E%d", SheetTitle, rowNum, rowNum)
		if err := s.api.UpdateValues(ctx, s.spreadsheetID, rng, [][]any{rowValues(us)}); err != nil {
			return nil, keihi.E(keihi.KindOperation, userID, op, err)
		}
		slog.Info("updated user settings", "user", userID)
	case errors.Is(err, ErrNotFound):
		us.CreatedAt = s.now()
		us.UpdatedAt = us.CreatedAt
		if err := s.api.AppendValues(ctx, s.spreadsheetID, readRange, [][]any{rowValues(us)}); err != nil {
			return nil, keihi.E(keihi.KindOperation, userID, op, err)
		}
		slog.Info("created user settings", "user", userID)
	default:
		return nil, keihi.E(keihi.KindOperation, userID, op, err)
	}

	return us, nil
}

// lookup scans the settings rows for the user. The settings population is
// small; a linear scan over one ranged read is fine.
func (s *Store) lookup(ctx context.Context, userID string) (*UserSettings, int, error) {
	rows, err := s.api.Values(ctx, s.spreadsheetID, readRange)
	if err != nil {
		return nil, 0, err
	}
	for i, row := range rows {
		if len(row) == 0 || row[0] != userID {
			continue
		}
		us := &UserSettings{UserID: userID}
		if len(row) > 1 {
			us.SpreadsheetID = row[1]
		}
		if len(row) > 2 {
			us.Email = row[2]
		}
		if len(row) > 3 {
			us.CreatedAt, _ = time.Parse(timeLayout, row[3])
		}
		if len(row) > 4 {
			us.UpdatedAt, _ = time.Parse(timeLayout, row[4])
		}
		return us, firstRowNum + i, nil
	}
	return nil, 0, ErrNotFound
}

func rowValues(us *UserSettings) []any {
	return []any{
		us.UserID,
		us.SpreadsheetID,
		us.Email,
		us.CreatedAt.Format(timeLayout),
		us.UpdatedAt.Format(timeLayout),
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "SpreadsheetID":
			return "スプレッドシートIDの形式が正しくありません(20文字以上の英数字・ハイフン・アンダースコア)。"
		case "Email":
			return "メールアドレスの形式が正しくありません。"
		}
	}
	return "入力値が正しくありません。"
}
