package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordercore-backend/pkg/config"
	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/pagination"
	"github.com/angelmondragon/ordercore-backend/pkg/types"
)

const maxNoteLength = 2000

// Snapshot is the value of the three status axes at one point in time.
type Snapshot struct {
	Status            enums.OrderStatus
	PaymentStatus     enums.PaymentStatus
	FulfillmentStatus enums.FulfillmentStatus
}

// Author identifies who caused a transition. ID is nil for system actors.
type Author struct {
	ID    *uuid.UUID
	Label string
}

// Entry is one audit record to append.
type Entry struct {
	OrderID  uuid.UUID
	Action   enums.AuditAction
	Before   Snapshot
	After    Snapshot
	Note     string
	Metadata map[string]any
	Author   Author
	Source   enums.AuditSource
}

// Page is one slice of an order's history, newest first.
type Page struct {
	Entries    []models.OrderAudit
	NextCursor string
}

// Service appends to and reads from the order audit ledger.
// The ledger is a record; nothing in the engine reads it to make decisions.
type Service struct {
	db           *gorm.DB
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

func NewService(db *gorm.DB, cfg config.OrdersConfig) (*Service, error) {
	if db == nil {
		return nil, errors.New("db required")
	}
	return &Service{
		db:           db,
		defaultLimit: cfg.AuditDefaultLimit,
		maxLimit:     cfg.AuditMaxLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Append writes one row using tx so it commits together with the transition it records.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, entry Entry) (*models.OrderAudit, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if entry.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !entry.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid audit action")
	}
	if !entry.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid audit source")
	}

	row := models.OrderAudit{
		OrderID:               entry.OrderID,
		Action:                entry.Action,
		PrevStatus:            statusPtr(entry.Before.Status),
		NewStatus:             statusPtr(entry.After.Status),
		PrevPaymentStatus:     paymentPtr(entry.Before.PaymentStatus),
		NewPaymentStatus:      paymentPtr(entry.After.PaymentStatus),
		PrevFulfillmentStatus: fulfillmentPtr(entry.Before.FulfillmentStatus),
		NewFulfillmentStatus:  fulfillmentPtr(entry.After.FulfillmentStatus),
		AuthorID:              entry.Author.ID,
		AuthorLabel:           strings.TrimSpace(entry.Author.Label),
		Source:                entry.Source,
		CreatedAt:             s.now(),
	}
	if note := strings.TrimSpace(entry.Note); note != "" {
		note = types.TruncateUTF8(note, maxNoteLength)
		row.Note = &note
	}
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "audit metadata is not serializable")
		}
		row.Metadata = raw
	}

	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append audit entry")
	}
	return &row, nil
}

// ListRecent returns the newest entries for an order. The limit is clamped to the
// configured bounds and cursor continues from a previous page.
func (s *Service) ListRecent(ctx context.Context, orderID uuid.UUID, limit int, cursor string) (*Page, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	after, err := pagination.ParseCursor(cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit = pagination.NormalizeLimitWith(limit, s.defaultLimit, s.maxLimit)

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.Order{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if count == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	q := db.Where("order_id = ?", orderID)
	if after != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var rows []models.OrderAudit
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list audit entries")
	}

	page := &Page{Entries: rows}
	if len(rows) > limit {
		page.Entries = rows[:limit]
		last := page.Entries[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func statusPtr(v enums.OrderStatus) *enums.OrderStatus {
	if v == "" {
		return nil
	}
	return &v
}

func paymentPtr(v enums.PaymentStatus) *enums.PaymentStatus {
	if v == "" {
		return nil
	}
	return &v
}

func fulfillmentPtr(v enums.FulfillmentStatus) *enums.FulfillmentStatus {
	if v == "" {
		return nil
	}
	return &v
}
