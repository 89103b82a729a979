// Package fulfillment runs the post-payment pipeline: a verified checkout
// event becomes a persisted order, download grants, and customer email.
// Every path resolves to a Result; nothing escapes the boundary as a panic
// or raw error.
package fulfillment

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/surfpix/order-service/internal/blob"
	"github.com/surfpix/order-service/internal/events"
	"github.com/surfpix/order-service/internal/mailer"
	"github.com/surfpix/order-service/internal/orders"
	"github.com/surfpix/order-service/internal/payment"
)

// DownloadWindow is the default grant validity on the primary path; the
// simple confirmation path promises SimpleDownloadWindow for links re-sent
// manually.
const (
	DownloadWindow       = 48 * time.Hour
	SimpleDownloadWindow = 7 * 24 * time.Hour
)

const MessageOrderNotFound = "order not found"

// OrderStore is the record-store slice the pipeline needs.
type OrderStore interface {
	CreateWithItems(ctx context.Context, o orders.Order, items []orders.OrderItem) (orders.Order, bool, error)
	GetByID(ctx context.Context, id string) (orders.Order, error)
	Items(ctx context.Context, orderID string) ([]orders.OrderItem, error)
	PhotosByIDs(ctx context.Context, ids []string) (map[string]orders.Photo, error)
	MarkFulfilled(ctx context.Context, orderID string, at time.Time) error
}

// Publisher matches the async Kafka producer. May be nil (tests, local dev).
type Publisher interface {
	Publish(key, value []byte, headers ...kafka.Header)
}

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	EmailID string `json:"emailId,omitempty"`
}

type Service struct {
	Store    OrderStore
	Payments payment.LineItemLister
	Mail     mailer.Sender
	Blobs    blob.Store
	Events   Publisher

	From        string
	OpsEmail    string
	ServiceName string

	// DownloadTTL overrides DownloadWindow when set (operators shorten or
	// stretch link validity without a deploy).
	DownloadTTL time.Duration

	Now func() time.Time
	Log *zap.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) downloadWindow() time.Duration {
	if s.DownloadTTL > 0 {
		return s.DownloadTTL
	}
	return DownloadWindow
}

// HandleCheckoutCompleted runs the full pipeline for one verified checkout
// event. The caller has already checked the signature.
func (s *Service) HandleCheckoutCompleted(ctx context.Context, ev payment.Event) Result {
	sess := ev.Session
	if sess.CustomerEmail == "" {
		return s.failed("", sess.ID, "missing customer email", nil)
	}

	items, err := s.Payments.ListLineItems(ctx, sess.ID)
	if err != nil {
		return s.failed("", sess.ID, "listing line items failed", err)
	}

	valid := s.extractItems(sess.ID, items)
	if len(valid) == 0 {
		return s.failed("", sess.ID, "no valid line items for session", nil)
	}

	o := orders.Order{
		SessionRef: sess.ID,
		Email:      sess.CustomerEmail,
		Name:       sess.CustomerName,
		Status:     orders.StatusCompleted,
		TotalCents: sess.AmountTotal,
		Shipping:   toAddress(sess.Shipping),
	}
	o, existed, err := s.Store.CreateWithItems(ctx, o, valid)
	if err != nil {
		return s.failed("", sess.ID, "persisting order failed", err)
	}
	if existed {
		if o.Status == orders.StatusFulfilled {
			// Duplicate delivery of an already-handled event.
			s.Log.Info("duplicate delivery for fulfilled order",
				zap.String("order_id", o.ID), zap.String("session_ref", sess.ID))
			return Result{Success: true, Message: "order already fulfilled"}
		}
		// A previous run was killed mid-pipeline; resume with what was
		// persisted then.
		s.Log.Warn("resuming fulfillment for existing order",
			zap.String("order_id", o.ID), zap.String("session_ref", sess.ID))
		if valid, err = s.Store.Items(ctx, o.ID); err != nil {
			return s.failed(o.ID, sess.ID, "loading existing order items failed", err)
		}
	} else {
		for i := range valid {
			valid[i].OrderID = o.ID
		}
	}

	return s.fulfill(ctx, o, valid)
}

// Refulfill re-runs classification and dispatch for an existing order.
// At-least-once by design: there is no fulfilled-guard, so invoking it for
// an already-fulfilled order re-sends the email. That is the support tool's
// purpose (recovering lost emails).
func (s *Service) Refulfill(ctx context.Context, orderID string) Result {
	o, err := s.Store.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return Result{Success: false, Message: MessageOrderNotFound}
		}
		return s.failed(orderID, "", "loading order failed", err)
	}
	items, err := s.Store.Items(ctx, o.ID)
	if err != nil {
		return s.failed(o.ID, o.SessionRef, "loading order items failed", err)
	}
	return s.fulfill(ctx, o, items)
}

// extractItems validates line-item metadata. An item missing photo id or a
// recognizable product type is skipped and logged, never fatal on its own.
func (s *Service) extractItems(sessionRef string, items []payment.LineItem) []orders.OrderItem {
	out := make([]orders.OrderItem, 0, len(items))
	for _, li := range items {
		photoID := li.Metadata[payment.MetaPhotoID]
		ptRaw := li.Metadata[payment.MetaProductType]
		pt, ok := orders.ParseProductType(ptRaw)
		if photoID == "" || !ok {
			s.Log.Warn("skipping line item with bad metadata",
				zap.String("session_ref", sessionRef),
				zap.String("line_item", li.ID),
				zap.String("photo_id", photoID),
				zap.String("product_type", ptRaw))
			continue
		}
		it := orders.OrderItem{
			PhotoID:     photoID,
			ProductType: pt,
			PriceCents:  li.AmountCents,
		}
		if opt, ok := orders.ParseDeliveryOption(li.Metadata[payment.MetaDeliveryOption]); ok {
			it.DeliveryOption = opt
			if cents, err := strconv.ParseInt(li.Metadata[payment.MetaDeliveryPriceCents], 10, 64); err == nil {
				it.DeliveryPriceCents = cents
			}
		}
		out = append(out, it)
	}
	return out
}

// fulfill runs steps shared by the webhook path and manual re-fulfillment:
// classification, grant generation, email dispatch, status transition.
func (s *Service) fulfill(ctx context.Context, o orders.Order, items []orders.OrderItem) Result {
	var digital, pickup []orders.OrderItem
	for _, it := range items {
		switch {
		case it.ProductType == orders.ProductDigital:
			digital = append(digital, it)
		case it.DeliveryOption == orders.DeliveryPickup:
			pickup = append(pickup, it)
		}
		// Prints with postal delivery have no automated path here.
	}

	name := mailer.DisplayName(o.Name, o.Email)
	var emailID string

	if len(digital) > 0 {
		id, err := s.fulfillDigital(ctx, o, name, digital)
		if err != nil {
			return s.failed(o.ID, o.SessionRef, "email dispatch failed after fallback", err)
		}
		emailID = id
	}

	if len(pickup) > 0 {
		if err := s.notifyPickup(ctx, o, name, len(pickup)); err != nil {
			if len(digital) == 0 {
				return s.failed(o.ID, o.SessionRef, "pickup notification failed", err)
			}
			// Digital side already went out; do not fail the whole run.
			s.Log.Error("pickup notification failed",
				zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	if len(digital) == 0 && len(pickup) == 0 {
		return Result{Success: true, Message: "no automated fulfillment required"}
	}

	// Bookkeeping after the customer-facing effect. A failure here is an
	// operational concern, never a reason to re-send. Re-sends for orders
	// already marked fulfilled skip the write; fulfilled is terminal.
	if orders.CanTransition(o.Status, orders.StatusFulfilled) {
		if err := s.Store.MarkFulfilled(ctx, o.ID, s.now()); err != nil {
			s.Log.Error("status update to fulfilled failed",
				zap.String("order_id", o.ID), zap.Error(err))
		}
	} else {
		s.Log.Info("skipping status update",
			zap.String("order_id", o.ID), zap.String("status", string(o.Status)))
	}

	s.publishFulfilled(o, len(digital), len(pickup), emailID)
	return Result{Success: true, Message: "order fulfilled", EmailID: emailID}
}

// fulfillDigital builds download grants and sends the customer email. If
// the rich email fails, one simpler confirmation without links is attempted
// before giving up.
func (s *Service) fulfillDigital(ctx context.Context, o orders.Order, name string, digital []orders.OrderItem) (string, error) {
	ids := make([]string, 0, len(digital))
	for _, it := range digital {
		ids = append(ids, it.PhotoID)
	}
	photos, err := s.Store.PhotosByIDs(ctx, ids)
	if err != nil {
		return "", err
	}

	expiry := s.now().Add(s.downloadWindow())
	grants := make([]mailer.Grant, 0, len(digital))
	seen := make(map[string]bool, len(digital))
	for _, it := range digital {
		p, ok := photos[it.PhotoID]
		if !ok {
			// Excluded from the download set; the rest of the order goes on.
			s.Log.Warn("order item references missing photo",
				zap.String("order_id", o.ID), zap.String("photo_id", it.PhotoID))
			continue
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		grants = append(grants, mailer.Grant{
			URL:       s.Blobs.PublicURL(p.AssetKey),
			ThumbURL:  p.PreviewURL,
			ExpiresAt: expiry,
		})
	}

	msg := mailer.Message{From: s.From, To: o.Email}
	richErr := errNoGrants
	if len(grants) > 0 {
		html, text, err := mailer.RenderDownloadEmail(mailer.DownloadEmailData{
			Name:       name,
			TotalMajor: mailer.MajorUnits(o.TotalCents),
			Grants:     grants,
		})
		if err == nil {
			msg.Subject = "Your photos are ready"
			msg.HTML, msg.Text = html, text
			id, sendErr := s.Mail.Send(ctx, msg)
			if sendErr == nil {
				return id, nil
			}
			richErr = sendErr
		} else {
			richErr = err
		}
	}

	s.Log.Error("rich download email failed, falling back",
		zap.String("order_id", o.ID), zap.Error(richErr))

	validDays := int(SimpleDownloadWindow / (24 * time.Hour))
	html, text, err := mailer.RenderConfirmationEmail(name, validDays)
	if err != nil {
		return "", err
	}
	msg.Subject = "Order confirmed"
	msg.HTML, msg.Text = html, text
	return s.Mail.Send(ctx, msg)
}

// notifyPickup sends the customer heads-up plus the internal prep email.
// The ops copy is best-effort.
func (s *Service) notifyPickup(ctx context.Context, o orders.Order, name string, count int) error {
	html, text, err := mailer.RenderPickupEmail(mailer.PickupEmailData{Name: name, ItemCount: count})
	if err != nil {
		return err
	}
	if _, err := s.Mail.Send(ctx, mailer.Message{
		From: s.From, To: o.Email,
		Subject: "Your prints are on the way",
		HTML:    html, Text: text,
	}); err != nil {
		return err
	}

	opsBody, err := mailer.RenderOpsPickupEmail(mailer.OpsPickupData{
		OrderID: o.ID, Email: o.Email, ItemCount: count,
	})
	if err == nil {
		_, err = s.Mail.Send(ctx, mailer.Message{
			From: s.From, To: s.OpsEmail,
			Subject: "Pickup order " + o.ID,
			Text:    opsBody,
		})
	}
	if err != nil {
		s.Log.Error("ops pickup notification failed",
			zap.String("order_id", o.ID), zap.Error(err))
	}
	return nil
}

func (s *Service) publishFulfilled(o orders.Order, digital, pickup int, emailID string) {
	if s.Events == nil {
		return
	}
	env := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     events.EventOrderFulfilled,
		EventVersion:  1,
		OccurredAt:    s.now(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: events.MustMarshal(events.OrderFulfilledPayload{
			OrderID:      o.ID,
			SessionRef:   o.SessionRef,
			Email:        o.Email,
			DigitalItems: digital,
			PickupItems:  pickup,
			EmailID:      emailID,
		}),
	}
	s.Events.Publish(events.PartitionKey(o.ID), events.MustMarshal(env),
		kafka.Header{Key: events.HeaderEventType, Value: []byte(events.EventOrderFulfilled)},
		kafka.Header{Key: events.HeaderEventVersion, Value: []byte("1")},
	)
}

// failed records the failure for operators (log + event stream) and shapes
// the outcome message so upstream retry machinery knows whether a wholesale
// retry is safe.
func (s *Service) failed(orderID, sessionRef, msg string, err error) Result {
	transient := isTransient(err)
	s.Log.Error("fulfillment failed",
		zap.String("order_id", orderID),
		zap.String("session_ref", sessionRef),
		zap.String("reason", msg),
		zap.Bool("transient", transient),
		zap.Error(err))

	if s.Events != nil {
		env := events.Envelope{
			EventID:       uuid.NewString(),
			EventType:     events.EventFulfillmentFailed,
			EventVersion:  1,
			OccurredAt:    s.now(),
			Producer:      s.ServiceName,
			CorrelationID: orderID,
			Payload: events.MustMarshal(events.FulfillmentFailedPayload{
				OrderID:    orderID,
				SessionRef: sessionRef,
				Reason:     msg,
				Transient:  transient,
			}),
		}
		key := orderID
		if key == "" {
			key = sessionRef
		}
		s.Events.Publish(events.PartitionKey(key), events.MustMarshal(env),
			kafka.Header{Key: events.HeaderEventType, Value: []byte(events.EventFulfillmentFailed)},
			kafka.Header{Key: events.HeaderEventVersion, Value: []byte("1")},
		)
	}

	if transient {
		msg += ": temporary infrastructure error, will retry automatically"
	}
	return Result{Success: false, Message: msg}
}

func toAddress(a *payment.Address) *orders.Address {
	if a == nil {
		return nil
	}
	return &orders.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}
