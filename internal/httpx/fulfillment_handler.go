package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/surfpix/order-service/internal/blob"
	"github.com/surfpix/order-service/internal/fulfillment"
	"github.com/surfpix/order-service/internal/orders"
	"github.com/surfpix/order-service/internal/payment"
	"github.com/surfpix/order-service/internal/redisx"
)

// Pipeline is what the handlers need from the fulfillment service.
type Pipeline interface {
	HandleCheckoutCompleted(ctx context.Context, ev payment.Event) fulfillment.Result
	Refulfill(ctx context.Context, orderID string) fulfillment.Result
}

type FulfillmentHandler struct {
	Pipeline      Pipeline
	Repo          *orders.Repo
	Blobs         blob.Store
	Redis         *redis.Client // optional; dedup fast-path and status cache
	Log           *zap.Logger
	WebhookSecret string
	Timeout       time.Duration // per-pipeline-run bound, DB included
	Now           func() time.Time
}

func (h *FulfillmentHandler) Register(r *chi.Mux) {
	r.Post("/webhook", h.webhook)
	r.Post("/manual-fulfillment", h.manualFulfillment)
	r.Get("/download-bundle/{token}", h.downloadBundle)
	r.Get("/orders/{id}", h.getOrder)
}

func (h *FulfillmentHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h *FulfillmentHandler) timeout() time.Duration {
	if h.Timeout > 0 {
		return h.Timeout
	}
	return 30 * time.Second
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// webhook always acknowledges a verified delivery with 200, whatever the
// pipeline outcome; anything else invites a retry storm from the processor.
// Only a bad signature gets a client error.
func (h *FulfillmentHandler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	sig := r.Header.Get(payment.SignatureHeader)
	if err := payment.VerifySignature(body, sig, h.WebhookSecret, payment.DefaultTolerance, h.now()); err != nil {
		h.Log.Warn("webhook signature rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
		return
	}

	ev, err := payment.ParseEvent(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if ev.Type != payment.EventCheckoutCompleted {
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	// Redis dedup is a fast path for repeat deliveries of one event id; the
	// session_ref unique constraint stays authoritative. The key is written
	// only after a successful run, so a redelivery after a failure (or a run
	// killed mid-pipeline) still reaches the pipeline and resumes forward.
	dkey := fmt.Sprintf(redisx.KeyWebhookDedup, ev.ID)
	if h.Redis != nil {
		if ok, _ := redisx.Exists(ctx, h.Redis, dkey); ok {
			h.Log.Info("duplicate webhook delivery", zap.String("event_id", ev.ID))
			writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
	}

	res := h.Pipeline.HandleCheckoutCompleted(ctx, ev)
	if !res.Success {
		h.Log.Error("fulfillment pipeline reported failure",
			zap.String("event_id", ev.ID),
			zap.String("session_ref", ev.Session.ID),
			zap.String("message", res.Message))
	} else if h.Redis != nil {
		_ = h.Redis.Set(ctx, dkey, "1", redisx.TTLWebhookDedup).Err()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type manualFulfillmentReq struct {
	OrderID string `json:"orderId"`
}

func (h *FulfillmentHandler) manualFulfillment(w http.ResponseWriter, r *http.Request) {
	var req manualFulfillmentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing orderId"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	res := h.Pipeline.Refulfill(ctx, req.OrderID)
	if !res.Success {
		if res.Message == fulfillment.MessageOrderNotFound {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": res.Message})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": res.Message})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// downloadBundle streams the prepared archive for a valid, unexpired token.
// Stateless and side-effect free; an expired token never touches storage.
func (h *FulfillmentHandler) downloadBundle(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	orderID, err := fulfillment.DecodeBundleToken(token, h.now())
	switch {
	case errors.Is(err, fulfillment.ErrTokenExpired):
		writeJSON(w, http.StatusGone, map[string]string{"error": "download link expired"})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid token"})
		return
	}

	rc, size, err := h.Blobs.Download(r.Context(), fulfillment.BundleKey(orderID))
	if errors.Is(err, blob.ErrNotExist) {
		// The archiver may write a suffixed key (bundles/<id>-<hash>.zip).
		keys, lerr := h.Blobs.ListByPrefix(r.Context(), "bundles/"+orderID)
		if lerr == nil && len(keys) > 0 {
			rc, size, err = h.Blobs.Download(r.Context(), keys[0])
		}
	}
	if errors.Is(err, blob.ErrNotExist) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "archive not ready"})
		return
	}
	if err != nil {
		h.Log.Error("bundle download failed", zap.String("order_id", orderID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage read failed"})
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="surfpix-%s.zip"`, orderID))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (h *FulfillmentHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	o, err := h.Repo.GetByID(ctx, orderID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	body := map[string]any{"status": o.Status}
	if o.FulfilledAt != nil {
		body["fulfilled_at"] = o.FulfilledAt
	}
	b, _ := json.Marshal(body)
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
