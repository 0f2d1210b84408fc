// Package handler exposes the auction engine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/service/bidding"
	"auctioneer/internal/auction/service/payment"
	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/platform/httputil"
	"auctioneer/pkg/platform/middleware/metadata"
	"auctioneer/pkg/requestcontext"
)

// BiddingService covers listing, auction creation and bidder actions.
type BiddingService interface {
	ListDomain(ctx context.Context, name string) (*models.Domain, error)
	GetDomain(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	CreateAuction(ctx context.Context, cmd bidding.CreateAuctionCommand) (*models.Auction, error)
	GetAuction(ctx context.Context, auctionID id.AuctionID) (*models.Auction, error)
	PlaceBid(ctx context.Context, cmd bidding.PlaceBidCommand) (*bidding.BidResult, error)
	Eligibility(ctx context.Context, auctionID id.AuctionID, userID id.UserID) (*bidding.Eligibility, error)
	Lease(ctx context.Context, auctionID id.AuctionID, userID id.UserID) (*models.Payment, error)
	MakeOffer(ctx context.Context, cmd bidding.MakeOfferCommand) (*models.Offer, error)
	AcceptOffer(ctx context.Context, auctionID id.AuctionID, offerID id.OfferID) (*models.Payment, error)
	RejectOffer(ctx context.Context, auctionID id.AuctionID, offerID id.OfferID) error
}

type PaymentService interface {
	Initiate(ctx context.Context, cmd payment.InitiateCommand) (*models.Payment, error)
	Complete(ctx context.Context, cmd payment.CompleteCommand) (payment.CompleteResult, error)
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
}

type SettingsService interface {
	SetNumeric(ctx context.Context, key string, value float64) error
}

type ContactDirectory interface {
	Register(ctx context.Context, userID id.UserID, email string) error
}

type Handler struct {
	bidding   BiddingService
	payments  PaymentService
	settings  SettingsService
	directory ContactDirectory
	logger    *slog.Logger
}

func New(biddingSvc BiddingService, payments PaymentService, settings SettingsService, directory ContactDirectory, logger *slog.Logger) *Handler {
	return &Handler{
		bidding:   biddingSvc,
		payments:  payments,
		settings:  settings,
		directory: directory,
		logger:    logger,
	}
}

// Register mounts the routes. Everything except the checkout provider's
// completion callback runs behind requireUser; bid and offer writes are also
// throttled by limitWrites.
func (h *Handler) Register(r chi.Router, requireUser, limitWrites func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Post("/domains", h.HandleListDomain)
		r.Get("/domains/{domainID}", h.HandleGetDomain)

		r.Post("/auctions", h.HandleCreateAuction)
		r.Get("/auctions/{auctionID}", h.HandleGetAuction)
		r.With(limitWrites).Post("/auctions/{auctionID}/bids", h.HandlePlaceBid)
		r.Get("/auctions/{auctionID}/eligibility", h.HandleEligibility)
		r.Post("/auctions/{auctionID}/lease", h.HandleLease)
		r.With(limitWrites).Post("/auctions/{auctionID}/offers", h.HandleMakeOffer)
		r.Post("/auctions/{auctionID}/offers/{offerID}/accept", h.HandleAcceptOffer)
		r.Post("/auctions/{auctionID}/offers/{offerID}/reject", h.HandleRejectOffer)

		r.Get("/payments/{paymentID}", h.HandleGetPayment)
		r.Post("/payments/{paymentID}/checkout", h.HandleCheckout)

		r.Put("/settings/{key}", h.HandlePutSetting)
		r.Put("/users/me/contact", h.HandlePutContact)
	})
	r.Post("/payments/{paymentID}/complete", h.HandleComplete)
}

// HandleListDomain handles POST /domains.
func (h *Handler) HandleListDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ListDomainRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	domain, err := h.bidding.ListDomain(ctx, req.Name)
	if err != nil {
		h.fail(ctx, w, "list domain failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDomainResponse(domain))
}

// HandleGetDomain handles GET /domains/{domainID}.
func (h *Handler) HandleGetDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainID, err := id.ParseDomainID(chi.URLParam(r, "domainID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	domain, err := h.bidding.GetDomain(ctx, domainID)
	if err != nil {
		h.fail(ctx, w, "get domain failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDomainResponse(domain))
}

// HandleCreateAuction handles POST /auctions.
func (h *Handler) HandleCreateAuction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateAuctionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	auction, err := h.bidding.CreateAuction(ctx, bidding.CreateAuctionCommand{
		DomainID:       req.parsedDomainID,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		MinPrice:       req.MinPrice,
		MinIncrement:   req.MinIncrement,
		ReservePrice:   req.ReservePrice,
		LeasePrice:     req.LeasePrice,
		ExpiryDuration: req.ExpiryDuration,
	})
	if err != nil {
		h.fail(ctx, w, "create auction failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toAuctionResponse(auction))
}

// HandleGetAuction handles GET /auctions/{auctionID}.
func (h *Handler) HandleGetAuction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auctionID, ok := auctionParam(w, r)
	if !ok {
		return
	}
	auction, err := h.bidding.GetAuction(ctx, auctionID)
	if err != nil {
		h.fail(ctx, w, "get auction failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAuctionResponse(auction))
}

// HandlePlaceBid handles POST /auctions/{auctionID}/bids.
func (h *Handler) HandlePlaceBid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	auctionID, ok := auctionParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	bidder := requestcontext.UserID(ctx)
	result, err := h.bidding.PlaceBid(ctx, bidding.PlaceBidCommand{
		AuctionID: auctionID,
		BidderID:  bidder,
		Amount:    req.Amount,
	})
	if err != nil {
		h.fail(ctx, w, "bid rejected", err, "auction_id", auctionID, "bidder_id", bidder)
		return
	}
	h.logger.InfoContext(ctx, "bid placed",
		"request_id", requestID,
		"auction_id", auctionID,
		"bidder_id", bidder,
		"client", metadata.FromContext(ctx),
		"winning", result.Winning,
	)
	httputil.WriteJSON(w, http.StatusCreated, toBidResponse(result))
}

// HandleEligibility handles GET /auctions/{auctionID}/eligibility.
func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auctionID, ok := auctionParam(w, r)
	if !ok {
		return
	}
	e, err := h.bidding.Eligibility(ctx, auctionID, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "eligibility check failed", err, "auction_id", auctionID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEligibilityResponse(e))
}

// HandleLease handles POST /auctions/{auctionID}/lease.
func (h *Handler) HandleLease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auctionID, ok := auctionParam(w, r)
	if !ok {
		return
	}
	p, err := h.bidding.Lease(ctx, auctionID, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "lease failed", err, "auction_id", auctionID)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPaymentResponse(p))
}

// HandleMakeOffer handles POST /auctions/{auctionID}/offers.
func (h *Handler) HandleMakeOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auctionID, ok := auctionParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	offer, err := h.bidding.MakeOffer(ctx, bidding.MakeOfferCommand{
		AuctionID: auctionID,
		BidderID:  requestcontext.UserID(ctx),
		Amount:    req.Amount,
	})
	if err != nil {
		h.fail(ctx, w, "offer rejected", err, "auction_id", auctionID)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toOfferResponse(offer))
}

// HandleAcceptOffer handles POST /auctions/{auctionID}/offers/{offerID}/accept.
func (h *Handler) HandleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auctionID, offerID, ok := offerParams(w, r)
	if !ok {
		return
	}
	p, err := h.bidding.AcceptOffer(ctx, auctionID, offerID)
	if err != nil {
		h.fail(ctx, w, "accept offer failed", err, "auction_id", auctionID, "offer_id", offerID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPaymentResponse(p))
}

// HandleRejectOffer handles POST /auctions/{auctionID}/offers/{offerID}/reject.
func (h *Handler) HandleRejectOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auctionID, offerID, ok := offerParams(w, r)
	if !ok {
		return
	}
	if err := h.bidding.RejectOffer(ctx, auctionID, offerID); err != nil {
		h.fail(ctx, w, "reject offer failed", err, "auction_id", auctionID, "offer_id", offerID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetPayment handles GET /payments/{paymentID}. Payments are only
// visible to their buyer.
func (h *Handler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID, ok := paymentParam(w, r)
	if !ok {
		return
	}
	p, err := h.payments.GetPayment(ctx, paymentID)
	if err == nil && p.BidderID != requestcontext.UserID(ctx) {
		err = dErrors.New(dErrors.CodeNotFound, "payment not found")
	}
	if err != nil {
		h.fail(ctx, w, "get payment failed", err, "payment_id", paymentID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPaymentResponse(p))
}

// HandleCheckout handles POST /payments/{paymentID}/checkout.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID, ok := paymentParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CheckoutRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	p, err := h.payments.Initiate(ctx, payment.InitiateCommand{
		PaymentID:   paymentID,
		BuyerID:     requestcontext.UserID(ctx),
		CheckoutRef: req.CheckoutRef,
	})
	if err != nil {
		h.fail(ctx, w, "checkout failed", err, "payment_id", paymentID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPaymentResponse(p))
}

// HandleComplete handles the provider callback POST /payments/{paymentID}/complete.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID, ok := paymentParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CompleteRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.payments.Complete(ctx, payment.CompleteCommand{
		PaymentID:   paymentID,
		CheckoutRef: req.CheckoutRef,
		Paid:        *req.Paid,
	})
	if err != nil {
		h.fail(ctx, w, "complete payment failed", err, "payment_id", paymentID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCompleteResponse(result))
}

// HandlePutSetting handles PUT /settings/{key}.
func (h *Handler) HandlePutSetting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")
	inRange, known := tunableSettings[key]
	if !known {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown setting"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[SettingRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if !inRange(*req.Value) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "value is out of range"))
		return
	}
	if err := h.settings.SetNumeric(ctx, key, *req.Value); err != nil {
		h.fail(ctx, w, "update setting failed", err, "key", key)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePutContact handles PUT /users/me/contact.
func (h *Handler) HandlePutContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ContactRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.directory.Register(ctx, requestcontext.UserID(ctx), req.normalized); err != nil {
		h.fail(ctx, w, "register contact failed", dErrors.Wrap(err, dErrors.CodeInternal, "failed to save contact"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail logs at warn for client errors and error for everything else.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func auctionParam(w http.ResponseWriter, r *http.Request) (id.AuctionID, bool) {
	auctionID, err := id.ParseAuctionID(chi.URLParam(r, "auctionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.AuctionID{}, false
	}
	return auctionID, true
}

func offerParams(w http.ResponseWriter, r *http.Request) (id.AuctionID, id.OfferID, bool) {
	auctionID, ok := auctionParam(w, r)
	if !ok {
		return id.AuctionID{}, id.OfferID{}, false
	}
	offerID, err := id.ParseOfferID(chi.URLParam(r, "offerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.AuctionID{}, id.OfferID{}, false
	}
	return auctionID, offerID, true
}

func paymentParam(w http.ResponseWriter, r *http.Request) (id.PaymentID, bool) {
	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.PaymentID{}, false
	}
	return paymentID, true
}
