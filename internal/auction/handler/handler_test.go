package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"auctioneer/internal/auction/handler/mocks"
	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/service/bidding"
	"auctioneer/internal/auction/service/payment"
	"auctioneer/internal/auction/settlement"
	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/platform/middleware/identity"
)

type HandlerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	bidding   *mocks.MockBiddingService
	payments  *mocks.MockPaymentService
	settings  *mocks.MockSettingsService
	directory *mocks.MockContactDirectory
	router    chi.Router
	user      id.UserID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.bidding = mocks.NewMockBiddingService(s.ctrl)
	s.payments = mocks.NewMockPaymentService(s.ctrl)
	s.settings = mocks.NewMockSettingsService(s.ctrl)
	s.directory = mocks.NewMockContactDirectory(s.ctrl)
	s.user = id.NewUserID()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.bidding, s.payments, s.settings, s.directory, logger)
	s.router = chi.NewRouter()
	passthrough := func(next http.Handler) http.Handler { return next }
	h.Register(s.router, identity.RequireUser(logger), passthrough)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf io.Reader = http.NoBody
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			s.Require().NoError(err)
			raw = string(b)
		}
		buf = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set(identity.HeaderUserID, s.user.String())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func sampleAuction() *models.Auction {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return &models.Auction{
		ID:           id.NewAuctionID(),
		DomainID:     id.NewDomainID(),
		Status:       models.AuctionActive,
		StartTime:    start,
		EndTime:      start.Add(24 * time.Hour),
		MinPrice:     decimal.NewFromInt(10),
		MinIncrement: decimal.NewFromInt(5),
		ReservePrice: decimal.NewFromInt(60),
		CurrentBid:   decimal.NewFromInt(45),
		HighestBid:   decimal.NewFromInt(90),
	}
}

func (s *HandlerSuite) TestMissingUserIsUnauthorized() {
	req := httptest.NewRequest(http.MethodGet, "/auctions/"+id.NewAuctionID().String(), nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestGetAuctionHidesCeiling() {
	a := sampleAuction()
	s.bidding.EXPECT().GetAuction(gomock.Any(), a.ID).Return(a, nil)

	rec := s.do(http.MethodGet, "/auctions/"+a.ID.String(), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal("ACTIVE", body["status"])
	s.Equal("45", body["current_bid"])
	s.Equal(false, body["reserve_met"])
	s.NotContains(body, "highest_bid")
}

func (s *HandlerSuite) TestGetAuctionBadID() {
	rec := s.do(http.MethodGet, "/auctions/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("invalid_input", s.decode(rec)["error"])
}

func (s *HandlerSuite) TestCreateAuction() {
	a := sampleAuction()
	a.Status = models.AuctionDraft
	s.bidding.EXPECT().CreateAuction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, cmd bidding.CreateAuctionCommand) (*models.Auction, error) {
			s.Equal(a.DomainID, cmd.DomainID)
			s.True(decimal.NewFromInt(60).Equal(cmd.ReservePrice))
			s.Equal(30, cmd.ExpiryDuration)
			return a, nil
		})

	rec := s.do(http.MethodPost, "/auctions", map[string]any{
		"domain_id":       a.DomainID.String(),
		"start_time":      a.StartTime,
		"end_time":        a.EndTime,
		"min_price":       "10",
		"min_increment":   "5",
		"reserve_price":   "60",
		"lease_price":     "100",
		"expiry_duration": 30,
	})
	s.Require().Equal(http.StatusCreated, rec.Code)
	s.Equal("DRAFT", s.decode(rec)["status"])
}

func (s *HandlerSuite) TestCreateAuctionRejectsUnknownFields() {
	rec := s.do(http.MethodPost, "/auctions", `{"domain_id":"x","surprise":true}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("bad_request", s.decode(rec)["error"])
}

func (s *HandlerSuite) TestPlaceBid() {
	a := sampleAuction()
	s.bidding.EXPECT().PlaceBid(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, cmd bidding.PlaceBidCommand) (*bidding.BidResult, error) {
			s.Equal(s.user, cmd.BidderID)
			s.True(decimal.NewFromInt(70).Equal(cmd.Amount))
			return &bidding.BidResult{
				Bid:        &models.Bid{ID: id.NewBidID(), AuctionID: a.ID, BidderID: s.user, Amount: cmd.Amount},
				CurrentBid: decimal.NewFromInt(60),
				Winning:    true,
				ReserveMet: true,
			}, nil
		})

	rec := s.do(http.MethodPost, "/auctions/"+a.ID.String()+"/bids", map[string]any{"amount": "70"})
	s.Require().Equal(http.StatusCreated, rec.Code)
	body := s.decode(rec)
	s.Equal(true, body["winning"])
	s.Equal("60", body["current_bid"])
}

func (s *HandlerSuite) TestPlaceBidErrors() {
	a := sampleAuction()
	path := "/auctions/" + a.ID.String() + "/bids"

	s.Run("too low", func() {
		s.bidding.EXPECT().PlaceBid(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeBidTooLow, "bid must be at least 50"))
		rec := s.do(http.MethodPost, path, map[string]any{"amount": "20"})
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
		body := s.decode(rec)
		s.Equal("bid_too_low", body["error"])
		s.Equal("bid must be at least 50", body["error_description"])
	})

	s.Run("non-positive amount never reaches the service", func() {
		rec := s.do(http.MethodPost, path, map[string]any{"amount": "0"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("internal error hides detail", func() {
		s.bidding.EXPECT().PlaceBid(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "connection refused"))
		rec := s.do(http.MethodPost, path, map[string]any{"amount": "70"})
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.NotContains(s.decode(rec), "error_description")
	})
}

func (s *HandlerSuite) TestEligibility() {
	a := sampleAuction()
	s.bidding.EXPECT().Eligibility(gomock.Any(), a.ID, s.user).Return(&bidding.Eligibility{
		CanBid:     true,
		CanLease:   true,
		MinimumBid: decimal.NewFromInt(50),
		CurrentBid: decimal.NewFromInt(45),
	}, nil)

	rec := s.do(http.MethodGet, "/auctions/"+a.ID.String()+"/eligibility", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal(true, body["can_bid"])
	s.Equal(false, body["can_make_offer"])
	s.Equal("50", body["minimum_bid"])
}

func (s *HandlerSuite) TestOfferFlow() {
	a := sampleAuction()
	offerID := id.NewOfferID()

	s.bidding.EXPECT().MakeOffer(gomock.Any(), gomock.Any()).Return(&models.Offer{
		ID: offerID, AuctionID: a.ID, BidderID: s.user, Amount: decimal.NewFromInt(75), Status: models.OfferPending,
	}, nil)
	rec := s.do(http.MethodPost, "/auctions/"+a.ID.String()+"/offers", map[string]any{"amount": "75"})
	s.Require().Equal(http.StatusCreated, rec.Code)
	s.Equal(offerID.String(), s.decode(rec)["id"])

	s.bidding.EXPECT().RejectOffer(gomock.Any(), a.ID, offerID).Return(nil)
	rec = s.do(http.MethodPost, "/auctions/"+a.ID.String()+"/offers/"+offerID.String()+"/reject", nil)
	s.Equal(http.StatusNoContent, rec.Code)

	s.bidding.EXPECT().AcceptOffer(gomock.Any(), a.ID, offerID).
		Return(nil, dErrors.New(dErrors.CodeInvalidState, "offer is no longer pending"))
	rec = s.do(http.MethodPost, "/auctions/"+a.ID.String()+"/offers/"+offerID.String()+"/accept", nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *HandlerSuite) TestGetPaymentOnlyForBuyer() {
	p := &models.Payment{ID: id.NewPaymentID(), AuctionID: id.NewAuctionID(), BidderID: id.NewUserID(), Status: models.PaymentPending}
	s.payments.EXPECT().GetPayment(gomock.Any(), p.ID).Return(p, nil)

	rec := s.do(http.MethodGet, "/payments/"+p.ID.String(), nil)
	s.Equal(http.StatusNotFound, rec.Code)

	p.BidderID = s.user
	s.payments.EXPECT().GetPayment(gomock.Any(), p.ID).Return(p, nil)
	rec = s.do(http.MethodGet, "/payments/"+p.ID.String(), nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestCheckoutAndComplete() {
	p := &models.Payment{ID: id.NewPaymentID(), AuctionID: id.NewAuctionID(), BidderID: s.user, Status: models.PaymentProcessing, CheckoutRef: "chk_1"}

	s.payments.EXPECT().Initiate(gomock.Any(), payment.InitiateCommand{PaymentID: p.ID, BuyerID: s.user, CheckoutRef: "chk_1"}).Return(p, nil)
	rec := s.do(http.MethodPost, "/payments/"+p.ID.String()+"/checkout", map[string]any{"checkout_ref": " chk_1 "})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("PROCESSING", s.decode(rec)["status"])

	failed := *p
	failed.Status = models.PaymentFailed
	s.payments.EXPECT().Complete(gomock.Any(), payment.CompleteCommand{PaymentID: p.ID, CheckoutRef: "chk_1", Paid: false}).
		Return(payment.CompleteResult{Payment: &failed, Outcome: settlement.OutcomeFailed}, nil)

	// the provider callback carries no user header
	req := httptest.NewRequest(http.MethodPost, "/payments/"+p.ID.String()+"/complete",
		bytes.NewBufferString(`{"checkout_ref":"chk_1","paid":false}`))
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal("failed", body["outcome"])

	rec = s.do(http.MethodPost, "/payments/"+p.ID.String()+"/complete", `{"checkout_ref":"chk_1"}`)
	s.Equal(http.StatusBadRequest, rec.Code, "paid is required")
}

func (s *HandlerSuite) TestPutSetting() {
	s.settings.EXPECT().SetNumeric(gomock.Any(), models.SettingPendingThresholdSeconds, 900.0).Return(nil)
	rec := s.do(http.MethodPut, "/settings/"+models.SettingPendingThresholdSeconds, map[string]any{"value": 900})
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPut, "/settings/"+models.SettingLeasePriceThresholdPercentage, map[string]any{"value": 150})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/settings/SOMETHING_ELSE", map[string]any{"value": 1})
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestPutContact() {
	s.directory.EXPECT().Register(gomock.Any(), s.user, "jane@example.com").Return(nil)
	rec := s.do(http.MethodPut, "/users/me/contact", map[string]any{"email": " Jane@Example.com "})
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPut, "/users/me/contact", map[string]any{"email": "nope"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestListDomain() {
	d := &models.Domain{ID: id.NewDomainID(), Name: "example.com", Status: models.DomainListed}
	s.bidding.EXPECT().ListDomain(gomock.Any(), "example.com").Return(d, nil)
	rec := s.do(http.MethodPost, "/domains", map[string]any{"name": "example.com"})
	s.Require().Equal(http.StatusCreated, rec.Code)
	s.Equal("LISTED", s.decode(rec)["status"])

	s.bidding.EXPECT().GetDomain(gomock.Any(), d.ID).Return(nil, dErrors.New(dErrors.CodeNotFound, "domain not found"))
	rec = s.do(http.MethodGet, "/domains/"+d.ID.String(), nil)
	s.Equal(http.StatusNotFound, rec.Code)
}
