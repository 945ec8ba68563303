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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"doctrack/internal/routing/handler/mocks"
	"doctrack/internal/routing/models"
	dErrors "doctrack/pkg/domain-errors"
	"doctrack/pkg/requestcontext"
	"doctrack/pkg/testutil"
)

type RoutingHandlerSuite struct {
	suite.Suite
	svc    *mocks.MockService
	router chi.Router
	caller requestcontext.Identity
}

func TestRoutingHandlerSuite(t *testing.T) {
	suite.Run(t, new(RoutingHandlerSuite))
}

var (
	t0  = time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	bac = models.Actor{Name: "R. Santos", Department: "BAC", Role: "staff"}
)

func (s *RoutingHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	s.caller = requestcontext.Identity{Name: bac.Name, Department: bac.Department, Role: bac.Role}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.svc, logger)
	s.router = chi.NewRouter()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.caller.IsZero() {
				r = r.WithContext(requestcontext.WithActor(r.Context(), s.caller))
			}
			next.ServeHTTP(w, r)
		})
	})
	h.Register(s.router)
}

func (s *RoutingHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			s.Require().NoError(err)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](s *RoutingHandlerSuite, w *httptest.ResponseRecorder) T {
	var out T
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func sampleDoc() *models.Document {
	date := time.Date(2024, 8, 30, 0, 0, 0, 0, time.UTC)
	return &models.Document{
		ID:                 7,
		PublicID:           "DOC-1A2B3C4D",
		Title:              "Drainage canal",
		DocType:            "Purchase Request",
		CurrentDepartment:  "BAC",
		ImplementingOffice: "BAC",
		DateReceived:       &date,
		Amount:             decimal.NewNullDecimal(decimal.RequireFromString("125000.50")),
		ReleasedBy:         "J. Cruz",
		Status:             "Request for PR",
		CreatedAt:          t0,
		UpdatedAt:          t0,
	}
}

func (s *RoutingHandlerSuite) TestCreate() {
	s.svc.EXPECT().CreateAndRelease(gomock.Any(), bac, gomock.Any()).
		DoAndReturn(func(_ any, _ models.Actor, req models.CreateRequest) (*models.Document, error) {
			s.Equal("Drainage canal", req.Title)
			s.Require().NotNil(req.DateReceived)
			s.Equal("2024-08-30", req.DateReceived.Format(DateLayout))
			s.True(req.Amount.Valid)
			s.Equal("125000.5", req.Amount.Decimal.String())
			return sampleDoc(), nil
		})

	w := s.do(http.MethodPost, "/documents", `{
		"title": " Drainage canal ",
		"doc_type": "purchase request",
		"implementing_office": "BAC",
		"date_received": "2024-08-30",
		"amount": "125000.50",
		"status": "Request for PR"
	}`)

	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal("/documents/DOC-1A2B3C4D", w.Header().Get("Location"))
	resp := decode[map[string]any](s, w)
	s.Equal("DOC-1A2B3C4D", resp["document_id"])
	s.Equal("2024-08-30", resp["date_received"])
	s.Equal("125000.5", resp["amount"])
}

func (s *RoutingHandlerSuite) TestCreateRejectsBadDate() {
	w := s.do(http.MethodPost, "/documents", `{"title":"x","doc_type":"Letter","implementing_office":"BAC","status":"Pending","date_received":"30/08/2024"}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "YYYY-MM-DD")
}

func (s *RoutingHandlerSuite) TestCreateRejectsUnknownField() {
	w := s.do(http.MethodPost, "/documents", `{"title":"x","current_department":"Mayor"}`)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RoutingHandlerSuite) TestUnauthenticated() {
	s.caller = requestcontext.Identity{}
	w := s.do(http.MethodGet, "/documents", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RoutingHandlerSuite) TestList() {
	s.svc.EXPECT().ListVisible(gomock.Any(), "BAC").Return([]*models.Document{sampleDoc()}, nil)

	w := s.do(http.MethodGet, "/documents", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	resp := decode[ListResponse](s, w)
	s.Equal(1, resp.Total)
	s.Equal("DOC-1A2B3C4D", resp.Documents[0].DocumentID)
}

func (s *RoutingHandlerSuite) TestTraceEmptyQuery() {
	s.svc.EXPECT().Trace(gomock.Any(), "BAC", "").
		Return(nil, dErrors.New(dErrors.CodeValidation, "search query is required"))

	w := s.do(http.MethodGet, "/documents/trace", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RoutingHandlerSuite) TestGetByPublicID() {
	s.svc.EXPECT().ResolveRecordID(gomock.Any(), "DOC-1A2B3C4D").Return(int64(7), nil)
	s.svc.EXPECT().Get(gomock.Any(), "BAC", int64(7)).Return(sampleDoc(), nil)

	w := s.do(http.MethodGet, "/documents/DOC-1A2B3C4D", nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RoutingHandlerSuite) TestGetInvisibleIsNotFound() {
	s.svc.EXPECT().ResolveRecordID(gomock.Any(), "7").Return(int64(7), nil)
	s.svc.EXPECT().Get(gomock.Any(), "BAC", int64(7)).Return(nil, dErrors.New(dErrors.CodeNotFound, "document not found"))

	w := s.do(http.MethodGet, "/documents/7", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RoutingHandlerSuite) TestHistory() {
	settled := t0.Add(3 * time.Hour)
	s.svc.EXPECT().ResolveRecordID(gomock.Any(), "7").Return(int64(7), nil)
	s.svc.EXPECT().History(gomock.Any(), "BAC", int64(7)).Return(sampleDoc(), []models.AuditEvent{
		{ID: 1, RecordID: 7, Action: models.ActionRelease, Status: "Request for PR", ToDepartment: "BAC", ActionBy: "J. Cruz", Timestamp: t0},
		{ID: 2, RecordID: 7, Action: models.ActionReceived, Status: "For Payment", FromDepartment: "BAC", ToDepartment: "Accounting",
			ActionBy: "R. Santos", Timestamp: t0.Add(time.Hour),
			Settlement: models.Settlement{State: models.SettlementSettled, By: "A. Reyes", At: &settled}},
	}, nil)

	w := s.do(http.MethodGet, "/documents/7/history", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	resp := decode[HistoryResponse](s, w)
	s.Equal("DOC-1A2B3C4D", resp.DocumentID)
	s.Require().Len(resp.Events, 2)
	s.Equal("received", resp.Events[1].ActionType)
	s.Equal("A. Reyes", resp.Events[1].ReceivedBy)
	s.False(resp.Events[1].Pending)
}

func (s *RoutingHandlerSuite) TestHistoryHiddenDocument() {
	s.svc.EXPECT().ResolveRecordID(gomock.Any(), "7").Return(int64(7), nil)
	s.svc.EXPECT().History(gomock.Any(), "BAC", int64(7)).
		Return(nil, nil, dErrors.New(dErrors.CodeNotFound, "document not found"))

	w := s.do(http.MethodGet, "/documents/7/history", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RoutingHandlerSuite) TestTransfer() {
	s.svc.EXPECT().ResolveRecordID(gomock.Any(), "7").Return(int64(7), nil)
	s.svc.EXPECT().Transfer(gomock.Any(), bac, int64(7), "Accounting", "For Payment").Return(sampleDoc(), nil)

	w := s.do(http.MethodPost, "/documents/7/transfer", TransferRequest{ToDepartment: " Accounting ", Status: "For Payment"})
	s.Equal(http.StatusOK, w.Code)
}

func (s *RoutingHandlerSuite) TestTransferRequiresDepartment() {
	s.svc.EXPECT().ResolveRecordID(gomock.Any(), "7").Return(int64(7), nil)

	w := s.do(http.MethodPost, "/documents/7/transfer", TransferRequest{Status: "For Payment"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RoutingHandlerSuite) TestTransferToClosedIsConflict() {
	s.svc.EXPECT().ResolveRecordID(gomock.Any(), "7").Return(int64(7), nil)
	s.svc.EXPECT().Transfer(gomock.Any(), bac, int64(7), "Accounting", "For Payment").
		Return(nil, dErrors.New(dErrors.CodeInvalidTransition, "document DOC-1A2B3C4D is closed"))

	w := s.do(http.MethodPost, "/documents/7/transfer", TransferRequest{ToDepartment: "Accounting", Status: "For Payment"})
	s.Equal(http.StatusConflict, w.Code)
	s.Contains(w.Body.String(), "invalid_transition")
}

func (s *RoutingHandlerSuite) TestReceive() {
	s.svc.EXPECT().Receive(gomock.Any(), bac, int64(42)).Return(sampleDoc(), nil)
	w := s.do(http.MethodPost, "/transfers/42/receive", nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RoutingHandlerSuite) TestReceiveBadEventID() {
	w := s.do(http.MethodPost, "/transfers/abc/receive", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RoutingHandlerSuite) TestReceiveNotPending() {
	s.svc.EXPECT().Receive(gomock.Any(), bac, int64(42)).
		Return(nil, dErrors.New(dErrors.CodeNotPendingTransfer, "no pending transfer"))
	w := s.do(http.MethodPost, "/transfers/42/receive", nil)
	s.Equal(http.StatusConflict, w.Code)
	s.Contains(w.Body.String(), "not_pending_transfer")
}

func (s *RoutingHandlerSuite) TestPending() {
	s.svc.EXPECT().PendingTransfers(gomock.Any(), "BAC").Return([]models.AuditEvent{
		{ID: 3, RecordID: 7, Action: models.ActionTransfer, ToDepartment: "BAC", Timestamp: t0,
			Settlement: models.Settlement{State: models.SettlementPending}},
	}, nil)

	w := s.do(http.MethodGet, "/transfers/pending", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	resp := decode[PendingResponse](s, w)
	s.Equal("BAC", resp.Department)
	s.True(resp.Transfers[0].Pending)
}

func (s *RoutingHandlerSuite) TestEditPassesOnlySuppliedFields() {
	s.svc.EXPECT().ResolveRecordID(gomock.Any(), "7").Return(int64(7), nil)
	s.svc.EXPECT().Edit(gomock.Any(), bac, int64(7), gomock.Any()).
		DoAndReturn(func(_ any, _ models.Actor, _ int64, req models.EditRequest) (*models.Document, error) {
			s.Require().NotNil(req.Status)
			s.Equal("For Canvass", *req.Status)
			s.Require().NotNil(req.Amount)
			s.False(req.Amount.Valid, "null clears the amount")
			s.Nil(req.Title)
			s.Nil(req.DateReceived)
			return sampleDoc(), nil
		})

	w := s.do(http.MethodPatch, "/documents/7", `{"status":" For Canvass ","amount":null}`)
	s.Equal(http.StatusOK, w.Code, w.Body.String())
}

func (s *RoutingHandlerSuite) TestEditRejectsNullText() {
	s.svc.EXPECT().ResolveRecordID(gomock.Any(), "7").Return(int64(7), nil)
	w := s.do(http.MethodPatch, "/documents/7", `{"title":null}`)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RoutingHandlerSuite) TestEditForbidden() {
	s.svc.EXPECT().ResolveRecordID(gomock.Any(), "7").Return(int64(7), nil)
	s.svc.EXPECT().Edit(gomock.Any(), bac, int64(7), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeForbidden, "only the custodian department may edit this document"))

	w := s.do(http.MethodPatch, "/documents/7", `{"title":"New"}`)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RoutingHandlerSuite) TestClose() {
	s.svc.EXPECT().ResolveRecordID(gomock.Any(), "7").Return(int64(7), nil)
	doc := sampleDoc()
	doc.Status = models.StatusClosed
	s.svc.EXPECT().Close(gomock.Any(), bac, int64(7)).Return(doc, nil)

	w := s.do(http.MethodPost, "/documents/7/close", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Closed", decode[DocumentResponse](s, w).Status)
}

func (s *RoutingHandlerSuite) TestDelete() {
	s.svc.EXPECT().ResolveRecordID(gomock.Any(), "7").Return(int64(7), nil)
	s.svc.EXPECT().Delete(gomock.Any(), bac, int64(7)).Return(nil)

	w := s.do(http.MethodDelete, "/documents/7", nil)
	s.Equal(http.StatusNoContent, w.Code)
}

func (s *RoutingHandlerSuite) TestStorageFailureHidesDetail() {
	s.svc.EXPECT().Summary(gomock.Any(), "BAC").
		Return(models.Summary{}, dErrors.New(dErrors.CodeStorage, "dial tcp 10.0.0.5:5432: refused"))

	w := s.do(http.MethodGet, "/documents/summary", nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.NotContains(w.Body.String(), "10.0.0.5")
}

func TestAdminGuardWrapsDeleteOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	}
	router := testutil.Mount(New(svc, logger, WithAdminGuard(deny)))
	id := requestcontext.Identity{Name: "x", Department: "BAC"}

	svc.EXPECT().ResolveRecordID(gomock.Any(), "7").Return(int64(7), nil)
	svc.EXPECT().Close(gomock.Any(), gomock.Any(), int64(7)).Return(sampleDoc(), nil)

	w := testutil.DoRequest(router, testutil.WithActor(httptest.NewRequest(http.MethodDelete, "/documents/7", nil), id))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutil.DoRequest(router, testutil.WithActor(httptest.NewRequest(http.MethodPost, "/documents/7/close", nil), id))
	require.Equal(t, http.StatusOK, w.Code)
}
