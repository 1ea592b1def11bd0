package handler

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	investmentapp "github.com/tffhost/backend/internal/application/investment"
	"github.com/tffhost/backend/internal/domain/investment"
	"github.com/tffhost/backend/internal/interfaces/http/dto"
	"github.com/tffhost/backend/tests/testutil"
)

func newAgreementHandler(repo *testutil.AgreementRepository) *AgreementHandler {
	service := investmentapp.NewService(repo, new(testutil.MockDocumentStore), []byte("secret"), zap.NewNop())
	return NewAgreementHandler(service)
}

func existingAgreement(t *testing.T, username string, status investment.AgreementStatus) *investment.Agreement {
	t.Helper()
	a, err := investment.NewAgreement(username, investment.TokenTFT, "EUR",
		decimal.NewFromInt(1500), decimal.NewFromInt(30000), 2, "Alice", "Main street 1")
	require.NoError(t, err)
	a.Status = status
	a.ClearDomainEvents()
	return a
}

func TestAgreementHandler_CreateAgreement(t *testing.T) {
	repo := testutil.NewAgreementRepository()
	h := newAgreementHandler(repo)

	valid := map[string]any{
		"username":        testutil.TestUsername,
		"token":           "TFT",
		"currency":        "EUR",
		"amount":          "1500",
		"token_count":     "30000.25",
		"token_precision": 2,
		"name":            "Alice",
		"address":         "Main street 1",
	}
	unknownToken := map[string]any{}
	for k, v := range valid {
		unknownToken[k] = v
	}
	unknownToken["token"] = "BTC"

	testutil.RunHTTPTestCases(t, h.CreateAgreement, []testutil.HTTPTestCase{
		{
			Name:           "unknown token",
			Method:         http.MethodPost,
			Body:           unknownToken,
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		},
		{
			Name:           "creates the agreement",
			Method:         http.MethodPost,
			Body:           valid,
			ExpectedStatus: http.StatusCreated,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				data := testutil.ResponseData(t, tc)
				assert.Equal(t, "CREATED", data["status_name"])
				assert.Equal(t, "30000.25", data["token_count"])
				require.Len(t, repo.Agreements, 1)
			},
		},
	})
}

func TestAgreementHandler_MarkAgreementPaid(t *testing.T) {
	created := existingAgreement(t, "alice", investment.AgreementStatusCreated)
	signed := existingAgreement(t, "bob", investment.AgreementStatusSigned)
	repo := testutil.NewAgreementRepository(created, signed)
	h := newAgreementHandler(repo)

	testutil.RunHTTPTestCases(t, h.MarkAgreementPaid, []testutil.HTTPTestCase{
		{
			Name:           "unsigned agreement",
			Method:         http.MethodPost,
			Params:         map[string]string{"id": created.ID.String()},
			ExpectedStatus: http.StatusUnprocessableEntity,
			ExpectedCode:   "CANNOT_CHANGE_STATUS",
		},
		{
			Name:           "signed agreement is paid",
			Method:         http.MethodPost,
			Params:         map[string]string{"id": signed.ID.String()},
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				assert.Equal(t, "PAID", testutil.ResponseData(t, tc)["status_name"])
				assert.Equal(t, investment.AgreementStatusPaid, repo.Agreements[signed.ID].Status)
				assert.NotEmpty(t, repo.Tasks())
			},
		},
		{
			Name:           "missing agreement",
			Method:         http.MethodPost,
			Params:         map[string]string{"id": testutil.NewTestUUID("missing-agreement").String()},
			ExpectedStatus: http.StatusNotFound,
			ExpectedCode:   dto.ErrCodeNotFound,
		},
	})
}

func TestAgreementHandler_UpdateAgreementStatus(t *testing.T) {
	created := existingAgreement(t, "alice", investment.AgreementStatusCreated)
	canceled := existingAgreement(t, "bob", investment.AgreementStatusCanceled)
	h := newAgreementHandler(testutil.NewAgreementRepository(created, canceled))

	testutil.RunHTTPTestCases(t, h.UpdateAgreementStatus, []testutil.HTTPTestCase{
		{
			Name:           "payment goes through mark paid",
			Method:         http.MethodPut,
			Params:         map[string]string{"id": created.ID.String()},
			Body:           map[string]int{"status": int(investment.AgreementStatusPaid)},
			ExpectedStatus: http.StatusUnprocessableEntity,
			ExpectedCode:   "INVALID_STATUS",
		},
		{
			Name:           "canceled agreement",
			Method:         http.MethodPut,
			Params:         map[string]string{"id": canceled.ID.String()},
			Body:           map[string]int{"status": int(investment.AgreementStatusSigned)},
			ExpectedStatus: http.StatusUnprocessableEntity,
			ExpectedCode:   "ORDER_CANCELED",
		},
		{
			Name:           "cancels a created agreement",
			Method:         http.MethodPut,
			Params:         map[string]string{"id": created.ID.String()},
			Body:           map[string]int{"status": int(investment.AgreementStatusCanceled)},
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				assert.Equal(t, "CANCELED", testutil.ResponseData(t, tc)["status_name"])
			},
		},
	})
}

func TestAgreementHandler_GetAgreement(t *testing.T) {
	a := existingAgreement(t, "alice", investment.AgreementStatusSigned)
	h := newAgreementHandler(testutil.NewAgreementRepository(a))

	testutil.RunHTTPTestCases(t, h.GetAgreement, []testutil.HTTPTestCase{
		{
			Name:           "found",
			Params:         map[string]string{"id": a.ID.String()},
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				assert.Equal(t, a.ID.String(), testutil.ResponseData(t, tc)["id"])
			},
		},
		{
			Name:           "not found",
			Params:         map[string]string{"id": testutil.NewTestUUID("other-agreement").String()},
			ExpectedStatus: http.StatusNotFound,
			ExpectedCode:   dto.ErrCodeNotFound,
		},
		{
			Name:           "malformed id",
			Params:         map[string]string{"id": "abc"},
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeInvalidInput,
		},
	})
}

func TestAgreementHandler_ListMyAgreements(t *testing.T) {
	repo := testutil.NewAgreementRepository(
		existingAgreement(t, testutil.TestUsername, investment.AgreementStatusPaid),
		existingAgreement(t, "someone.else", investment.AgreementStatusPaid),
	)

	testutil.RunHTTPTestCase(t, newAgreementHandler(repo).ListMyAgreements, testutil.HTTPTestCase{
		Username:       testutil.TestUsername,
		ExpectedStatus: http.StatusOK,
		Validate: func(t *testing.T, tc *testutil.TestContext) {
			items, ok := testutil.JSONResponse(t, tc)["data"].([]any)
			require.True(t, ok)
			require.Len(t, items, 1)
			assert.Equal(t, testutil.TestUsername, items[0].(map[string]any)["username"])
		},
	})
}
