package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	activitystore "joinflow/internal/activity/store"
	groupservice "joinflow/internal/group/service"
	groupstore "joinflow/internal/group/store"
	"joinflow/internal/joinrequest/models"
	"joinflow/internal/joinrequest/service"
	"joinflow/internal/joinrequest/store"
	jwttoken "joinflow/internal/jwt_token"
	usermodels "joinflow/internal/user/models"
	userstore "joinflow/internal/user/store"
	id "joinflow/pkg/domain"
	txcontext "joinflow/pkg/platform/tx"
	"joinflow/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router    *chi.Mux
	jwt       *jwttoken.JWTService
	groups    *groupservice.Service
	adminTok  string
	candTok   string
	spacePath string
	candidate *usermodels.User
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := userstore.NewInMemory()
	activities := activitystore.NewInMemory()
	s.groups = groupservice.New(groupstore.NewInMemory(), activities, txcontext.NoTx{}, logger)
	svc := service.New(store.NewInMemory(), s.groups, users, activities, txcontext.NoTx{}, service.WithLogger(logger))

	s.jwt = jwttoken.NewJWTService("test-key", "joinflow-test")
	s.router = chi.NewRouter()
	New(svc, logger, jwttoken.NewJWTServiceAdapter(s.jwt)).Register(s.router)

	admin := s.createUser(users, "ada@example.com")
	s.candidate = s.createUser(users, "carl@example.com")
	s.adminTok = s.tokenFor(admin.ID)
	s.candTok = s.tokenFor(s.candidate.ID)

	space, err := s.groups.CreateSpace(ctx, "Research", admin.ID)
	s.Require().NoError(err)
	s.spacePath = "/spaces/" + space.ID.String()
}

func (s *HandlerSuite) createUser(users *userstore.InMemory, addr string) *usermodels.User {
	u, err := usermodels.NewUser("", addr, true, false, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(users.Create(context.Background(), u))
	return u
}

func (s *HandlerSuite) tokenFor(userID id.UserID) string {
	token, err := s.jwt.GenerateAccessToken(userID, 5*time.Minute)
	s.Require().NoError(err)
	return token
}

func (s *HandlerSuite) post(path string, body any, token string) *http.Request {
	return testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, path, body), token)
}

func (s *HandlerSuite) get(path, token string) *http.Request {
	return testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, path), token)
}

func (s *HandlerSuite) invite() *models.JoinRequest {
	rr := testutil.DoRequest(s.router, s.post(s.spacePath+"/invitations",
		map[string]string{"email": s.candidate.Email, "comment": "join us"}, s.adminTok))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[models.JoinRequest](s.T(), rr)
}

func (s *HandlerSuite) TestInviteAndAccept() {
	created := s.invite()
	s.Equal(models.KindInvite, created.Kind)
	s.NotEmpty(created.SecretToken)

	rr := testutil.DoRequest(s.router, s.get("/join_requests/"+created.SecretToken, s.candTok))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "outcome", "pending")

	rr = testutil.DoRequest(s.router, testutil.WithBearer(
		testutil.NewRequest(s.T(), http.MethodPost, "/join_requests/"+created.SecretToken+"/accept"), s.candTok))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "outcome", "accepted")

	rr = testutil.DoRequest(s.router, testutil.WithBearer(
		testutil.NewRequest(s.T(), http.MethodPost, "/join_requests/"+created.SecretToken+"/accept"), s.candTok))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
}

func (s *HandlerSuite) TestResponseNeverExposesInternalID() {
	created := s.invite()
	rr := testutil.DoRequest(s.router, s.get("/join_requests/"+created.SecretToken, s.candTok))
	testutil.AssertStatusOK(s.T(), rr)
	body := *testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.NotContains(body, "id")
	s.Equal(created.SecretToken, body["token"])
}

func (s *HandlerSuite) TestRequestDeclinedByAdmin() {
	rr := testutil.DoRequest(s.router, s.post(s.spacePath+"/join_requests", map[string]string{"comment": "hi"}, s.candTok))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	created := testutil.UnmarshalResponse[models.JoinRequest](s.T(), rr)
	s.Equal(models.KindRequest, created.Kind)

	rr = testutil.DoRequest(s.router, s.get(s.spacePath+"/join_requests", s.adminTok))
	testutil.AssertStatusOK(s.T(), rr)
	list := testutil.UnmarshalResponse[struct {
		JoinRequests []models.JoinRequest `json:"join_requests"`
	}](s.T(), rr)
	s.Require().Len(list.JoinRequests, 1)
	s.Equal(created.SecretToken, list.JoinRequests[0].SecretToken)

	decline := "/join_requests/" + created.SecretToken + "/decline"
	rr = testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodPost, decline), s.candTok))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")

	rr = testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodPost, decline), s.adminTok))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "outcome", "declined")
}

func (s *HandlerSuite) TestErrors() {
	s.Run("unknown token", func() {
		rr := testutil.DoRequest(s.router, s.get("/join_requests/nope", s.candTok))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
	s.Run("malformed group id", func() {
		rr := testutil.DoRequest(s.router, s.post("/spaces/not-a-uuid/join_requests", map[string]string{}, s.candTok))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
	s.Run("unknown role", func() {
		rr := testutil.DoRequest(s.router, s.post(s.spacePath+"/invitations",
			map[string]string{"email": s.candidate.Email, "role": "owner"}, s.adminTok))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
	s.Run("pending list is admin only", func() {
		rr := testutil.DoRequest(s.router, s.get(s.spacePath+"/join_requests", s.candTok))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})
	s.Run("unknown event", func() {
		rr := testutil.DoRequest(s.router, s.post("/events/"+uuid.NewString()+"/join_requests", map[string]string{}, s.candTok))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
	s.Run("requires auth", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/join_requests/anything"))
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}
