package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	activitymodels "joinflow/internal/activity/models"
	activitystore "joinflow/internal/activity/store"
	"joinflow/internal/group/models"
	"joinflow/internal/group/service"
	"joinflow/internal/group/store"
	jwttoken "joinflow/internal/jwt_token"
	id "joinflow/pkg/domain"
	txcontext "joinflow/pkg/platform/tx"
	"joinflow/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router     *chi.Mux
	jwt        *jwttoken.JWTService
	activities *activitystore.InMemory
	admin      id.UserID
	token      string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.activities = activitystore.NewInMemory()
	svc := service.New(store.NewInMemory(), s.activities, txcontext.NoTx{}, logger)
	s.jwt = jwttoken.NewJWTService("test-key", "joinflow-test")
	s.router = chi.NewRouter()
	New(svc, logger, jwttoken.NewJWTServiceAdapter(s.jwt)).Register(s.router)

	s.admin = id.UserID(uuid.New())
	token, err := s.jwt.GenerateAccessToken(s.admin, 5*time.Minute)
	s.Require().NoError(err)
	s.token = token
}

func (s *HandlerSuite) post(path string, body any, token string) *http.Request {
	return testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, path, body), token)
}

func (s *HandlerSuite) createSpace() *models.Space {
	rr := testutil.DoRequest(s.router, s.post("/spaces", map[string]string{"name": "Research"}, s.token))
	s.Require().Equal(http.StatusCreated, rr.Code)
	return testutil.UnmarshalResponse[models.Space](s.T(), rr)
}

func (s *HandlerSuite) TestCreateSpace() {
	space := s.createSpace()
	s.Equal("Research", space.Name)
	s.False(space.ID.IsNil())
}

func (s *HandlerSuite) TestCreateSpaceRequiresAuth() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/spaces", map[string]string{"name": "x"}))
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *HandlerSuite) TestCreateEventValidatesName() {
	rr := testutil.DoRequest(s.router, s.post("/events", map[string]string{"name": " "}, s.token))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
}

func (s *HandlerSuite) TestMembers() {
	space := s.createSpace()
	path := "/spaces/" + space.ID.String() + "/members"
	member := id.UserID(uuid.New())

	rr := testutil.DoRequest(s.router, s.post(path, map[string]string{"user_id": member.String(), "role": "member"}, s.token))
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

	rr = testutil.DoRequest(s.router, s.post(path, map[string]string{"user_id": member.String(), "role": "member"}, s.token))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")

	outsiderToken, err := s.jwt.GenerateAccessToken(member, 5*time.Minute)
	s.Require().NoError(err)
	rr = testutil.DoRequest(s.router, s.post(path, map[string]string{"user_id": uuid.NewString(), "role": "admin"}, outsiderToken))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")

	rr = testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, path), s.token))
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[struct {
		Members []models.Membership `json:"members"`
	}](s.T(), rr)
	s.Len(resp.Members, 2)
}

func (s *HandlerSuite) TestUnknownGroup() {
	path := "/events/" + uuid.NewString() + "/members"
	rr := testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, path), s.token))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestActivityFeed() {
	space := s.createSpace()
	ref := id.SpaceRef(space.ID)
	entry, err := activitymodels.NewEntry(id.JoinRequestRef(id.JoinRequestID(uuid.New())), ref,
		activitymodels.KeyJoinRequestRequest, activitymodels.Parameters{activitymodels.ParamUsername: "Ada"}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.activities.Append(s.T().Context(), entry))

	path := "/spaces/" + space.ID.String() + "/activity"
	rr := testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, path), s.token))
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[struct {
		Activity []struct {
			Key        string            `json:"key"`
			Parameters map[string]string `json:"parameters"`
		} `json:"activity"`
	}](s.T(), rr)
	s.Require().Len(resp.Activity, 1)
	s.Equal("join_request.request", resp.Activity[0].Key)
	s.Equal("Ada", resp.Activity[0].Parameters["username"])

	outsider, err := s.jwt.GenerateAccessToken(id.UserID(uuid.New()), 5*time.Minute)
	s.Require().NoError(err)
	rr = testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, path), outsider))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}
