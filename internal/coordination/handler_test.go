package coordination

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifelink_backend/internal/common"
	"lifelink_backend/internal/domain"
)

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Code   string          `json:"code"`
}

func (s *EngineSuite) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	s.Require().NoError(common.RegisterGinValidations())
	r := gin.New()
	fakeAuth := func(c *gin.Context) {
		c.Set(common.UserIDKey, c.GetHeader("X-Test-User"))
		if u, err := s.store.GetUser(c.Request.Context(), c.GetHeader("X-Test-User")); err == nil {
			c.Set(common.UserRoleKey, string(u.Role))
		}
		c.Next()
	}
	adminOnly := func(c *gin.Context) {
		if common.GetUserRoleFromContext(c) != string(domain.RoleAdmin) {
			common.RespondWithError(c, common.ErrForbidden)
			return
		}
		c.Next()
	}
	NewHandler(s.engine, zap.NewNop()).RegisterRoutes(r.Group("/api/v1"), fakeAuth, adminOnly)
	return r
}

func (s *EngineSuite) do(r http.Handler, method, path, user string, body interface{}) (int, envelope) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (s *EngineSuite) TestHandlerStockPickupFlow() {
	s.seedParties()
	r := s.router()

	code, env := s.do(r, http.MethodPost, "/api/v1/requests", "patient", map[string]interface{}{
		"bloodGroup": "B+",
		"urgency":    "Emergency",
	})
	s.Require().Equal(http.StatusCreated, code)
	var created domain.Request
	s.Require().NoError(json.Unmarshal(env.Data, &created))
	s.Equal(domain.StatusPending, created.Status)

	code, _ = s.do(r, http.MethodPost, "/api/v1/requests/"+created.ID+"/fulfill", "patient", map[string]string{"bloodGroup": "B+"})
	s.Equal(http.StatusForbidden, code)

	code, env = s.do(r, http.MethodPost, "/api/v1/requests/"+created.ID+"/fulfill", "bank", map[string]string{"bloodGroup": "B+"})
	s.Require().Equal(http.StatusOK, code)
	var reserved domain.Request
	s.Require().NoError(json.Unmarshal(env.Data, &reserved))
	s.Regexp(sixDigits, reserved.PickupCode)

	code, env = s.do(r, http.MethodPost, "/api/v1/requests/"+created.ID+"/verify-pickup", "bank", map[string]string{"code": "000000"})
	s.Equal(http.StatusUnprocessableEntity, code)
	s.Equal("CODE_MISMATCH", env.Code)

	code, _ = s.do(r, http.MethodPost, "/api/v1/requests/"+created.ID+"/verify-pickup", "bank", map[string]string{"code": reserved.PickupCode})
	s.Equal(http.StatusOK, code)

	code, env = s.do(r, http.MethodPost, "/api/v1/requests/"+created.ID+"/verify-pickup", "bank", map[string]string{"code": reserved.PickupCode})
	s.Equal(http.StatusConflict, code)
	s.Equal("INVALID_STATE", env.Code)
}

func (s *EngineSuite) TestHandlerRejectsInvalidBody() {
	s.seedParties()
	r := s.router()

	code, env := s.do(r, http.MethodPost, "/api/v1/requests", "patient", map[string]string{"bloodGroup": "B+"})
	s.Equal(http.StatusUnprocessableEntity, code)
	s.Equal("VALIDATION_ERROR", env.Code)

	code, env = s.do(r, http.MethodPut, "/api/v1/users/me/availability", "donor", map[string]interface{}{})
	s.Equal(http.StatusUnprocessableEntity, code)
	s.Equal("VALIDATION_ERROR", env.Code)
}
