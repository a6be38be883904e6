package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/bloghub/internal/common"
	"github.com/dmitrijs2005/bloghub/internal/server/models"
	"github.com/dmitrijs2005/bloghub/internal/server/services"
	"github.com/labstack/echo/v4"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

// listFilter is the JSON shape of the "filter" query parameter.
type listFilter struct {
	Title     string `json:"title"`
	AuthorID  string `json:"authorId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

const dateOnly = "2006-01-02"

func (s *Server) handleHealth(c echo.Context) error {
	r := s.health.Check(c.Request().Context())
	status := http.StatusOK
	if !r.Healthy {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, r)
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	u, err := s.users.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.Username == "" || req.Password == "" {
		return errorResponse(fmt.Errorf("%w: username and password are required", common.ErrorValidation))
	}

	token, err := s.users.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, loginResponse{AccessToken: token})
}

func (s *Server) handleListArticles(c echo.Context) error {
	page, err := intParam(c, "page", services.DefaultPage)
	if err != nil {
		return errorResponse(err)
	}
	limit, err := intParam(c, "limit", services.DefaultLimit)
	if err != nil {
		return errorResponse(err)
	}
	filter, err := parseFilter(c.QueryParam("filter"))
	if err != nil {
		return errorResponse(err)
	}

	p, err := s.articles.List(c.Request().Context(), page, limit, filter)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleGetArticle(c echo.Context) error {
	a, err := s.articles.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) handleCreateArticle(c echo.Context) error {
	var in models.NewArticle
	if err := decodeBody(c, &in); err != nil {
		return err
	}

	a, err := s.articles.Create(c.Request().Context(), in, identity(c).UserID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (s *Server) handleUpdateArticle(c echo.Context) error {
	var patch models.ArticlePatch
	if err := decodeBody(c, &patch); err != nil {
		return err
	}

	a, err := s.articles.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) handleDeleteArticle(c echo.Context) error {
	if err := s.articles.Delete(c.Request().Context(), c.Param("id"), identity(c).UserID); err != nil {
		return errorResponse(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleCoverUpload(c echo.Context) error {
	up, err := s.covers.UploadURL(c.Request().Context(), c.Param("id"), identity(c).UserID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, up)
}

func (s *Server) handleCoverDownload(c echo.Context) error {
	url, err := s.covers.DownloadURL(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(err)
	}
	return c.Redirect(http.StatusTemporaryRedirect, url)
}

// decodeBody strictly decodes a JSON request body into v.
func decodeBody(c echo.Context, v any) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errorResponse(fmt.Errorf("%w: malformed request body: %v", common.ErrorValidation, err))
	}
	return nil
}

// intParam reads a positive integer query parameter, falling back to def
// when it is absent.
func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", common.ErrorValidation, name)
	}
	return n, nil
}

// parseFilter decodes the filter query parameter. Dates are RFC 3339
// timestamps or plain dates; a plain endDate covers the whole day.
func parseFilter(raw string) (models.ArticleFilter, error) {
	if strings.TrimSpace(raw) == "" {
		return models.NewArticleFilter(), nil
	}

	var lf listFilter
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&lf); err != nil {
		return models.ArticleFilter{}, fmt.Errorf("%w: malformed filter: %v", common.ErrorValidation, err)
	}

	start, _, err := parseDate(lf.StartDate)
	if err != nil {
		return models.ArticleFilter{}, fmt.Errorf("%w: startDate: %v", common.ErrorValidation, err)
	}
	end, plain, err := parseDate(lf.EndDate)
	if err != nil {
		return models.ArticleFilter{}, fmt.Errorf("%w: endDate: %v", common.ErrorValidation, err)
	}
	if end != nil && plain {
		e := end.Add(24*time.Hour - time.Nanosecond)
		end = &e
	}

	return models.NewArticleFilter(
		models.TitleContains(strings.TrimSpace(lf.Title)),
		models.ByAuthor(strings.TrimSpace(lf.AuthorID)),
		models.PublishedBetween{Start: start, End: end},
	), nil
}

func parseDate(s string) (*time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false, nil
	}
	if t, err := time.Parse(dateOnly, s); err == nil {
		return &t, true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, false, err
	}
	return &t, false, nil
}
