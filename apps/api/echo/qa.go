package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/jinzhu/copier"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-qa/core/content"
	"github.com/trezcool/masomo-qa/core/qa"
	"github.com/trezcool/masomo-qa/core/user"
)

type qaApi struct {
	deps Deps
	svc  *qa.Service
}

func registerQAAPI(g *echo.Group, jwt, optionalJWT echo.MiddlewareFunc, deps Deps) {
	api := qaApi{deps: deps, svc: deps.QASvc}

	frontendNonce := nonceMiddleware(deps.Nonces, user.NonceActionFrontend)
	adminNonce := nonceMiddleware(deps.Nonces, user.NonceActionAdmin)
	anyNonce := nonceMiddleware(deps.Nonces, user.NonceActionFrontend, user.NonceActionAdmin)
	moderator := moderatorMiddleware(deps.UserSvc)

	qg := g.Group("/questions")
	qg.POST("", api.submitQuestion, jwt, frontendNonce)
	qg.GET("", api.listQuestions, jwt, moderator)
	qg.GET("/:id", api.retrieveQuestion, optionalJWT)
	qg.POST("/:id/approve", api.approve, jwt, moderator, adminNonce)
	qg.POST("/:id/disapprove", api.disapprove, jwt, moderator, adminNonce)
	qg.POST("/:id/reject", api.reject, jwt, moderator, adminNonce)
	qg.POST("/:id/answers", api.submitAnswer, jwt, anyNonce)

	g.GET("/content/:type/:id/questions", api.listApproved, optionalJWT, frontendNonce)
	g.GET("/approvals", api.checkApprovals, optionalJWT, frontendNonce)
	g.POST("/heartbeat", api.heartbeat, optionalJWT, frontendNonce)
}

type (
	QuestionResponse struct {
		ID           string       `json:"id"`
		Title        string       `json:"title"`
		Body         string       `json:"body"`
		AuthorID     string       `json:"author_id"`
		AuthorName   string       `json:"author_name"`
		RelatedType  content.Type `json:"related_type"`
		RelatedID    int64        `json:"related_id"`
		RelatedTitle string       `json:"related_title"`
		CourseID     *int64       `json:"course_id"`
		Status       qa.Status    `json:"status"`
		AnswerCount  int          `json:"answer_count"`
		CreatedAt    time.Time    `json:"created_at"`
		UpdatedAt    time.Time    `json:"updated_at"`
	}

	AnswerResponse struct {
		ID         string        `json:"id"`
		QuestionID string        `json:"question_id"`
		Title      string        `json:"title"`
		Body       string        `json:"body"`
		AuthorID   string        `json:"author_id"`
		AuthorName string        `json:"author_name"`
		Kind       qa.AnswerKind `json:"kind"`
		CreatedAt  time.Time     `json:"created_at"`
	}

	QuestionDetailResponse struct {
		QuestionResponse
		Answers []AnswerResponse `json:"answers"`
	}

	QuestionPageResponse struct {
		Questions   []QuestionResponse `json:"questions"`
		Total       int                `json:"total"`
		CurrentPage int                `json:"current_page"`
		TotalPages  int                `json:"total_pages"`
		HasMore     bool               `json:"has_more"`
	}

	ApprovalsResponse struct {
		NewApprovals bool  `json:"new_approvals"`
		CurrentTime  int64 `json:"current_time"`
	}

	HeartbeatRequest struct {
		CheckApprovals *struct {
			LastCheck int64 `json:"last_check"`
			PostID    int64 `json:"post_id"`
		} `json:"qa_check_approvals"`
	}

	HeartbeatResponse struct {
		NewApprovals bool  `json:"qa_new_approvals,omitempty"`
		CurrentTime  int64 `json:"qa_current_time,omitempty"`
	}
)

// Handlers

func (api *qaApi) submitQuestion(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}

	var data qa.NewQuestion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}

	q, err := api.svc.SubmitQuestion(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting question")
	}
	return respond(ctx, http.StatusCreated, api.questionResponse(ctx.Request().Context(), q, newNameCache(api.deps.UserSvc)))
}

func (api *qaApi) listQuestions(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}

	var filter qa.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	var pp pageParams
	if err = ctx.Bind(&pp); err != nil {
		return errors.Wrap(err, "binding to pageParams")
	}
	ordering, err := bindOrdering(ctx, qa.OrderingFields...)
	if err != nil {
		return err
	}

	page, err := api.svc.ListQuestions(ctx.Request().Context(), usr, filter, ordering, pp.pagination())
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	return respond(ctx, http.StatusOK, api.pageResponse(ctx.Request().Context(), page))
}

func (api *qaApi) retrieveQuestion(ctx echo.Context) error {
	viewer, err := getContextViewer(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}

	q, answers, err := api.svc.GetQuestion(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting question")
	}

	names := newNameCache(api.deps.UserSvc)
	resp := QuestionDetailResponse{
		QuestionResponse: api.questionResponse(ctx.Request().Context(), q, names),
		Answers:          make([]AnswerResponse, 0, len(answers)),
	}
	for _, a := range answers {
		var ar AnswerResponse
		if err = copier.Copy(&ar, &a); err != nil {
			return errors.Wrap(err, "copying answer")
		}
		ar.AuthorName = names.get(a.AuthorID)
		resp.Answers = append(resp.Answers, ar)
	}
	return respond(ctx, http.StatusOK, resp)
}

func (api *qaApi) approve(ctx echo.Context) error {
	return api.moderate(ctx, api.svc.Approve)
}

func (api *qaApi) disapprove(ctx echo.Context) error {
	return api.moderate(ctx, api.svc.Disapprove)
}

func (api *qaApi) reject(ctx echo.Context) error {
	return api.moderate(ctx, api.svc.Reject)
}

type moderateFunc func(ctx context.Context, moderator user.User, id string) (qa.Question, error)

func (api *qaApi) moderate(ctx echo.Context, transition moderateFunc) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	q, err := transition(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "moderating question")
	}
	return respond(ctx, http.StatusOK, api.questionResponse(ctx.Request().Context(), q, newNameCache(api.deps.UserSvc)))
}

func (api *qaApi) submitAnswer(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}

	var data qa.NewAnswer
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnswer")
	}

	a, err := api.svc.SubmitAnswer(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting answer")
	}

	var resp AnswerResponse
	if err = copier.Copy(&resp, &a); err != nil {
		return errors.Wrap(err, "copying answer")
	}
	resp.AuthorName = usr.DisplayName()
	return respond(ctx, http.StatusCreated, resp)
}

func (api *qaApi) listApproved(ctx echo.Context) error {
	typ := content.Type(ctx.Param("type"))
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if !typ.IsValid() || err != nil || id <= 0 {
		return content.ErrNotFound
	}

	var pp pageParams
	if err = ctx.Bind(&pp); err != nil {
		return errors.Wrap(err, "binding to pageParams")
	}

	page, err := api.svc.ListApproved(ctx.Request().Context(), typ, id, pp.pagination())
	if err != nil {
		return errors.Wrap(err, "listing approved questions")
	}
	return respond(ctx, http.StatusOK, api.pageResponse(ctx.Request().Context(), page))
}

func (api *qaApi) checkApprovals(ctx echo.Context) error {
	since, err := parseMillis("last_check", ctx.QueryParam("last_check"))
	if err != nil {
		return err
	}
	ok, now, err := api.svc.CheckNewApprovals(ctx.Request().Context(), since)
	if err != nil {
		return errors.Wrap(err, "checking approvals")
	}
	return respond(ctx, http.StatusOK, ApprovalsResponse{NewApprovals: ok, CurrentTime: toMillis(now)})
}

// heartbeat answers the periodic poll of open question pages.
// The response is empty unless something was approved since last_check.
func (api *qaApi) heartbeat(ctx echo.Context) error {
	var data HeartbeatRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to HeartbeatRequest")
	}

	var resp HeartbeatResponse
	if data.CheckApprovals != nil {
		ok, now, err := api.svc.CheckNewApprovals(ctx.Request().Context(), fromMillis(data.CheckApprovals.LastCheck))
		if err != nil {
			return errors.Wrap(err, "checking approvals")
		}
		if ok {
			resp = HeartbeatResponse{NewApprovals: true, CurrentTime: toMillis(now)}
		}
	}
	return respond(ctx, http.StatusOK, resp)
}

// Helpers

func (api *qaApi) questionResponse(ctx context.Context, q qa.Question, names *nameCache) QuestionResponse {
	var resp QuestionResponse
	_ = copier.Copy(&resp, &q)
	resp.AuthorName = names.get(q.AuthorID)
	resp.RelatedTitle = api.svc.Related(ctx, q).Title
	return resp
}

func (api *qaApi) pageResponse(ctx context.Context, page qa.QuestionPage) QuestionPageResponse {
	names := newNameCache(api.deps.UserSvc)
	resp := QuestionPageResponse{
		Questions:   make([]QuestionResponse, 0, len(page.Questions)),
		Total:       page.Total,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
		HasMore:     page.HasMore(),
	}
	for _, q := range page.Questions {
		resp.Questions = append(resp.Questions, api.questionResponse(ctx, q, names))
	}
	return resp
}

// nameCache resolves user display names once per request.
type nameCache struct {
	svc   user.ServiceInterface
	names map[string]string
}

func newNameCache(svc user.ServiceInterface) *nameCache {
	return &nameCache{svc: svc, names: make(map[string]string)}
}

func (nc *nameCache) get(id string) string {
	if name, ok := nc.names[id]; ok {
		return name
	}
	var name string
	if usr, err := nc.svc.GetByID(id); err == nil {
		name = usr.DisplayName()
	}
	nc.names[id] = name
	return name
}
