package handlers

import (
	"strconv"
	"strings"
	"time"

	"devsocial/pkg/auth"
	"devsocial/pkg/envelope"
	"devsocial/pkg/middleware"
	"devsocial/pkg/models"
	"devsocial/pkg/repository"
	"devsocial/pkg/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
)

// ──────────────────────────────────────────────
// SocialHandler: posts, engagement and comments over HTTP
// ──────────────────────────────────────────────

type SocialHandler struct {
	svc     *services.Services
	follows repository.FollowRepository
	log     *zap.Logger

	// WriteLimit caps write requests per account per minute.
	WriteLimit int
}

func NewSocial(svc *services.Services, follows repository.FollowRepository, log *zap.Logger) *SocialHandler {
	return &SocialHandler{svc: svc, follows: follows, log: log.Named("http"), WriteLimit: 60}
}

func (h *SocialHandler) Register(r fiber.Router, v auth.Verifier) {
	required := middleware.RequireAuth(v)
	optional := middleware.OptionalAuth(v)
	write := limiter.New(limiter.Config{
		Max:        h.WriteLimit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := middleware.Identity(c); id.Authenticated() {
				return "account:" + strconv.FormatInt(id.ID, 10)
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(envelope.Fail("too many requests"))
		},
	})

	posts := r.Group("/posts")
	posts.Get("/", optional, h.ListPublic)
	posts.Get("/feed", required, h.ListPersonal)
	posts.Get("/search", optional, h.Search)
	posts.Get("/:id", optional, h.Get)
	posts.Post("/", required, write, h.Create)
	posts.Put("/:id", required, write, h.Update)
	posts.Delete("/:id", required, write, h.Delete)
	posts.Post("/:id/pin", required, write, h.Pin)
	posts.Post("/:id/like", required, write, h.Like)
	posts.Post("/:id/share", required, write, h.Share)
	posts.Get("/:id/comments", h.ListComments)
	posts.Post("/:id/comments", required, write, h.AddComment)

	comments := r.Group("/comments")
	comments.Get("/:id/replies/count", h.CountReplies)
	comments.Delete("/:id", required, write, h.DeleteComment)
}

// fail maps service errors to status codes. Anything without a kind is an
// infrastructure failure and is logged.
func (h *SocialHandler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch services.KindOf(err) {
	case services.KindNotFound:
		status = fiber.StatusNotFound
	case services.KindAccessDenied:
		status = fiber.StatusForbidden
	case services.KindValidationFailed:
		status = fiber.StatusBadRequest
	case services.KindAuthenticationFailed:
		status = fiber.StatusUnauthorized
	default:
		h.log.Error("request failed", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		return c.Status(status).JSON(envelope.Fail("internal error"))
	}
	return c.Status(status).JSON(envelope.Fail(err.Error()))
}

func paramID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil && id > 0
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(envelope.Fail(msg))
}

func pageParams(c *fiber.Ctx) (int, int) {
	return c.QueryInt("page", 1), c.QueryInt("limit", models.DefaultPageSize)
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func postPage(p models.Page[models.Post]) fiber.Map {
	return fiber.Map{"posts": p.Items, "pagination": p.Pagination}
}

// ──────────────────────────────────────────────
// Feed
// ──────────────────────────────────────────────

// GET /posts?page=1&limit=10&type=&tags=a,b
func (h *SocialHandler) ListPublic(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	filters := services.FeedFilters{
		Kind: models.PostKind(c.Query("type")),
		Tags: splitTags(c.Query("tags")),
	}

	result, err := h.svc.Feed.ListPublic(c.UserContext(), middleware.Identity(c).ID, page, limit, filters)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(envelope.OK("posts retrieved", postPage(result)))
}

// GET /posts/feed
func (h *SocialHandler) ListPersonal(c *fiber.Ctx) error {
	viewer := middleware.Identity(c)
	following, err := h.follows.Following(c.UserContext(), viewer.ID)
	if err != nil {
		return h.fail(c, err)
	}

	page, limit := pageParams(c)
	result, err := h.svc.Feed.ListPersonal(c.UserContext(), viewer.ID, following, page, limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(envelope.OK("feed retrieved", postPage(result)))
}

// GET /posts/search?q=&type=&tags=&author=
func (h *SocialHandler) Search(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	filters := services.FeedFilters{
		Kind:         models.PostKind(c.Query("type")),
		Tags:         splitTags(c.Query("tags")),
		AuthorHandle: c.Query("author"),
	}

	result, err := h.svc.Feed.Search(c.UserContext(), middleware.Identity(c).ID, c.Query("q"), filters, page, limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(envelope.OK("search results retrieved", postPage(result)))
}

// GET /posts/:id
func (h *SocialHandler) Get(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	post, err := h.svc.Feed.Get(c.UserContext(), id, middleware.Identity(c).ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(envelope.OK("post retrieved", post))
}

// ──────────────────────────────────────────────
// Post lifecycle
// ──────────────────────────────────────────────

// POST /posts
func (h *SocialHandler) Create(c *fiber.Ctx) error {
	var in services.CreatePostInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}

	post, err := h.svc.Posts.Create(c.UserContext(), middleware.Identity(c), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(envelope.OK("post created", post))
}

// PUT /posts/:id
func (h *SocialHandler) Update(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var in services.UpdatePostInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}

	post, err := h.svc.Posts.Update(c.UserContext(), middleware.Identity(c), id, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(envelope.OK("post updated", post))
}

// DELETE /posts/:id
func (h *SocialHandler) Delete(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.svc.Posts.Delete(c.UserContext(), middleware.Identity(c), id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(envelope.OK("post deleted", nil))
}

// POST /posts/:id/pin  {"pinned": false} unpins; an empty body pins.
func (h *SocialHandler) Pin(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var body struct {
		Pinned *bool `json:"pinned"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid body")
		}
	}
	pinned := body.Pinned == nil || *body.Pinned

	post, err := h.svc.Posts.SetPinned(c.UserContext(), middleware.Identity(c), id, pinned)
	if err != nil {
		return h.fail(c, err)
	}
	msg := "post unpinned"
	if pinned {
		msg = "post pinned"
	}
	return c.JSON(envelope.OK(msg, post))
}

// ──────────────────────────────────────────────
// Engagement
// ──────────────────────────────────────────────

// POST /posts/:id/like
func (h *SocialHandler) Like(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	result, err := h.svc.Engagement.ToggleLike(c.UserContext(), id, middleware.Identity(c).ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(envelope.OK("like toggled", result))
}

// POST /posts/:id/share
func (h *SocialHandler) Share(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	result, err := h.svc.Engagement.ToggleShare(c.UserContext(), id, middleware.Identity(c).ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(envelope.OK("share toggled", result))
}

// ──────────────────────────────────────────────
// Comments
// ──────────────────────────────────────────────

// GET /posts/:id/comments?page=1&limit=10
func (h *SocialHandler) ListComments(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	page, limit := pageParams(c)
	result, err := h.svc.Comments.ListTopLevel(c.UserContext(), id, page, limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(envelope.OK("comments retrieved", fiber.Map{"comments": result.Items, "pagination": result.Pagination}))
}

type addCommentRequest struct {
	Content  string `json:"content"`
	ParentID *int64 `json:"parent_comment"`
}

// POST /posts/:id/comments
func (h *SocialHandler) AddComment(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req addCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	comment, err := h.svc.Comments.AddComment(c.UserContext(), id, middleware.Identity(c).ID, req.Content, req.ParentID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(envelope.OK("comment added", comment))
}

// GET /comments/:id/replies/count
func (h *SocialHandler) CountReplies(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	n, err := h.svc.Comments.CountReplies(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(envelope.OK("reply count retrieved", fiber.Map{"comment_id": id, "count": n}))
}

// DELETE /comments/:id
func (h *SocialHandler) DeleteComment(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.svc.Comments.Delete(c.UserContext(), middleware.Identity(c), id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(envelope.OK("comment deleted", nil))
}
