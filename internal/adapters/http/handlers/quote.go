package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotes-api/internal/app"
	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

// Greeting is the plain text body served at GET /.
const Greeting = "If you can see this, it works!"

// QuoteHandler handles the quote endpoints.
type QuoteHandler struct {
	service *app.QuoteService
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(service *app.QuoteService) *QuoteHandler {
	return &QuoteHandler{service: service}
}

// QuoteView is the public shape of a quote. It has no secret field.
type QuoteView struct {
	ID     int64  `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

// NewQuoteView projects a stored quote onto its public shape.
func NewQuoteView(q *domain.Quote) QuoteView {
	return QuoteView{
		ID:     q.ID,
		Author: q.Author,
		Text:   q.Text,
	}
}

func newQuoteViews(quotes []*domain.Quote) []QuoteView {
	views := make([]QuoteView, 0, len(quotes))
	for _, q := range quotes {
		views = append(views, NewQuoteView(q))
	}

	return views
}

// QuoteRequest is the body accepted by POST. A client supplied id is decoded
// and ignored. Any other field, secret included, is dropped.
type QuoteRequest struct {
	ID     int64  `json:"id"`
	Author string `json:"author" validate:"notempty"`
	Text   string `json:"text"   validate:"notempty"`
}

func (r QuoteRequest) input() app.QuoteInput {
	return app.QuoteInput{Author: r.Author, Text: r.Text}
}

// QuoteReplaceRequest is the body accepted by PUT. Author and text replace
// the stored values as given, blank or not.
type QuoteReplaceRequest struct {
	ID     int64  `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

func (r QuoteReplaceRequest) input() app.QuoteInput {
	return app.QuoteInput{Author: r.Author, Text: r.Text}
}

// Root handles GET /.
func (h *QuoteHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, Greeting)
}

// ListQuotes handles GET /quotes.
//
// @Summary List quotes
// @Tags quotes
// @Produce json
// @Success 200 {array} QuoteView
// @Router /quotes [get]
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	quotes, err := h.service.ListQuotes(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, newQuoteViews(quotes))
}

// SearchByAuthor handles GET /quotes/search/:author.
//
// @Summary Search quotes by author
// @Tags quotes
// @Produce json
// @Param author path string true "Case-insensitive author fragment"
// @Success 200 {array} QuoteView
// @Failure 404 {object} dto.ErrorResponse
// @Router /quotes/search/{author} [get]
func (h *QuoteHandler) SearchByAuthor(c *gin.Context) {
	quotes, err := h.service.SearchByAuthor(c.Request.Context(), c.Param("author"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, newQuoteViews(quotes))
}

// GetQuote handles GET /quotes/:id.
//
// @Summary Get a quote by id
// @Tags quotes
// @Produce json
// @Param id path int true "Quote id"
// @Success 200 {object} QuoteView
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /quotes/{id} [get]
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	id, ok := quoteID(c)
	if !ok {
		return
	}

	quote, err := h.service.GetQuote(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewQuoteView(quote))
}

// CreateQuote handles POST /quotes.
//
// @Summary Create a quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param quote body QuoteRequest true "Author and text"
// @Success 201 {object} QuoteView
// @Header 201 {string} Location "/quotes/{id}"
// @Failure 400 {object} dto.ErrorResponse
// @Router /quotes [post]
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	var req QuoteRequest
	if !bindQuote(c, &req) {
		return
	}

	quote, err := h.service.CreateQuote(c.Request.Context(), req.input())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Location", quoteLocation(quote.ID))
	c.JSON(http.StatusCreated, NewQuoteView(quote))
}

// UpdateQuote handles PUT /quotes/:id.
//
// @Summary Replace author and text of a quote
// @Tags quotes
// @Accept json
// @Param id path int true "Quote id"
// @Param quote body QuoteReplaceRequest true "Author and text"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /quotes/{id} [put]
func (h *QuoteHandler) UpdateQuote(c *gin.Context) {
	id, ok := quoteID(c)
	if !ok {
		return
	}

	var req QuoteReplaceRequest
	if !bindQuote(c, &req) {
		return
	}

	if _, err := h.service.UpdateQuote(c.Request.Context(), id, req.input()); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteQuote handles DELETE /quotes/:id.
//
// @Summary Delete a quote
// @Tags quotes
// @Produce json
// @Param id path int true "Quote id"
// @Success 200 {object} QuoteView
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /quotes/{id} [delete]
func (h *QuoteHandler) DeleteQuote(c *gin.Context) {
	id, ok := quoteID(c)
	if !ok {
		return
	}

	quote, err := h.service.DeleteQuote(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewQuoteView(quote))
}

// RegisterRoutes registers GET / and the /quotes routes on rg.
func (h *QuoteHandler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/", h.Root)
	rg.GET("/quotes", h.ListQuotes)
	rg.POST("/quotes", h.CreateQuote)
	rg.GET("/quotes/search/:author", h.SearchByAuthor)
	rg.GET("/quotes/:id", h.GetQuote)
	rg.PUT("/quotes/:id", h.UpdateQuote)
	rg.DELETE("/quotes/:id", h.DeleteQuote)
}

func quoteLocation(id int64) string {
	return "/quotes/" + strconv.FormatInt(id, 10)
}

// quoteID parses the :id path parameter and writes a 400 when it is not an
// integer. A valid id is added to the request logger.
func quoteID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, "quote id must be an integer, got "+strconv.Quote(raw))
		return 0, false
	}

	c.Request = c.Request.WithContext(logging.WithQuoteID(c.Request.Context(), id))

	return id, true
}

// bindQuote decodes the request body into req and checks its validate tags,
// writing a 400 on failure.
func bindQuote(c *gin.Context, req any) bool {
	err := dto.BindAndValidate(c, req)
	switch {
	case err == nil:
		return true
	case errors.Is(err, dto.ErrBinding):
		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, "request body must be a JSON quote")
	default:
		dto.RespondWithValidationErrors(c, dto.ValidationErrors(err))
	}

	return false
}
