package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaam8/election_ledger/internal/models"
	"github.com/jaam8/election_ledger/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type voteRequest struct {
	VoterID          string `json:"voterId"`
	BlockchainTxHash string `json:"blockchainTxHash"`
}

type applyRequest struct {
	CandidateID string `json:"candidateId"`
}

type RestHandler struct {
	s *service.ElectionService
	l *zap.Logger
}

func NewRestHandler(s *service.ElectionService, l *zap.Logger) *RestHandler {
	return &RestHandler{s: s, l: l}
}

// NewRouter mounts the ledger API. gatherer backs GET /metrics.
func NewRouter(h *RestHandler, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, response{Success: true, Message: "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	elections := router.Group("/elections")
	elections.POST("", h.CreateElection)
	elections.GET("/stats", h.Stats)
	elections.GET("/:id", h.GetElection)
	elections.POST("/:id/apply", h.ApplyCandidate)
	elections.POST("/:id/vote/:candidateId", h.Vote)
	elections.GET("/:id/voted/:voterId", h.Voted)

	results := router.Group("/results")
	results.GET("/:id", h.GetResults)
	results.POST("/:id", h.PublishResults)
	results.DELETE("/:id", h.ResetResults)

	router.POST("/voters", h.RegisterVoter)
	router.POST("/candidates", h.RegisterCandidate)
	router.POST("/parties", h.RegisterParty)
	return router
}

// statusOf maps ledger errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, models.ErrLocationMismatch),
		errors.Is(err, models.ErrVoterIneligible):
		return http.StatusForbidden
	case errors.Is(err, models.ErrElectionNotStarted),
		errors.Is(err, models.ErrElectionEnded),
		errors.Is(err, models.ErrCandidateNotInElection),
		errors.Is(err, models.ErrCandidateUnverified),
		errors.Is(err, models.ErrInvalidID),
		errors.Is(err, models.ErrInvalidElection),
		errors.Is(err, models.ErrInvalidWindow),
		errors.Is(err, models.ErrInvalidVoter),
		errors.Is(err, models.ErrInvalidParty):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrElectionNotFound),
		errors.Is(err, models.ErrCandidateNotFound),
		errors.Is(err, models.ErrVoterNotFound),
		errors.Is(err, models.ErrPartyNotFound),
		errors.Is(err, models.ErrVoteNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrPersistenceFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *RestHandler) fail(c *gin.Context, msg string, err error) {
	status := statusOf(err)
	message := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		h.l.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		message = "something went wrong"
	case status == http.StatusServiceUnavailable:
		h.l.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		message = models.ErrPersistenceFailure.Error()
	default:
		h.l.Warn(msg, zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, response{Success: false, Message: message})
}

func (h *RestHandler) bind(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.l.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, response{Success: false, Message: "invalid request body"})
		return false
	}
	return true
}

func (h *RestHandler) CreateElection(c *gin.Context) {
	var req models.NewElection
	if !h.bind(c, &req) {
		return
	}
	election, err := h.s.CreateElection(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "failed to create election", err)
		return
	}
	c.JSON(http.StatusCreated, response{Success: true, Message: "election created", Data: election})
}

func (h *RestHandler) GetElection(c *gin.Context) {
	election, err := h.s.GetElection(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "failed to get election", err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Data: gin.H{
		"election": election,
		"phase":    models.PhaseAt(election, h.s.Now()),
	}})
}

func (h *RestHandler) ApplyCandidate(c *gin.Context) {
	var req applyRequest
	if !h.bind(c, &req) {
		return
	}
	election, err := h.s.ApplyCandidate(c.Request.Context(), c.Param("id"), req.CandidateID)
	if err != nil {
		h.fail(c, "failed to apply candidate", err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Message: "application successful", Data: election})
}

func (h *RestHandler) Stats(c *gin.Context) {
	stats, err := h.s.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to count elections", err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Data: stats})
}

func (h *RestHandler) Vote(c *gin.Context) {
	var req voteRequest
	if !h.bind(c, &req) {
		return
	}
	record, err := h.s.CastVote(c.Request.Context(), models.CastVoteRequest{
		ElectionID:      c.Param("id"),
		CandidateID:     c.Param("candidateId"),
		VoterID:         req.VoterID,
		NotarizationRef: req.BlockchainTxHash,
	})
	if err != nil {
		h.fail(c, "failed to vote", err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Message: "vote cast successfully", Data: record})
}

func (h *RestHandler) Voted(c *gin.Context) {
	voted, err := h.s.HasVoted(c.Request.Context(), c.Param("id"), c.Param("voterId"))
	if err != nil {
		h.fail(c, "failed to check vote", err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Data: gin.H{"hasVoted": voted}})
}

func (h *RestHandler) GetResults(c *gin.Context) {
	view, err := h.s.BuildResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "failed to get results", err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Data: view})
}

func (h *RestHandler) PublishResults(c *gin.Context) {
	view, err := h.s.PublishResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "failed to publish results", err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Message: "results published", Data: view})
}

func (h *RestHandler) ResetResults(c *gin.Context) {
	removed, err := h.s.ResetResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "failed to reset results", err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Message: "results reset", Data: gin.H{"removed": removed}})
}

func (h *RestHandler) RegisterVoter(c *gin.Context) {
	var req models.Voter
	if !h.bind(c, &req) {
		return
	}
	voter, err := h.s.RegisterVoter(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "failed to register voter", err)
		return
	}
	c.JSON(http.StatusCreated, response{Success: true, Data: voter})
}

func (h *RestHandler) RegisterCandidate(c *gin.Context) {
	var req models.Candidate
	if !h.bind(c, &req) {
		return
	}
	candidate, err := h.s.RegisterCandidate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "failed to register candidate", err)
		return
	}
	c.JSON(http.StatusCreated, response{Success: true, Data: candidate})
}

func (h *RestHandler) RegisterParty(c *gin.Context) {
	var req models.Party
	if !h.bind(c, &req) {
		return
	}
	party, err := h.s.RegisterParty(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "failed to register party", err)
		return
	}
	c.JSON(http.StatusCreated, response{Success: true, Data: party})
}
